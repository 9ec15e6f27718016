// Package cassandra contains the Cassandra blob store. All blob tables share one "blobs" table
// partitioned by (blob_table, id).
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"github.com/sharedcode/coverage"
)

type blobStore struct {
	// conn is nil for blob stores over the global connection.
	conn *Connection
}

// NewBlobStore instantiates a Cassandra-backed implementation of coverage.BlobStore over the
// connection opened with OpenConnection.
func NewBlobStore() coverage.BlobStore {
	return &blobStore{}
}

// NewConnectionBlobStore returns a blob store over c, e.g. a connection from NewConnection.
func NewConnectionBlobStore(c *Connection) coverage.BlobStore {
	return &blobStore{conn: c}
}

func (b *blobStore) connection() (*Connection, error) {
	if b.conn != nil {
		return b.conn, nil
	}
	return currentConnection()
}

func selectStatement(keyspace string) string {
	return fmt.Sprintf("SELECT data FROM %s.blobs WHERE blob_table = ? AND id = ?;", keyspace)
}

func insertStatement(keyspace string) string {
	return fmt.Sprintf("INSERT INTO %s.blobs (blob_table, id, data) VALUES(?,?,?);", keyspace)
}

func deleteStatement(keyspace string, count int) string {
	paramQ := make([]string, count)
	for i := range paramQ {
		paramQ[i] = "?"
	}
	return fmt.Sprintf("DELETE FROM %s.blobs WHERE blob_table = ? AND id in (%v);", keyspace, strings.Join(paramQ, ", "))
}

// GetOne fetches a blob from the Cassandra blobs table for the given table and ID.
func (b *blobStore) GetOne(ctx context.Context, blobTable string, blobID coverage.UUID) ([]byte, error) {
	c, err := b.connection()
	if err != nil {
		return nil, err
	}
	var ba []byte
	err = coverage.RetryIO(ctx, coverage.BackendIOError, func(ctx context.Context) error {
		qry := c.Session.Query(selectStatement(c.Keyspace), blobTable, gocql.UUID(blobID)).WithContext(ctx)
		if c.ConsistencyBook.BlobStoreGet > gocql.Any {
			qry.Consistency(c.ConsistencyBook.BlobStoreGet)
		}
		err := qry.Scan(&ba)
		if errors.Is(err, gocql.ErrNotFound) {
			return fmt.Errorf("%w: %s/%s", coverage.ErrBlobNotFound, blobTable, blobID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return ba, nil
}

// Add upserts blob records.
func (b *blobStore) Add(ctx context.Context, storesblobs []coverage.BlobsPayload[coverage.KeyValuePair[coverage.UUID, []byte]]) error {
	c, err := b.connection()
	if err != nil {
		return err
	}
	for i := range storesblobs {
		for ii := range storesblobs[i].Blobs {
			blob := storesblobs[i].Blobs[ii]
			if err := coverage.RetryIO(ctx, coverage.BackendIOError, func(ctx context.Context) error {
				qry := c.Session.Query(insertStatement(c.Keyspace), storesblobs[i].BlobTable, gocql.UUID(blob.Key), blob.Value).WithContext(ctx)
				if c.ConsistencyBook.BlobStoreAdd > gocql.Any {
					qry.Consistency(c.ConsistencyBook.BlobStoreAdd)
				}
				return qry.Exec()
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Remove deletes blobs for each blob table and list of IDs provided.
func (b *blobStore) Remove(ctx context.Context, storesBlobsIDs []coverage.BlobsPayload[coverage.UUID]) error {
	c, err := b.connection()
	if err != nil {
		return err
	}
	for _, storeBlobIDs := range storesBlobsIDs {
		if len(storeBlobIDs.Blobs) == 0 {
			continue
		}
		params := make([]interface{}, 0, len(storeBlobIDs.Blobs)+1)
		params = append(params, storeBlobIDs.BlobTable)
		for _, id := range storeBlobIDs.Blobs {
			params = append(params, gocql.UUID(id))
		}
		if err := coverage.RetryIO(ctx, coverage.BackendIOError, func(ctx context.Context) error {
			qry := c.Session.Query(deleteStatement(c.Keyspace, len(storeBlobIDs.Blobs)), params...).WithContext(ctx)
			if c.ConsistencyBook.BlobStoreRemove > gocql.Any {
				qry.Consistency(c.ConsistencyBook.BlobStoreRemove)
			}
			return qry.Exec()
		}); err != nil {
			return err
		}
	}
	return nil
}
