// Package redis contains a Redis backed blob store for tiles and catalog documents.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/coverage"
)

// Client is the subset of the go-redis command set used by the blob store. *redis.Client
// implements it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type blobStore struct {
	client Client
	// Expiration of stored blobs, 0 means no expiration.
	expiration time.Duration
}

// NewBlobStore returns a blob store over the singleton connection opened with OpenConnection.
func NewBlobStore() (coverage.BlobStore, error) {
	mux.Lock()
	defer mux.Unlock()
	if connection == nil || connection.Client == nil {
		return nil, fmt.Errorf("redis connection is not open, can't create blob store")
	}
	return NewClientBlobStore(connection.Client, 0), nil
}

// NewClientBlobStore returns a blob store over the given client. Blobs expire after expiration
// unless it is 0.
func NewClientBlobStore(client Client, expiration time.Duration) coverage.BlobStore {
	return &blobStore{client: client, expiration: expiration}
}

func blobKey(blobTable string, blobID coverage.UUID) string {
	return fmt.Sprintf("%s:%s", blobTable, blobID)
}

// keyNotFound will detect whether error signifies key not found by Redis.
func keyNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (b *blobStore) GetOne(ctx context.Context, blobTable string, blobID coverage.UUID) ([]byte, error) {
	var ba []byte
	err := coverage.RetryIO(ctx, coverage.BackendIOError, func(ctx context.Context) error {
		var err error
		ba, err = b.client.Get(ctx, blobKey(blobTable, blobID)).Bytes()
		if keyNotFound(err) {
			return fmt.Errorf("%w: %s", coverage.ErrBlobNotFound, blobKey(blobTable, blobID))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return ba, nil
}

func (b *blobStore) Add(ctx context.Context, storesblobs []coverage.BlobsPayload[coverage.KeyValuePair[coverage.UUID, []byte]]) error {
	for _, storeBlobs := range storesblobs {
		for _, blob := range storeBlobs.Blobs {
			key := blobKey(storeBlobs.BlobTable, blob.Key)
			if err := coverage.RetryIO(ctx, coverage.BackendIOError, func(ctx context.Context) error {
				return b.client.Set(ctx, key, blob.Value, b.expiration).Err()
			}); err != nil {
				return fmt.Errorf("redis set %s: %w", key, err)
			}
		}
	}
	return nil
}

func (b *blobStore) Remove(ctx context.Context, storesBlobsIDs []coverage.BlobsPayload[coverage.UUID]) error {
	keys := make([]string, 0, coverage.GetBlobPayloadCount(storesBlobsIDs))
	for _, storeBlobIDs := range storesBlobsIDs {
		for _, blobID := range storeBlobIDs.Blobs {
			keys = append(keys, blobKey(storeBlobIDs.BlobTable, blobID))
		}
	}
	// DEL without keys is a Redis syntax error.
	if len(keys) == 0 {
		return nil
	}
	return coverage.RetryIO(ctx, coverage.BackendIOError, func(ctx context.Context) error {
		err := b.client.Del(ctx, keys...).Err()
		if keyNotFound(err) {
			return nil
		}
		return err
	})
}

// Ping tests connectivity for redis (PONG should be returned).
func Ping(ctx context.Context, client Client) error {
	return client.Ping(ctx).Err()
}
