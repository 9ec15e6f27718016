// Package inmemory provides map backed implementations of the storage contracts: a blob store
// and a plain coverage store. They are used by tests and by the "memory" backend.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sharedcode/coverage"
)

// BlobStore is a concurrency safe in-memory coverage.BlobStore.
type BlobStore struct {
	mu     sync.RWMutex
	tables map[string]map[coverage.UUID][]byte
}

// NewBlobStore instantiates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		tables: make(map[string]map[coverage.UUID][]byte),
	}
}

// GetOne returns a copy of the blob, or an error wrapping coverage.ErrBlobNotFound.
func (b *BlobStore) GetOne(ctx context.Context, blobTable string, blobID coverage.UUID) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ba, ok := b.tables[blobTable][blobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", coverage.ErrBlobNotFound, blobTable, blobID)
	}
	return append([]byte(nil), ba...), nil
}

// Add upserts copies of the blobs.
func (b *BlobStore) Add(ctx context.Context, storesblobs []coverage.BlobsPayload[coverage.KeyValuePair[coverage.UUID, []byte]]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, storeBlobs := range storesblobs {
		t, ok := b.tables[storeBlobs.BlobTable]
		if !ok {
			t = make(map[coverage.UUID][]byte, len(storeBlobs.Blobs))
			b.tables[storeBlobs.BlobTable] = t
		}
		for _, blob := range storeBlobs.Blobs {
			t[blob.Key] = append([]byte(nil), blob.Value...)
		}
	}
	return nil
}

// Remove deletes the blobs; missing ones are ignored.
func (b *BlobStore) Remove(ctx context.Context, storesBlobsIDs []coverage.BlobsPayload[coverage.UUID]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, storeBlobIDs := range storesBlobsIDs {
		t := b.tables[storeBlobIDs.BlobTable]
		for _, blobID := range storeBlobIDs.Blobs {
			delete(t, blobID)
		}
	}
	return nil
}

// Count returns the number of blobs in a table.
func (b *BlobStore) Count(blobTable string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tables[blobTable])
}
