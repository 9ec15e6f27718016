package coverage

import "context"

// BlobStore specifies the backend blob store interface used for storing & managing data blobs,
// e.g. encoded tiles and catalog documents. Blobs are grouped in tables; a table maps to a folder,
// a key prefix or a partition depending on the backend.
type BlobStore interface {
	// GetOne fetches a blob given its table and ID. Returns an error wrapping ErrBlobNotFound
	// when the blob does not exist.
	GetOne(ctx context.Context, blobTable string, blobID UUID) ([]byte, error)
	// Add upserts blobs to the store.
	Add(ctx context.Context, blobs []BlobsPayload[KeyValuePair[UUID, []byte]]) error
	// Remove deletes blobs with the given IDs. Missing blobs are ignored.
	Remove(ctx context.Context, blobsIDs []BlobsPayload[UUID]) error
}

// BlobsPayload is the request payload of blob store operations.
type BlobsPayload[T UUID | KeyValuePair[UUID, []byte]] struct {
	// Blob store table name.
	BlobTable string
	// Blobs contains the blobs IDs and blobs data for upsert to the store or the blobs IDs to be removed.
	Blobs []T
}

// GetBlobPayloadCount returns the total number of blobs given a set of payloads.
func GetBlobPayloadCount[T UUID | KeyValuePair[UUID, []byte]](payloads []BlobsPayload[T]) int {
	total := 0
	for _, p := range payloads {
		total = total + len(p.Blobs)
	}
	return total
}
