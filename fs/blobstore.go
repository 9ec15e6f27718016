// Package fs implements coverage.BlobStore on the file system: a plain store writing one file
// per blob and an erasure coded store spreading shards across several drives.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sharedcode/coverage"
)

// Directory/File permission.
const permission os.FileMode = os.ModeSticky | os.ModePerm

// blobStore maps blob IDs to files under <baseFolder>/<table>/<4-level UUID hierarchy>/<id>.
// There is no caching; tiles are written once and read once during a copy.
type blobStore struct {
	baseFolder string
	fileIO     FileIO
	toFilePath ToFilePathFunc
}

// NewBlobStore instantiates a file system blob store rooted at baseFolder.
// Nil fileIO or toFilePath select the defaults.
func NewBlobStore(baseFolder string, toFilePath ToFilePathFunc, fileIO FileIO) coverage.BlobStore {
	if fileIO == nil {
		fileIO = NewFileIO()
	}
	if toFilePath == nil {
		toFilePath = DefaultToFilePath
	}
	return &blobStore{
		baseFolder: baseFolder,
		fileIO:     fileIO,
		toFilePath: toFilePath,
	}
}

func (b blobStore) fileName(blobTable string, blobID coverage.UUID) (string, string) {
	fp := b.toFilePath(filepath.Join(b.baseFolder, blobTable), blobID)
	return fp, fmt.Sprintf("%s%c%s", fp, os.PathSeparator, blobID.String())
}

// GetOne reads the blob file. A missing file is reported as coverage.ErrBlobNotFound.
func (b blobStore) GetOne(ctx context.Context, blobTable string, blobID coverage.UUID) ([]byte, error) {
	_, fn := b.fileName(blobTable, blobID)
	ba, err := b.fileIO.ReadFile(ctx, fn)
	if err != nil {
		return nil, notFound(err, blobTable, blobID)
	}
	return ba, nil
}

// Add writes the blobs, creating folders as needed. Existing files are overwritten.
func (b blobStore) Add(ctx context.Context, storesblobs []coverage.BlobsPayload[coverage.KeyValuePair[coverage.UUID, []byte]]) error {
	for _, storeBlobs := range storesblobs {
		for _, blob := range storeBlobs.Blobs {
			fp, fn := b.fileName(storeBlobs.BlobTable, blob.Key)
			if !b.fileIO.Exists(ctx, fp) {
				if err := b.fileIO.MkdirAll(ctx, fp, permission); err != nil {
					return err
				}
			}
			if err := b.fileIO.WriteFile(ctx, fn, blob.Value, permission); err != nil {
				return err
			}
		}
	}
	return nil
}

// Remove deletes the blob files. Non-existent files are ignored.
func (b blobStore) Remove(ctx context.Context, storesBlobsIDs []coverage.BlobsPayload[coverage.UUID]) error {
	for _, storeBlobIDs := range storesBlobsIDs {
		for _, blobID := range storeBlobIDs.Blobs {
			_, fn := b.fileName(storeBlobIDs.BlobTable, blobID)
			if !b.fileIO.Exists(ctx, fn) {
				continue
			}
			if err := b.fileIO.Remove(ctx, fn); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
	}
	return nil
}

func notFound(err error, blobTable string, blobID coverage.UUID) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", coverage.ErrBlobNotFound, blobTable, blobID)
	}
	return err
}
