// Package aws_s3 contains the S3 blob store: tiles and catalog documents are objects keyed
// "<table>/<blob id>" in one bucket.
package aws_s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sharedcode/coverage"
)

const largeObjectMinSize = 10 * 1024 * 1024

// DeleteObjects accepts at most this many keys per request.
const maxDeleteBatch = 1000

// ObjectAPI is the part of the S3 client used by the blob store. *s3.Client implements it.
type ObjectAPI interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type s3Bucket struct {
	bucketName string
	s3Client   ObjectAPI
	uploader   *manager.Uploader
}

// NewBlobStore returns a blob store over an existing bucket.
func NewBlobStore(s3Client ObjectAPI, bucketName string) (coverage.BlobStore, error) {
	if s3Client == nil {
		return nil, fmt.Errorf("s3Client parameter can't be nil")
	}
	if bucketName == "" {
		return nil, fmt.Errorf("bucketName parameter can't be empty")
	}
	return &s3Bucket{
		bucketName: bucketName,
		s3Client:   s3Client,
		uploader: manager.NewUploader(s3Client, func(u *manager.Uploader) {
			u.PartSize = largeObjectMinSize
		}),
	}, nil
}

func objectKey(blobTable string, blobID coverage.UUID) string {
	return fmt.Sprintf("%s/%s", blobTable, blobID)
}

func noSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

func (b *s3Bucket) GetOne(ctx context.Context, blobTable string, blobID coverage.UUID) ([]byte, error) {
	key := objectKey(blobTable, blobID)
	var body []byte
	err := coverage.RetryIO(ctx, coverage.BackendIOError, func(ctx context.Context) error {
		result, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			if noSuchKey(err) {
				return fmt.Errorf("%w: s3://%s/%s", coverage.ErrBlobNotFound, b.bucketName, key)
			}
			return err
		}
		defer result.Body.Close()
		body, err = io.ReadAll(result.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (b *s3Bucket) Add(ctx context.Context, storesblobs []coverage.BlobsPayload[coverage.KeyValuePair[coverage.UUID, []byte]]) error {
	for _, storeBlobs := range storesblobs {
		for _, blob := range storeBlobs.Blobs {
			key := objectKey(storeBlobs.BlobTable, blob.Key)
			if err := coverage.RetryIO(ctx, coverage.BackendIOError, func(ctx context.Context) error {
				return b.put(ctx, key, blob.Value)
			}); err != nil {
				return fmt.Errorf("s3 put s3://%s/%s: %w", b.bucketName, key, err)
			}
		}
	}
	return nil
}

func (b *s3Bucket) put(ctx context.Context, key string, data []byte) error {
	// Upload the large object in parts.
	if isLargeObject(data) {
		_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucketName),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	}
	_, err := b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (b *s3Bucket) Remove(ctx context.Context, storesBlobsIDs []coverage.BlobsPayload[coverage.UUID]) error {
	objectIds := make([]types.ObjectIdentifier, 0, coverage.GetBlobPayloadCount(storesBlobsIDs))
	for _, storeBlobIDs := range storesBlobsIDs {
		for _, blobID := range storeBlobIDs.Blobs {
			objectIds = append(objectIds, types.ObjectIdentifier{Key: aws.String(objectKey(storeBlobIDs.BlobTable, blobID))})
		}
	}
	for start := 0; start < len(objectIds); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(objectIds))
		batch := objectIds[start:end]
		var output *s3.DeleteObjectsOutput
		if err := coverage.RetryIO(ctx, coverage.BackendIOError, func(ctx context.Context) error {
			var err error
			output, err = b.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(b.bucketName),
				Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
			})
			return err
		}); err != nil {
			return fmt.Errorf("s3 delete from bucket %s: %w", b.bucketName, err)
		}
		if len(output.Errors) > 0 {
			e := output.Errors[0]
			return fmt.Errorf("s3 delete of %d object(s) from bucket %s failed, first: %s: %s",
				len(output.Errors), b.bucketName, aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}

func isLargeObject(data []byte) bool {
	return len(data) > largeObjectMinSize
}
