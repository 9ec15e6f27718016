package aws_s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BucketAPI is the part of the S3 client used to manage buckets.
type BucketAPI interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// ManageBucket creates and removes the buckets backing blob stores.
type ManageBucket struct {
	S3Client BucketAPI
	region   string
}

func NewManageBucket(s3Client BucketAPI, region string) (*ManageBucket, error) {
	if s3Client == nil {
		return nil, fmt.Errorf("s3Client parameter can't be nil")
	}
	return &ManageBucket{
		S3Client: s3Client,
		region:   region,
	}, nil
}

func (mb *ManageBucket) CreateBucket(ctx context.Context, bucketName string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}
	// us-east-1 is the default location and must not be sent as a constraint.
	if mb.region != "" && mb.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(mb.region),
		}
	}
	if _, err := mb.S3Client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("couldn't create bucket %s in Region %s, details: %w", bucketName, mb.region, err)
	}
	return nil
}

// EnsureBucket creates the bucket unless it already exists.
func (mb *ManageBucket) EnsureBucket(ctx context.Context, bucketName string) error {
	_, err := mb.S3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucketName)})
	if err == nil {
		return nil
	}
	var nf *types.NotFound
	if !errors.As(err, &nf) {
		return fmt.Errorf("couldn't check bucket %s, details: %w", bucketName, err)
	}
	return mb.CreateBucket(ctx, bucketName)
}

func (mb *ManageBucket) RemoveBucket(ctx context.Context, bucketName string) error {
	_, err := mb.S3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		return fmt.Errorf("couldn't remove bucket %s, details: %w", bucketName, err)
	}
	return nil
}
