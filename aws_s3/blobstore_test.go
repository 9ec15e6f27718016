package aws_s3

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sharedcode/coverage"
)

func add(t *testing.T, bs coverage.BlobStore, table string, id coverage.UUID, data []byte) {
	t.Helper()
	if err := bs.Add(context.Background(), []coverage.BlobsPayload[coverage.KeyValuePair[coverage.UUID, []byte]]{{
		BlobTable: table,
		Blobs:     []coverage.KeyValuePair[coverage.UUID, []byte]{{Key: id, Value: data}},
	}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
}

func TestBlobStoreBasicUse(t *testing.T) {
	ctx := context.Background()
	f := newFakeS3("tiles-bucket")
	bs, err := NewBlobStore(f, "tiles-bucket")
	if err != nil {
		t.Fatal(err)
	}
	id := coverage.NewUUID()
	add(t, bs, "tiles", id, []byte("png"))
	if _, ok := f.buckets["tiles-bucket"]["tiles/"+id.String()]; !ok {
		t.Errorf("expected object tiles/%s", id)
	}

	ba, err := bs.GetOne(ctx, "tiles", id)
	if err != nil {
		t.Fatalf("GetOne failed: %v", err)
	}
	if string(ba) != "png" {
		t.Errorf("got %q, expected png", ba)
	}

	if err := bs.Remove(ctx, []coverage.BlobsPayload[coverage.UUID]{{BlobTable: "tiles", Blobs: []coverage.UUID{id}}}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := bs.GetOne(ctx, "tiles", id); !errors.Is(err, coverage.ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
	if f.calls["GetObject"] != 2 {
		t.Errorf("missing object must not be retried, got %d GetObject calls", f.calls["GetObject"])
	}
}

func TestBlobStoreLargeObjectUsesMultipart(t *testing.T) {
	ctx := context.Background()
	f := newFakeS3("tiles-bucket")
	bs, _ := NewBlobStore(f, "tiles-bucket")

	data := bytes.Repeat([]byte{7}, largeObjectMinSize+1)
	data[0], data[len(data)-1] = 1, 2
	id := coverage.NewUUID()
	add(t, bs, "tiles", id, data)

	if f.calls["CreateMultipartUpload"] != 1 || f.calls["UploadPart"] != 2 || f.calls["CompleteMultipartUpload"] != 1 {
		t.Errorf("expected a two part upload, got calls %v", f.calls)
	}
	got, err := bs.GetOne(ctx, "tiles", id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("large object content mismatch")
	}
}

func TestBlobStoreRemoveBatches(t *testing.T) {
	ctx := context.Background()
	f := newFakeS3("b")
	bs, _ := NewBlobStore(f, "b")

	if err := bs.Remove(ctx, []coverage.BlobsPayload[coverage.UUID]{{BlobTable: "tiles"}}); err != nil {
		t.Fatal(err)
	}
	if f.calls["DeleteObjects"] != 0 {
		t.Errorf("expected no DeleteObjects call for an empty payload")
	}

	ids := make([]coverage.UUID, maxDeleteBatch+5)
	for i := range ids {
		ids[i] = coverage.NewUUID()
	}
	if err := bs.Remove(ctx, []coverage.BlobsPayload[coverage.UUID]{{BlobTable: "tiles", Blobs: ids}}); err != nil {
		t.Fatal(err)
	}
	if f.calls["DeleteObjects"] != 2 {
		t.Errorf("expected 2 batches, got %d", f.calls["DeleteObjects"])
	}
}

func TestNewBlobStoreValidation(t *testing.T) {
	if _, err := NewBlobStore(nil, "b"); err == nil {
		t.Error("expected error on nil client")
	}
	if _, err := NewBlobStore(newFakeS3(), ""); err == nil {
		t.Error("expected error on empty bucket")
	}
}

func TestManageBucket(t *testing.T) {
	ctx := context.Background()
	f := newFakeS3()
	mb, err := NewManageBucket(f, "eu-west-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := mb.EnsureBucket(ctx, "tiles"); err != nil {
		t.Fatalf("EnsureBucket failed: %v", err)
	}
	if err := mb.EnsureBucket(ctx, "tiles"); err != nil {
		t.Fatalf("EnsureBucket on existing bucket failed: %v", err)
	}
	if f.calls["CreateBucket"] != 1 {
		t.Errorf("expected a single CreateBucket, got %d", f.calls["CreateBucket"])
	}
	if err := mb.CreateBucket(ctx, "tiles"); err == nil {
		t.Error("expected error creating an existing bucket")
	}
	if err := mb.RemoveBucket(ctx, "tiles"); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.buckets["tiles"]; ok {
		t.Error("bucket still exists after remove")
	}
	if _, err := NewManageBucket(nil, ""); err == nil {
		t.Error("expected error on nil client")
	}
}

func TestConnect(t *testing.T) {
	c := Connect(Config{HostEndpointUrl: "http://127.0.0.1:9000", Region: "us-east-1", Username: "minio", Password: "minio123", UsePathStyle: true})
	if c == nil {
		t.Fatal("expected a client")
	}
	if !c.Options().UsePathStyle {
		t.Error("expected path style addressing")
	}
}
