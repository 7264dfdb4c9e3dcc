// Package storage contains the S3-compatible object storage client used to
// fetch and publish API contracts. Objects are streamed; no local disk is
// used.
package storage

import (
	"context"
	"io"
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1
// and the backend will chunk the upload.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// Storage is a reusable, S3-compatible object storage client interface.
type Storage interface {
	// Fetch streams the object at bucket/key. An empty bucket means the
	// default bucket.
	Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// Put uploads an object to the default bucket, creating the bucket when
	// it is missing.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Ping fails unless the default bucket exists and is reachable.
	Ping(ctx context.Context) error
	// Bucket returns the default bucket name.
	Bucket() string
}
