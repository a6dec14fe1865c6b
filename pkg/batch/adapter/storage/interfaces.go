// Package storage defines the storage abstraction archives are downloaded from,
// and the provider that opens named storage connections from configuration.
package storage

import (
	"context"
	"io"

	coreAdapter "github.com/tigerroll/blobtosql/pkg/batch/core/adapter"
)

// StorageExecutor defines generic storage operations.
type StorageExecutor interface {
	// Upload writes data to bucket/objectName.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName for reading. The caller must close the reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object under prefix, stopping at the first error fn returns.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
}

// StorageConnection represents a generic data storage connection.
type StorageConnection interface {
	coreAdapter.ResourceConnection
	StorageExecutor
}
