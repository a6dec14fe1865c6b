// Package gcs provides a Google Cloud Storage implementation of the storage adapter.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storageAdapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// ProviderType defines the type identifier for this adapter.
const ProviderType = "gcs"

func init() {
	storageAdapter.RegisterFactory(ProviderType, func(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
		return NewGCSAdapter(context.Background(), cfg, name)
	})
}

type gcsAdapter struct {
	client *storage.Client
	cfg    storageConfig.StorageConfig
	name   string
}

var _ storageAdapter.StorageConnection = (*gcsAdapter)(nil)

// ClientOptions translates the storage configuration into client options.
func ClientOptions(cfg storageConfig.StorageConfig) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

// NewGCSAdapter creates a GCS client for cfg. Without credentials_file or endpoint,
// Application Default Credentials are used.
func NewGCSAdapter(ctx context.Context, cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	client, err := storage.NewClient(ctx, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage adapter '%s': failed to create client: %w", name, err)
	}
	return &gcsAdapter{client: client, cfg: cfg, name: name}, nil
}

func (a *gcsAdapter) Close() error {
	return a.client.Close()
}

func (a *gcsAdapter) Type() string {
	return ProviderType
}

func (a *gcsAdapter) Name() string {
	return a.name
}

func (a *gcsAdapter) bucket(bucket string) (*storage.BucketHandle, error) {
	if bucket == "" {
		bucket = a.cfg.BucketName
	}
	if bucket == "" {
		return nil, fmt.Errorf("gcs storage adapter '%s': no bucket given and no bucket_name configured", a.name)
	}
	return a.client.Bucket(bucket), nil
}

// Upload writes data to gs://bucket/objectName.
func (a *gcsAdapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	b, err := a.bucket(bucket)
	if err != nil {
		return err
	}
	w := b.Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload '%s': %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload of '%s': %w", objectName, err)
	}
	logger.Debugf("Uploaded gs://%s/%s (gcs adapter '%s').", b.BucketName(), objectName, a.name)
	return nil
}

// Download opens gs://bucket/objectName as a stream. The stream is not seekable.
func (a *gcsAdapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	b, err := a.bucket(bucket)
	if err != nil {
		return nil, err
	}
	r, err := b.Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", b.BucketName(), objectName, err)
	}
	return r, nil
}

// ListObjects iterates the objects under prefix.
func (a *gcsAdapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	b, err := a.bucket(bucket)
	if err != nil {
		return err
	}
	it := b.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list gs://%s/%s: %w", b.BucketName(), prefix, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}
