// Package local provides a local file system implementation of the storage adapter.
// A bucket is a sub-directory of the configured base directory.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	storageAdapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// ProviderType defines the type identifier for this local storage adapter.
const ProviderType = "local"

func init() {
	storageAdapter.RegisterFactory(ProviderType, func(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
		return NewLocalAdapter(cfg, name)
	})
}

// localAdapter implements storage.StorageConnection.
type localAdapter struct {
	cfg  storageConfig.StorageConfig
	name string
}

var _ storageAdapter.StorageConnection = (*localAdapter)(nil)

// NewLocalAdapter creates a local adapter, creating BaseDir if it does not exist.
func NewLocalAdapter(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local storage adapter '%s': base_dir must be specified in configuration", name)
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
			return nil, fmt.Errorf("local storage adapter '%s': failed to create base_dir '%s': %w", name, cfg.BaseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage adapter '%s': failed to stat base_dir '%s': %w", name, cfg.BaseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage adapter '%s': base_dir '%s' is not a directory", name, cfg.BaseDir)
	}

	return &localAdapter{cfg: cfg, name: name}, nil
}

func (a *localAdapter) Close() error {
	return nil
}

func (a *localAdapter) Type() string {
	return ProviderType
}

func (a *localAdapter) Name() string {
	return a.name
}

// Upload writes data to BaseDir/bucket/objectName, creating parent directories.
func (a *localAdapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	fullPath, err := a.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", fullPath, err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", fullPath, err)
	}
	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write data to file '%s': %w", fullPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file '%s': %w", fullPath, err)
	}
	logger.Debugf("Uploaded '%s' (local adapter '%s').", fullPath, a.name)
	return nil
}

// Download opens BaseDir/bucket/objectName. The returned *os.File is an io.ReaderAt,
// so readers that need random access can use it without spooling.
func (a *localAdapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	fullPath, err := a.resolvePath(bucket, objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file '%s': %w", fullPath, err)
	}
	return file, nil
}

// ListObjects walks BaseDir/bucket in lexical order and calls fn with every file whose
// slash-separated name relative to the bucket starts with prefix.
func (a *localAdapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	basePath, err := a.resolvePath(bucket, "")
	if err != nil {
		return err
	}

	var names []string
	err = filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(basePath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to list objects in '%s' with prefix '%s': %w", basePath, prefix, err)
	}

	sort.Strings(names)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}

// resolvePath joins BaseDir, bucket and objectName and refuses paths escaping BaseDir.
func (a *localAdapter) resolvePath(bucket, objectName string) (string, error) {
	if bucket == "" {
		bucket = a.cfg.BucketName
	}
	fullPath := filepath.Join(a.cfg.BaseDir, bucket, filepath.FromSlash(objectName))

	absBaseDir, err := filepath.Abs(a.cfg.BaseDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for base_dir '%s': %w", a.cfg.BaseDir, err)
	}
	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", fullPath, err)
	}
	if absFullPath != absBaseDir && !strings.HasPrefix(absFullPath, absBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("resolved path '%s' is outside of base_dir '%s'", fullPath, a.cfg.BaseDir)
	}
	return fullPath, nil
}
