package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/storage/config"
)

func TestLocalAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := NewLocalAdapter(storageConfig.StorageConfig{Type: ProviderType, BaseDir: t.TempDir()}, "archive")
	require.NoError(t, err)
	assert.Equal(t, "local", conn.Type())

	require.NoError(t, conn.Upload(ctx, "datasets", "b.zip", strings.NewReader("bbb"), "application/zip"))
	require.NoError(t, conn.Upload(ctx, "datasets", "a.zip", strings.NewReader("aaa"), "application/zip"))
	require.NoError(t, conn.Upload(ctx, "datasets", "notes/readme.txt", strings.NewReader("x"), "text/plain"))

	rc, err := conn.Download(ctx, "datasets", "a.zip")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "aaa", string(body))
	_, seekable := rc.(io.ReaderAt)
	assert.True(t, seekable)

	var all []string
	require.NoError(t, conn.ListObjects(ctx, "datasets", "", func(name string) error {
		all = append(all, name)
		return nil
	}))
	assert.Equal(t, []string{"a.zip", "b.zip", "notes/readme.txt"}, all)

	var notes []string
	require.NoError(t, conn.ListObjects(ctx, "datasets", "notes/", func(name string) error {
		notes = append(notes, name)
		return nil
	}))
	assert.Equal(t, []string{"notes/readme.txt"}, notes)
}

func TestLocalAdapterRejectsEscapingPaths(t *testing.T) {
	conn, err := NewLocalAdapter(storageConfig.StorageConfig{BaseDir: t.TempDir()}, "archive")
	require.NoError(t, err)

	_, err = conn.Download(context.Background(), "datasets", "../../etc/passwd")
	assert.ErrorContains(t, err, "outside of base_dir")
}

func TestLocalAdapterRequiresBaseDir(t *testing.T) {
	_, err := NewLocalAdapter(storageConfig.StorageConfig{}, "archive")
	assert.Error(t, err)
}

func TestLocalAdapterMissingBucketListsNothing(t *testing.T) {
	conn, err := NewLocalAdapter(storageConfig.StorageConfig{BaseDir: t.TempDir()}, "archive")
	require.NoError(t, err)

	called := false
	require.NoError(t, conn.ListObjects(context.Background(), "nope", "", func(string) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}
