package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

// peopleCSV returns n headerless rows with Ids 1..n.
func peopleCSV(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "%d,First%d,Last%d\n", i, i, i)
	}
	return sb.String()
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCSVSourceSkipThenTake(t *testing.T) {
	ctx := context.Background()
	src := NewCSVSource(strings.NewReader(peopleCSV(25)), nil, ',')

	require.NoError(t, src.Skip(ctx, 10))
	batch, err := src.Take(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 10)
	assert.Equal(t, model.Person{ID: 11, Firstname: "First11", Surname: "Last11"}, batch[0])
	assert.EqualValues(t, 20, batch[9].ID)

	batch, err = src.Take(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 5, "short read only at end of stream")

	batch, err = src.Take(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.EqualValues(t, 25, src.Position())
}

func TestCSVSourceSkipPastEndIsMalformed(t *testing.T) {
	src := NewCSVSource(strings.NewReader(peopleCSV(3)), nil, ',')

	err := src.Skip(context.Background(), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrMalformedInput)
	assert.Contains(t, err.Error(), "stream ended after 3 records")
}

func TestCSVSourceRejectsBadRows(t *testing.T) {
	ctx := context.Background()

	_, err := NewCSVSource(strings.NewReader("1,Ada,Lovelace\nx,Alan,Turing\n"), nil, ',').Take(ctx, 5)
	assert.ErrorIs(t, err, exception.ErrMalformedInput)
	assert.Contains(t, err.Error(), "record 2")

	_, err = NewCSVSource(strings.NewReader("1,Ada\n"), nil, ',').Take(ctx, 5)
	assert.ErrorIs(t, err, exception.ErrMalformedInput)
}

func TestCSVSourceDelimiterAndCancel(t *testing.T) {
	src := NewCSVSource(strings.NewReader("7;Ada;Lovelace\n"), nil, ';')
	got, err := src.Take(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []model.Person{{ID: 7, Firstname: "Ada", Surname: "Lovelace"}}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewCSVSource(strings.NewReader(peopleCSV(2)), nil, ',').Take(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveSourceSingleEntry(t *testing.T) {
	data := zipArchive(t, map[string]string{"people.csv": peopleCSV(4)})

	src, err := NewArchiveSource(bytes.NewReader(data), int64(len(data)), 0)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "people.csv", src.Entry)
	got, err := src.Take(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestArchiveSourceEntryCount(t *testing.T) {
	empty := zipArchive(t, map[string]string{"dir/": ""})
	_, err := NewArchiveSource(bytes.NewReader(empty), int64(len(empty)), 0)
	assert.ErrorIs(t, err, exception.ErrMalformedInput)
	assert.Contains(t, err.Error(), "no data file")

	two := zipArchive(t, map[string]string{"a.csv": "1,a,b\n", "b.csv": "2,c,d\n"})
	_, err = NewArchiveSource(bytes.NewReader(two), int64(len(two)), 0)
	assert.ErrorIs(t, err, exception.ErrMalformedInput)
	assert.Contains(t, err.Error(), "exactly one data file")

	garbage := []byte("not a zip")
	_, err = NewArchiveSource(bytes.NewReader(garbage), int64(len(garbage)), 0)
	assert.ErrorIs(t, err, exception.ErrMalformedInput)
}

type streamStorage struct {
	body []byte
	err  error
}

func (s streamStorage) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.body)), nil
}

func (s streamStorage) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	return nil
}

func (s streamStorage) ListObjects(ctx context.Context, bucket, prefix string, fn func(string) error) error {
	return nil
}

func TestOpenArchiveSpoolsStreams(t *testing.T) {
	spoolDir := t.TempDir()
	data := zipArchive(t, map[string]string{"people.csv": peopleCSV(3)})

	src, err := OpenArchive(context.Background(), streamStorage{body: data}, "datasets", "people.zip", Options{SpoolDir: spoolDir})
	require.NoError(t, err)

	spooled, err := os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Len(t, spooled, 1)

	got, err := src.Take(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	require.NoError(t, src.Close())
	spooled, err = os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Empty(t, spooled, "spool file removed on close")
}

func TestOpenArchiveDownloadFailureIsTransient(t *testing.T) {
	_, err := OpenArchive(context.Background(), streamStorage{err: io.ErrUnexpectedEOF}, "datasets", "people.zip", Options{})
	require.Error(t, err)
	assert.Equal(t, exception.CategoryTransient, exception.CategoryOf(err))
}
