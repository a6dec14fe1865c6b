package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/zip"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/storage"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// Options configures how an archive is opened.
type Options struct {
	// Delimiter is the field delimiter of the data file. Zero means ','.
	Delimiter rune
	// SpoolDir receives the temporary copy of non-seekable downloads. Empty means os.TempDir().
	SpoolDir string
}

// readerAtFile is what the zip reader needs from a downloaded archive.
type readerAtFile interface {
	io.ReaderAt
	Stat() (os.FileInfo, error)
}

// ArchiveSource is a CSVSource over the single data file inside a zip archive.
type ArchiveSource struct {
	*CSVSource
	Entry   string
	closers []io.Closer
	spool   string
}

// OpenArchive downloads bucket/object from conn and opens its single entry.
// Streams that are not random-access (GCS readers) are spooled to a temporary file first.
func OpenArchive(ctx context.Context, conn storage.StorageExecutor, bucket, object string, opts Options) (*ArchiveSource, error) {
	rc, err := conn.Download(ctx, bucket, object)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to download archive %s/%s", bucket, object), err, exception.CategoryTransient)
	}

	src := &ArchiveSource{}
	file, ok := rc.(readerAtFile)
	if ok {
		src.closers = append(src.closers, rc)
	} else {
		spooled, err := spool(ctx, rc, opts.SpoolDir)
		rc.Close()
		if err != nil {
			return nil, err
		}
		src.spool = spooled.Name()
		src.closers = append(src.closers, spooled)
		file = spooled
	}

	info, err := file.Stat()
	if err != nil {
		src.Close()
		return nil, exception.NewBatchError(moduleName, "failed to stat archive", err, exception.CategoryTransient)
	}
	if err := src.openEntry(file, info.Size(), opts.Delimiter); err != nil {
		src.Close()
		return nil, err
	}
	logger.Infof("Opened archive %s/%s (%d bytes), data file %q.", bucket, object, info.Size(), src.Entry)
	return src, nil
}

// NewArchiveSource opens the single entry of an in-memory or on-disk zip archive.
func NewArchiveSource(r io.ReaderAt, size int64, delimiter rune) (*ArchiveSource, error) {
	src := &ArchiveSource{}
	if err := src.openEntry(r, size, delimiter); err != nil {
		return nil, err
	}
	return src, nil
}

func (a *ArchiveSource) openEntry(r io.ReaderAt, size int64, delimiter rune) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return exception.NewMalformedInputError(moduleName, "archive is not a readable zip file", err)
	}

	var entries []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		entries = append(entries, f)
	}
	switch len(entries) {
	case 0:
		return exception.NewMalformedInputError(moduleName, "archive contains no data file", nil)
	case 1:
	default:
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		return exception.NewMalformedInputError(moduleName, fmt.Sprintf("archive must contain exactly one data file, found %d: %s", len(entries), strings.Join(names, ", ")), nil)
	}

	entry, err := entries[0].Open()
	if err != nil {
		return exception.NewMalformedInputError(moduleName, fmt.Sprintf("failed to open data file %q", entries[0].Name), err)
	}
	a.Entry = entries[0].Name
	a.CSVSource = NewCSVSource(entry, nil, delimiter)
	a.closers = append([]io.Closer{entry}, a.closers...)
	return nil
}

// Close closes the entry and the archive and removes the spool file.
func (a *ArchiveSource) Close() error {
	var result *multierror.Error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	if a.spool != "" {
		if err := os.Remove(a.spool); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
		a.spool = ""
	}
	return result.ErrorOrNil()
}

// spool copies r into a temporary file, checking ctx between chunks.
func spool(ctx context.Context, r io.Reader, dir string) (*os.File, error) {
	f, err := os.CreateTemp(dir, "blobtosql-*.zip")
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create spool file", err, exception.CategoryTransient)
	}
	fail := func(err error) (*os.File, error) {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}

	buf := make([]byte, 1<<20)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fail(exception.NewBatchError(moduleName, "failed to write spool file", werr, exception.CategoryTransient))
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fail(exception.NewBatchError(moduleName, "failed to download archive", rerr, exception.CategoryTransient))
		}
	}
	logger.Debugf("Spooled %d bytes to %s.", written, f.Name())
	return f, nil
}
