// Package source turns a dataset archive into a forward-only cursor of records.
package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

const moduleName = "source"

// ctxCheckInterval is how many rows are read between context checks.
const ctxCheckInterval = 4096

// RecordSource is a lazy, forward-only, non-restartable sequence of records.
type RecordSource interface {
	// Skip reads and discards the next n records. It fails with exception.ErrMalformedInput
	// when the stream ends first.
	Skip(ctx context.Context, n int64) error
	// Take returns the next up to n records. Fewer than n means the stream is exhausted.
	Take(ctx context.Context, n int) ([]model.Person, error)
	// Close releases the underlying stream.
	Close() error
}

// CSVSource reads headerless Id,Firstname,Surname rows.
type CSVSource struct {
	reader   *csv.Reader
	closer   io.Closer
	position int64
	eof      bool
}

var _ RecordSource = (*CSVSource)(nil)

// NewCSVSource creates a CSVSource over r. closer, if not nil, is closed by Close.
func NewCSVSource(r io.Reader, closer io.Closer, delimiter rune) *CSVSource {
	reader := csv.NewReader(bufio.NewReaderSize(r, 1<<20))
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = 3
	reader.ReuseRecord = true
	return &CSVSource{reader: reader, closer: closer}
}

// Position returns the number of records consumed so far, skipped ones included.
func (s *CSVSource) Position() int64 {
	return s.position
}

// Skip implements RecordSource.
func (s *CSVSource) Skip(ctx context.Context, n int64) error {
	for i := int64(0); i < n; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		_, err := s.next()
		if errors.Is(err, io.EOF) {
			return exception.NewMalformedInputError(moduleName,
				fmt.Sprintf("stream ended after %d records while skipping to record %d", s.position, s.position-i+n), nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Take implements RecordSource.
func (s *CSVSource) Take(ctx context.Context, n int) ([]model.Person, error) {
	if n <= 0 || s.eof {
		return []model.Person{}, nil
	}
	records := make([]model.Person, 0, n)
	for len(records) < n {
		if len(records)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := s.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		p, err := parsePerson(row)
		if err != nil {
			return nil, exception.NewMalformedInputError(moduleName, fmt.Sprintf("record %d", s.position), err)
		}
		records = append(records, p)
	}
	return records, nil
}

// next reads one row and advances the position.
func (s *CSVSource) next() ([]string, error) {
	if s.eof {
		return nil, io.EOF
	}
	row, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		s.eof = true
		return nil, io.EOF
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, exception.NewMalformedInputError(moduleName, fmt.Sprintf("record %d", s.position+1), err)
		}
		return nil, exception.NewBatchError(moduleName, "failed to read data file", err, exception.CategoryTransient)
	}
	s.position++
	return row, nil
}

// parsePerson maps the ordinal columns Id, Firstname, Surname.
func parsePerson(row []string) (model.Person, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
	if err != nil {
		return model.Person{}, fmt.Errorf("invalid Id %q: %w", row[0], err)
	}
	return model.Person{ID: id, Firstname: row[1], Surname: row[2]}, nil
}

// Close implements RecordSource.
func (s *CSVSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
