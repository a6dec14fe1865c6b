// Package loader writes a batch of records into the destination table.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/core/tx"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

const moduleName = "loader"

// DefaultTransferSize is the number of rows sent per INSERT statement.
const DefaultTransferSize = 20000

// columnsPerRow is the number of bind variables one Person adds to an INSERT.
const columnsPerRow = 3

// maxBindVars is the bind variable limit of one statement per database type.
var maxBindVars = map[string]int{
	"sqlite":   32766,
	"mysql":    65535,
	"postgres": 65535,
}

var (
	conflictColumns = []string{"id"}
	updateColumns   = []string{"firstname", "surname"}
)

// BulkLoader loads a batch atomically: either every record of the batch becomes visible or none does.
type BulkLoader interface {
	// Load writes batch and returns the number of rows the database reported as affected.
	Load(ctx context.Context, batch model.Batch) (int64, error)
}

// Options configures a SQLBulkLoader.
type Options struct {
	// Table is the destination table. Empty selects model.DefaultPersonTable.
	Table string
	// TransferSize bounds the rows per statement. Zero selects DefaultTransferSize.
	// It is lowered to what the database accepts in one statement.
	TransferSize int
	// Policy decides what happens to a record whose Id already exists.
	Policy model.DuplicatePolicy
}

// SQLBulkLoader loads a batch in one transaction, TransferSize rows per statement.
type SQLBulkLoader struct {
	conn database.DBConnection
	opts Options
}

var _ BulkLoader = (*SQLBulkLoader)(nil)

// NewSQLBulkLoader creates a loader writing through conn.
func NewSQLBulkLoader(conn database.DBConnection, opts Options) *SQLBulkLoader {
	if opts.Table == "" {
		opts.Table = model.DefaultPersonTable
	}
	if opts.TransferSize <= 0 {
		opts.TransferSize = DefaultTransferSize
	}
	if limit, ok := maxBindVars[conn.Type()]; ok && opts.TransferSize*columnsPerRow > limit {
		logger.Debugf("Transfer size %d exceeds the %d bind variables %s accepts; using %d rows per statement.",
			opts.TransferSize, limit, conn.Type(), limit/columnsPerRow)
		opts.TransferSize = limit / columnsPerRow
	}
	if opts.Policy == "" {
		opts.Policy = model.DuplicatePolicyUpsert
	}
	return &SQLBulkLoader{conn: conn, opts: opts}
}

// TransferSize returns the number of rows sent per statement.
func (l *SQLBulkLoader) TransferSize() int {
	return l.opts.TransferSize
}

// Load implements BulkLoader. An empty batch is a no-op.
func (l *SQLBulkLoader) Load(ctx context.Context, batch model.Batch) (int64, error) {
	if batch.Len() == 0 {
		return 0, nil
	}

	tm := l.conn.TransactionManager()
	t, err := tm.Begin(ctx)
	if err != nil {
		return 0, exception.NewBatchErrorf(moduleName, exception.CategoryTransient, err,
			"failed to begin transaction for batch %d", batch.Number)
	}

	var affected int64
	for start := 0; start < batch.Len(); start += l.opts.TransferSize {
		end := start + l.opts.TransferSize
		if end > batch.Len() {
			end = batch.Len()
		}
		chunk := batch.Records[start:end]
		n, err := l.write(ctx, t, &chunk)
		if err != nil {
			if rbErr := tm.Rollback(t); rbErr != nil {
				logger.Warnf("Rollback of batch %d failed: %v", batch.Number, rbErr)
			}
			return 0, l.classify(ctx, batch, err)
		}
		affected += n
	}

	if err := tm.Commit(t); err != nil {
		return 0, l.classify(ctx, batch, err)
	}
	logger.Debugf("Loaded batch %d into '%s': %d records, %d rows affected.", batch.Number, l.opts.Table, batch.Len(), affected)
	return affected, nil
}

func (l *SQLBulkLoader) write(ctx context.Context, t tx.Tx, rows *[]model.Person) (int64, error) {
	switch l.opts.Policy {
	case model.DuplicatePolicyFail:
		return t.ExecuteUpdate(ctx, rows, "CREATE", l.opts.Table, nil)
	case model.DuplicatePolicySkip:
		return t.ExecuteUpsert(ctx, rows, l.opts.Table, conflictColumns, nil)
	default:
		return t.ExecuteUpsert(ctx, rows, l.opts.Table, conflictColumns, updateColumns)
	}
}

func (l *SQLBulkLoader) classify(ctx context.Context, batch model.Batch, err error) error {
	if l.conn.IsDuplicateKeyError(err) {
		return exception.NewDuplicateKeyError(moduleName,
			fmt.Sprintf("batch %d contains an Id that already exists in '%s' or occurs twice in the batch", batch.Number, l.opts.Table), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return exception.NewBatchErrorf(moduleName, exception.CategoryTransient, errors.Join(ctx.Err(), err),
			"loading batch %d was interrupted", batch.Number)
	}
	if l.conn.IsTableNotExistError(err) {
		return exception.NewBatchErrorf(moduleName, exception.CategoryConfig, err,
			"destination table '%s' does not exist; run the migrate command", l.opts.Table)
	}
	return exception.NewBatchErrorf(moduleName, exception.CategoryTransient, err, "failed to load batch %d", batch.Number)
}
