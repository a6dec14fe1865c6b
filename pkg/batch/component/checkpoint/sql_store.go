package checkpoint

import (
	"context"
	"time"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// SQLStore keeps checkpoints as rows of a table keyed by dataset.
type SQLStore struct {
	conn    database.DBConnection
	table   string
	dataset string
	now     func() time.Time
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a store on table. An empty table selects model.DefaultCheckpointTable.
func NewSQLStore(conn database.DBConnection, table, dataset string) *SQLStore {
	if table == "" {
		table = model.DefaultCheckpointTable
	}
	return &SQLStore{
		conn:    conn,
		table:   table,
		dataset: dataset,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dataset implements Store.
func (s *SQLStore) Dataset() string {
	return s.dataset
}

// Peek implements Store.
func (s *SQLStore) Peek(ctx context.Context) (model.Checkpoint, bool, error) {
	var rows []model.Checkpoint
	err := s.conn.ExecuteQueryAdvanced(ctx, &rows, s.table, map[string]interface{}{"dataset": s.dataset}, "", 1)
	if err != nil {
		if s.conn.IsTableNotExistError(err) {
			return model.Checkpoint{}, false, exception.NewBatchErrorf(moduleName, exception.CategoryConfig, err,
				"checkpoint table '%s' does not exist; run the migrate command", s.table)
		}
		return model.Checkpoint{}, false, exception.NewBatchErrorf(moduleName, exception.CategoryTransient, err,
			"failed to read checkpoint of dataset '%s'", s.dataset)
	}
	if len(rows) == 0 {
		return model.Checkpoint{}, false, nil
	}
	return rows[0], true, nil
}

// Advance implements Store.
// Version 0 inserts the first row; a concurrent insert surfaces as a duplicate key
// and is reported as a conflict. Later versions update WHERE version = expected.
func (s *SQLStore) Advance(ctx context.Context, expected model.Checkpoint, nextBatch int64) (model.Checkpoint, error) {
	if err := validateAdvance(expected, nextBatch); err != nil {
		return model.Checkpoint{}, err
	}
	next := model.Checkpoint{
		Dataset:     s.dataset,
		BatchNumber: nextBatch,
		Version:     expected.Version + 1,
		UpdatedAt:   s.now(),
	}

	if expected.Version == 0 {
		if _, err := s.conn.ExecuteUpdate(ctx, &next, "CREATE", s.table, nil); err != nil {
			if s.conn.IsDuplicateKeyError(err) {
				return model.Checkpoint{}, conflict(s.dataset, expected, err)
			}
			return model.Checkpoint{}, exception.NewBatchErrorf(moduleName, exception.CategoryTransient, err,
				"failed to create checkpoint of dataset '%s'", s.dataset)
		}
	} else {
		affected, err := s.conn.ExecuteUpdate(ctx, &next, "UPDATE", s.table, map[string]interface{}{"version": expected.Version})
		if err != nil {
			return model.Checkpoint{}, exception.NewBatchErrorf(moduleName, exception.CategoryTransient, err,
				"failed to update checkpoint of dataset '%s'", s.dataset)
		}
		if affected == 0 {
			return model.Checkpoint{}, conflict(s.dataset, expected, nil)
		}
	}

	logger.Debugf("Checkpoint of dataset '%s' advanced to batch %d (version %d).", s.dataset, next.BatchNumber, next.Version)
	return next, nil
}
