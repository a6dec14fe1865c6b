// Package sql keeps the run history in the destination database.
package sql

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/blobtosql/pkg/batch/core/domain/repository"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// SQLRunRepository implements the repository.RunRepository interface.
type SQLRunRepository struct {
	conn database.DBConnection
}

var _ repository.RunRepository = (*SQLRunRepository)(nil)

// NewSQLRunRepository creates a new instance of SQLRunRepository.
func NewSQLRunRepository(conn database.DBConnection) *SQLRunRepository {
	return &SQLRunRepository{conn: conn}
}

// SaveRun implements repository.RunRepository. A missing table is logged and ignored,
// since run history is informational and migrations may be disabled.
func (r *SQLRunRepository) SaveRun(ctx context.Context, run model.RunRecord) error {
	const op = "SQLRunRepository.SaveRun"
	entity := fromDomainRun(run)

	_, err := r.conn.ExecuteUpdate(ctx, entity, "CREATE", RunTable, nil)
	if err != nil {
		if r.conn.IsTableNotExistError(err) {
			logger.Warnf("Table '%s' does not exist; run %s is not recorded. Run 'migrate up' to create it.", RunTable, run.RunID)
			return nil
		}
		if r.conn.IsDuplicateKeyError(err) {
			return exception.NewDuplicateKeyError(op, fmt.Sprintf("run %s is already recorded", run.RunID), err)
		}
		return exception.NewBatchError(op, fmt.Sprintf("failed to save run %s", run.RunID), err, exception.CategoryTransient)
	}
	return nil
}

// FindRuns implements repository.RunRepository.
func (r *SQLRunRepository) FindRuns(ctx context.Context, dataset string, limit int) ([]model.RunRecord, error) {
	const op = "SQLRunRepository.FindRuns"
	var entities []RunEntity
	err := r.conn.ExecuteQueryAdvanced(ctx, &entities, RunTable, map[string]interface{}{"dataset": dataset}, "start_time desc", limit)
	if err != nil {
		if r.conn.IsTableNotExistError(err) {
			return nil, exception.NewBatchError(op, fmt.Sprintf("table '%s' does not exist; run 'migrate up'", RunTable), err, exception.CategoryConfig)
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find runs of dataset '%s'", dataset), err, exception.CategoryTransient)
	}

	runs := make([]model.RunRecord, 0, len(entities))
	for _, e := range entities {
		runs = append(runs, toDomainRun(e))
	}
	return runs, nil
}

// Module provides the run history of the destination connection.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewSQLRunRepository,
		fx.As(new(repository.RunRepository)),
	)),
)
