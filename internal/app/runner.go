package app

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	"github.com/tigerroll/blobtosql/pkg/batch/adapter/queue"
	"github.com/tigerroll/blobtosql/pkg/batch/adapter/storage"
	"github.com/tigerroll/blobtosql/pkg/batch/component/checkpoint"
	"github.com/tigerroll/blobtosql/pkg/batch/component/emitter"
	"github.com/tigerroll/blobtosql/pkg/batch/component/loader"
	"github.com/tigerroll/blobtosql/pkg/batch/component/migration"
	"github.com/tigerroll/blobtosql/pkg/batch/component/source"
	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/repository"
	"github.com/tigerroll/blobtosql/pkg/batch/core/metrics"
	"github.com/tigerroll/blobtosql/pkg/batch/engine/orchestrator"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// RunnerParams defines the dependencies of NewRunner.
type RunnerParams struct {
	fx.In
	Config      *config.Config
	Destination database.DBConnection
	Archives    storage.StorageConnection
	Publisher   queue.Publisher
	Loader      loader.BulkLoader
	Stores      *StoreFactory
	Runs        repository.RunRepository
	Recorder    metrics.MetricRecorder
	Tracer      metrics.Tracer
	Migration   migration.Params
}

// Runner runs archives through the orchestrator.
type Runner struct {
	p RunnerParams
}

// NewRunner creates a Runner.
func NewRunner(p RunnerParams) *Runner {
	return &Runner{p: p}
}

// Run loads archive, an object name in the configured source bucket, resuming from its checkpoint.
func (r *Runner) Run(ctx context.Context, archive string) (model.RunResult, error) {
	c := r.p.Config.Blobtosql
	dataset := model.DatasetFromArchive(archive)
	if dataset == "" {
		return model.RunResult{}, exception.NewBatchErrorf(moduleName, exception.CategoryConfig, nil,
			"cannot derive a dataset name from archive '%s'", archive)
	}

	if c.Infrastructure.AutoMigrate {
		if err := Migrate(ctx, r.p.Migration, "up"); err != nil {
			return model.RunResult{}, err
		}
	}

	src, err := source.OpenArchive(ctx, r.p.Archives, c.Source.Bucket, archive, source.Options{
		Delimiter: []rune(c.Source.Delimiter)[0],
		SpoolDir:  c.Source.SpoolDir,
	})
	if err != nil {
		return model.RunResult{}, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warnf("Failed to close archive '%s': %v", archive, err)
		}
	}()

	o, err := orchestrator.New(orchestrator.Dependencies{
		Source:   src,
		Store:    r.p.Stores.Checkpoint(dataset),
		Loader:   r.p.Loader,
		Emitter:  emitter.NewRangeEmitter(r.p.Publisher, c.Queue.RangeQueue, int(c.Batch.BatchSize), int(c.Batch.RangeWidth)),
		Lease:    r.p.Stores.Lease(dataset),
		Recorder: r.p.Recorder,
		Tracer:   r.p.Tracer,
	}, orchestrator.Options{
		Dataset:            dataset,
		BatchSize:          c.Batch.BatchSize,
		MaxBatchNumber:     c.Batch.MaxBatchNumber,
		LeaseRenewInterval: r.p.Stores.RenewInterval(),
		LeaseTTL:           r.p.Stores.LeaseTTL(),
	})
	if err != nil {
		return model.RunResult{}, err
	}
	result, runErr := o.Run(ctx)
	r.record(ctx, result, runErr)
	return result, runErr
}

// record saves result to the run history. A failure to do so does not fail the run.
func (r *Runner) record(ctx context.Context, result model.RunResult, runErr error) {
	run := model.RunRecord{RunResult: result}
	if runErr != nil {
		run.Failure = runErr.Error()
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.p.Runs.SaveRun(saveCtx, run); err != nil {
		logger.Warnf("Failed to record run %s: %v", result.RunID, err)
	}
}

// History returns up to limit runs of dataset, most recent first.
func (r *Runner) History(ctx context.Context, dataset string, limit int) ([]model.RunRecord, error) {
	return r.p.Runs.FindRuns(ctx, dataset, limit)
}

// Datasets lists the archives of the source bucket together with their checkpoints.
func (r *Runner) Datasets(ctx context.Context, fn func(archive string, cp model.Checkpoint) error) error {
	bucket := r.p.Config.Blobtosql.Source.Bucket
	return r.p.Archives.ListObjects(ctx, bucket, "", func(objectName string) error {
		if !strings.EqualFold(path.Ext(objectName), ".zip") {
			return nil
		}
		cp, err := checkpoint.Current(ctx, r.p.Stores.Checkpoint(model.DatasetFromArchive(objectName)))
		if err != nil {
			return fmt.Errorf("checkpoint of '%s': %w", objectName, err)
		}
		return fn(objectName, cp)
	})
}

// LoadedRows counts the rows of the destination table.
func (r *Runner) LoadedRows(ctx context.Context) (int64, error) {
	return r.p.Destination.Count(ctx, &model.Person{}, r.p.Config.Blobtosql.Batch.DestinationTable, nil)
}

// Migrate applies command ("up" or "down") of the embedded migrations to the destination.
func Migrate(ctx context.Context, p migration.Params, command string) error {
	switch command {
	case "up":
		return p.Migrator.Up(ctx, p.MigrationsFS, "")
	case "down":
		return p.Migrator.Down(ctx, p.MigrationsFS, "")
	default:
		return exception.NewBatchErrorf(moduleName, exception.CategoryConfig, nil,
			"unknown migration command '%s'", command)
	}
}
