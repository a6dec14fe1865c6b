// Package metrics defines the observability abstractions the orchestrator reports through.
// Implementations live in pkg/batch/infrastructure/metrics.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
)

// MetricRecorder records metrics of loader runs.
type MetricRecorder interface {
	// RecordRunStart records that a run of dataset begins at firstBatch.
	RecordRunStart(ctx context.Context, dataset string, firstBatch int64)

	// RecordRunEnd records the outcome of a run.
	RecordRunEnd(ctx context.Context, result model.RunResult)

	// RecordBatch records a batch that was loaded, emitted and checkpointed.
	//
	// records: the number of records in the batch.
	// duration: wall time from the first record read to the checkpoint advance.
	RecordBatch(ctx context.Context, dataset string, batchNumber int64, records int, duration time.Duration)

	// RecordRangesEmitted records how many range messages were published for a batch.
	RecordRangesEmitted(ctx context.Context, dataset string, count int)

	// RecordFailure records a failure in stage, classified by category.
	RecordFailure(ctx context.Context, dataset string, stage model.RunState, category string)

	// RecordDuration records the execution time of a named operation.
	//
	// tags: additional attributes, e.g. `{"stage": "LOADING"}`.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
