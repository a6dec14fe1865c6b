package metrics

import (
	"context"

	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing.
type Tracer interface {
	// StartRunSpan starts the span covering one run of dataset.
	// The returned function ends the span.
	StartRunSpan(ctx context.Context, runID, dataset string) (context.Context, func())

	// StartStageSpan starts a child span for one stage of batchNumber.
	StartStageSpan(ctx context.Context, stage model.RunState, batchNumber int64) (context.Context, func())

	// RecordError records an error in the current span.
	//
	// module: the component where the error occurred (e.g. "loader", "emitter").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
