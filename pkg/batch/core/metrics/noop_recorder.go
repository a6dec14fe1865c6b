package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordRunStart(ctx context.Context, dataset string, firstBatch int64) {}
func (r *NoOpMetricRecorder) RecordRunEnd(ctx context.Context, result model.RunResult) {}
func (r *NoOpMetricRecorder) RecordBatch(ctx context.Context, dataset string, batchNumber int64, records int, duration time.Duration) {
}
func (r *NoOpMetricRecorder) RecordRangesEmitted(ctx context.Context, dataset string, count int) {}
func (r *NoOpMetricRecorder) RecordFailure(ctx context.Context, dataset string, stage model.RunState, category string) {
}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartRunSpan(ctx context.Context, runID, dataset string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartStageSpan(ctx context.Context, stage model.RunState, batchNumber int64) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
