package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/blobtosql/pkg/batch/core/metrics"
)

// CompositeRecorder forwards every call to each of its recorders in order.
type CompositeRecorder []metrics.MetricRecorder

func (c CompositeRecorder) RecordRunStart(ctx context.Context, dataset string, firstBatch int64) {
	for _, r := range c {
		r.RecordRunStart(ctx, dataset, firstBatch)
	}
}

func (c CompositeRecorder) RecordRunEnd(ctx context.Context, result model.RunResult) {
	for _, r := range c {
		r.RecordRunEnd(ctx, result)
	}
}

func (c CompositeRecorder) RecordBatch(ctx context.Context, dataset string, batchNumber int64, records int, duration time.Duration) {
	for _, r := range c {
		r.RecordBatch(ctx, dataset, batchNumber, records, duration)
	}
}

func (c CompositeRecorder) RecordRangesEmitted(ctx context.Context, dataset string, count int) {
	for _, r := range c {
		r.RecordRangesEmitted(ctx, dataset, count)
	}
}

func (c CompositeRecorder) RecordFailure(ctx context.Context, dataset string, stage model.RunState, category string) {
	for _, r := range c {
		r.RecordFailure(ctx, dataset, stage, category)
	}
}

func (c CompositeRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	for _, r := range c {
		r.RecordDuration(ctx, name, duration, tags)
	}
}

var _ metrics.MetricRecorder = CompositeRecorder(nil)
