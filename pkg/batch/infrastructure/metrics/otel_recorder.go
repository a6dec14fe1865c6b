package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/blobtosql/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/tigerroll/blobtosql"

// OTelRecorder records metrics through OpenTelemetry instruments.
type OTelRecorder struct {
	runs          metric.Int64Counter
	batches       metric.Int64Counter
	records       metric.Int64Counter
	ranges        metric.Int64Counter
	failures      metric.Int64Counter
	batchDuration metric.Float64Histogram
	opDuration    metric.Float64Histogram
}

// NewOTelRecorder creates the instruments on a meter of mp.
func NewOTelRecorder(mp metric.MeterProvider) (*OTelRecorder, error) {
	meter := mp.Meter(instrumentationName)
	r := &OTelRecorder{}
	var err error
	if r.runs, err = meter.Int64Counter("blobtosql.runs", metric.WithDescription("Loader runs by final state.")); err != nil {
		return nil, err
	}
	if r.batches, err = meter.Int64Counter("blobtosql.batches", metric.WithDescription("Batches completed.")); err != nil {
		return nil, err
	}
	if r.records, err = meter.Int64Counter("blobtosql.records", metric.WithDescription("Records loaded."), metric.WithUnit("{record}")); err != nil {
		return nil, err
	}
	if r.ranges, err = meter.Int64Counter("blobtosql.ranges", metric.WithDescription("Range messages published.")); err != nil {
		return nil, err
	}
	if r.failures, err = meter.Int64Counter("blobtosql.failures", metric.WithDescription("Run failures by stage and category.")); err != nil {
		return nil, err
	}
	if r.batchDuration, err = meter.Float64Histogram("blobtosql.batch.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.opDuration, err = meter.Float64Histogram("blobtosql.operation.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

func datasetAttr(dataset string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("dataset", dataset))
}

func (r *OTelRecorder) RecordRunStart(ctx context.Context, dataset string, firstBatch int64) {}

func (r *OTelRecorder) RecordRunEnd(ctx context.Context, result model.RunResult) {
	r.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dataset", result.Dataset),
		attribute.String("state", string(result.FinalState)),
	))
}

func (r *OTelRecorder) RecordBatch(ctx context.Context, dataset string, batchNumber int64, records int, duration time.Duration) {
	r.batches.Add(ctx, 1, datasetAttr(dataset))
	r.records.Add(ctx, int64(records), datasetAttr(dataset))
	r.batchDuration.Record(ctx, duration.Seconds(), datasetAttr(dataset))
}

func (r *OTelRecorder) RecordRangesEmitted(ctx context.Context, dataset string, count int) {
	r.ranges.Add(ctx, int64(count), datasetAttr(dataset))
}

func (r *OTelRecorder) RecordFailure(ctx context.Context, dataset string, stage model.RunState, category string) {
	r.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("stage", string(stage)),
		attribute.String("category", category),
	))
}

func (r *OTelRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("name", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.opDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OTelRecorder)(nil)
