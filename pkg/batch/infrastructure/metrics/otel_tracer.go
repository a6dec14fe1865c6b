package metrics

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/blobtosql/pkg/batch/core/metrics"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer on tp.
func NewOpenTelemetryTracer(tp trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: tp.Tracer(instrumentationName)}
}

// StartRunSpan starts the root span of a run.
func (t *OpenTelemetryTracer) StartRunSpan(ctx context.Context, runID, dataset string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "blobtosql.run", trace.WithAttributes(
		attribute.String("blobtosql.run_id", runID),
		attribute.String("blobtosql.dataset", dataset),
	))
	return ctx, func() { span.End() }
}

// StartStageSpan starts a span named after the stage, e.g. "blobtosql.loading".
func (t *OpenTelemetryTracer) StartStageSpan(ctx context.Context, stage model.RunState, batchNumber int64) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "blobtosql."+strings.ToLower(string(stage)), trace.WithAttributes(
		attribute.Int64("blobtosql.batch_number", batchNumber),
	))
	return ctx, func() { span.End() }
}

// RecordError records err on the current span and marks it failed.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(
		attribute.String("blobtosql.module", module),
		attribute.String("blobtosql.category", string(exception.CategoryOf(err))),
	))
	span.SetStatus(codes.Error, exception.ExtractErrorMessage(err))
}

// RecordEvent adds an event to the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, toAttribute(k, v))
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

func toAttribute(key string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	case bool:
		return attribute.Bool(key, val)
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
