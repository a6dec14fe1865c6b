package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

func TestPrometheusRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewPrometheusRecorder()

	r.RecordRunStart(ctx, "people", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.checkpointGauge.WithLabelValues("people")))

	r.RecordBatch(ctx, "people", 3, 100000, 2*time.Second)
	r.RecordBatch(ctx, "people", 4, 50000, time.Second)
	r.RecordRangesEmitted(ctx, "people", 15)
	r.RecordFailure(ctx, "people", model.StateLoading, "constraint")
	r.RecordRunEnd(ctx, model.RunResult{
		Dataset: "people", NextBatch: 5, FinalState: model.StateDone,
		StartTime: time.Unix(0, 0), EndTime: time.Unix(10, 0),
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.batchCounter.WithLabelValues("people")))
	assert.Equal(t, 150000.0, testutil.ToFloat64(r.recordCounter.WithLabelValues("people")))
	assert.Equal(t, 15.0, testutil.ToFloat64(r.rangeCounter.WithLabelValues("people")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failureCounter.WithLabelValues("people", "LOADING", "constraint")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runStatusCounter.WithLabelValues("people", "DONE")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.checkpointGauge.WithLabelValues("people")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.batchDurationSeconds))
}

func TestServerExposesRegistry(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordRangesEmitted(context.Background(), "people", 10)

	s := NewServer("127.0.0.1:0", r.GetRegistry())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `blobtosql_ranges_emitted_total{dataset="people"} 10`)
}

func TestOTelRecorder(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	r, err := NewOTelRecorder(mp)
	require.NoError(t, err)
	r.RecordBatch(ctx, "people", 1, 100, time.Second)
	r.RecordBatch(ctx, "people", 2, 50, time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["blobtosql.batches"])
	assert.Equal(t, int64(150), sums["blobtosql.records"])
}

func TestOpenTelemetryTracer(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewOpenTelemetryTracer(tp)

	ctx, endRun := tracer.StartRunSpan(context.Background(), "run-1", "people")
	stageCtx, endStage := tracer.StartStageSpan(ctx, model.StateLoading, 7)
	tracer.RecordEvent(stageCtx, "batch_loaded", map[string]interface{}{"records": 100, "table": "person"})
	tracer.RecordError(stageCtx, "loader", exception.NewDuplicateKeyError("loader", "duplicate Id", errors.New("UNIQUE constraint failed")))
	endStage()
	endRun()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	stage, run := spans[0], spans[1]
	assert.Equal(t, "blobtosql.loading", stage.Name())
	assert.Equal(t, "blobtosql.run", run.Name())
	assert.Equal(t, run.SpanContext().SpanID(), stage.Parent().SpanID())
	assert.Equal(t, codes.Error, stage.Status().Code)
	assert.Equal(t, "duplicate Id", stage.Status().Description)

	names := []string{}
	for _, ev := range stage.Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "batch_loaded")
	assert.Contains(t, names, "exception")
}

func TestCompositeRecorderFansOut(t *testing.T) {
	a, b := NewPrometheusRecorder(), NewPrometheusRecorder()
	CompositeRecorder{a, b}.RecordRangesEmitted(context.Background(), "people", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.rangeCounter.WithLabelValues("people")))
	assert.Equal(t, 3.0, testutil.ToFloat64(b.rangeCounter.WithLabelValues("people")))
}
