package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/blobtosql/pkg/batch/core/metrics"
	logger "github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Run Metrics
	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec

	// Batch Metrics
	batchDurationSeconds *prometheus.HistogramVec
	batchCounter         *prometheus.CounterVec
	recordCounter        *prometheus.CounterVec
	rangeCounter         *prometheus.CounterVec
	checkpointGauge      *prometheus.GaugeVec
	failureCounter       *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blobtosql_run_duration_seconds",
			Help:    "Duration of loader runs.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"dataset", "state"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blobtosql_runs_total",
			Help: "Total number of loader runs by final state.",
		}, []string{"dataset", "state"}),
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blobtosql_batch_duration_seconds",
			Help:    "Duration of one read, load, emit and advance cycle.",
			Buckets: prometheus.DefBuckets,
		}, []string{"dataset"}),
		batchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blobtosql_batches_total",
			Help: "Total batches completed.",
		}, []string{"dataset"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blobtosql_records_loaded_total",
			Help: "Total records loaded into the destination table.",
		}, []string{"dataset"}),
		rangeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blobtosql_ranges_emitted_total",
			Help: "Total range messages published.",
		}, []string{"dataset"}),
		checkpointGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "blobtosql_checkpoint_batch",
			Help: "Next batch number recorded by the checkpoint.",
		}, []string{"dataset"}),
		failureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blobtosql_failures_total",
			Help: "Total run failures by stage and category.",
		}, []string{"dataset", "stage", "category"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blobtosql_operation_duration_seconds",
			Help:    "Duration of named operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name", "stage"}),
	}

	registry.MustRegister(
		r.runDurationSeconds,
		r.runStatusCounter,
		r.batchDurationSeconds,
		r.batchCounter,
		r.recordCounter,
		r.rangeCounter,
		r.checkpointGauge,
		r.failureCounter,
		r.operationDurationSeconds,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordRunStart implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, dataset string, firstBatch int64) {
	r.checkpointGauge.WithLabelValues(dataset).Set(float64(firstBatch))
	logger.Debugf("Metrics: run of '%s' started at batch %d.", dataset, firstBatch)
}

// RecordRunEnd implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, result model.RunResult) {
	state := string(result.FinalState)
	r.runStatusCounter.WithLabelValues(result.Dataset, state).Inc()
	if !result.EndTime.IsZero() {
		r.runDurationSeconds.WithLabelValues(result.Dataset, state).Observe(result.Duration().Seconds())
	}
	r.checkpointGauge.WithLabelValues(result.Dataset).Set(float64(result.NextBatch))
}

// RecordBatch implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordBatch(ctx context.Context, dataset string, batchNumber int64, records int, duration time.Duration) {
	r.batchCounter.WithLabelValues(dataset).Inc()
	r.recordCounter.WithLabelValues(dataset).Add(float64(records))
	r.batchDurationSeconds.WithLabelValues(dataset).Observe(duration.Seconds())
	r.checkpointGauge.WithLabelValues(dataset).Set(float64(batchNumber + 1))
}

// RecordRangesEmitted implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordRangesEmitted(ctx context.Context, dataset string, count int) {
	r.rangeCounter.WithLabelValues(dataset).Add(float64(count))
}

// RecordFailure implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordFailure(ctx context.Context, dataset string, stage model.RunState, category string) {
	r.failureCounter.WithLabelValues(dataset, string(stage), category).Inc()
}

// RecordDuration implements metrics.MetricRecorder. Only the "stage" tag becomes a label.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name, tags["stage"]).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
