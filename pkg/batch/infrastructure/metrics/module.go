package metrics

import (
	"go.uber.org/fx"

	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	metrics "github.com/tigerroll/blobtosql/pkg/batch/core/metrics"
	"github.com/tigerroll/blobtosql/pkg/batch/infrastructure/telemetry"
)

func newRecorder(prom *PrometheusRecorder, providers *telemetry.Providers) (metrics.MetricRecorder, error) {
	otelRecorder, err := NewOTelRecorder(providers.MeterProvider)
	if err != nil {
		return nil, err
	}
	return CompositeRecorder{prom, otelRecorder}, nil
}

func newTracer(providers *telemetry.Providers) metrics.Tracer {
	return NewOpenTelemetryTracer(providers.TracerProvider)
}

func registerServer(lc fx.Lifecycle, cfg *config.Config, prom *PrometheusRecorder) {
	addr := cfg.Blobtosql.Telemetry.MetricsAddr
	if addr == "" {
		return
	}
	s := NewServer(addr, prom.GetRegistry())
	lc.Append(fx.Hook{OnStart: s.Start, OnStop: s.Stop})
}

// Module provides the Prometheus and OpenTelemetry backed recorder and tracer.
// It requires telemetry.Module; without it the core/metrics no-ops can be used directly.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(newRecorder),
	fx.Provide(newTracer),
	fx.Invoke(registerServer),
)
