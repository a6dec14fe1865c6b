// Package telemetry builds the OpenTelemetry tracer and meter providers.
// Without an OTLP endpoint both providers are no-ops.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"

	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// Providers holds the tracer and meter providers of the process.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	shutdown       []func(context.Context) error
}

// Resource returns the resource describing this process.
func Resource(cfg config.TelemetryConfig) *resource.Resource {
	name := cfg.ServiceName
	if name == "" {
		name = "blobtosql"
	}
	return resource.NewSchemaless(attribute.String("service.name", name))
}

// NewProviders creates the providers described by cfg.
func NewProviders(ctx context.Context, cfg config.TelemetryConfig) (*Providers, error) {
	if cfg.OTLPEndpoint == "" {
		logger.Debugf("OTLP endpoint not configured; tracing and OTel metrics are disabled.")
		return &Providers{
			TracerProvider: tracenoop.NewTracerProvider(),
			MeterProvider:  metricnoop.NewMeterProvider(),
		}, nil
	}

	res := Resource(cfg)
	spanExporter, metricExporter, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	logger.Infof("Exporting traces and metrics over OTLP/%s to %s.", strings.ToLower(cfg.OTLPProtocol), cfg.OTLPEndpoint)
	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		shutdown:       []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}, nil
}

func newExporters(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch strings.ToLower(cfg.OTLPProtocol) {
	case "", "grpc":
		traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		spanExporter, err := otlptracegrpc.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/gRPC trace exporter: %w", err)
		}
		metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/gRPC metric exporter: %w", err)
		}
		return spanExporter, metricExporter, nil
	case "http":
		traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		spanExporter, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/HTTP trace exporter: %w", err)
		}
		metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/HTTP metric exporter: %w", err)
		}
		return spanExporter, metricExporter, nil
	default:
		return nil, nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.OTLPProtocol)
	}
}

// Shutdown flushes and stops the providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func newProvidersWithLifecycle(lc fx.Lifecycle, cfg *config.Config) (*Providers, error) {
	p, err := NewProviders(context.Background(), cfg.Blobtosql.Telemetry)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
	lc.Append(fx.Hook{
		OnStop: p.Shutdown,
	})
	return p, nil
}

// Module provides *Providers and registers them as the global OpenTelemetry providers.
var Module = fx.Options(
	fx.Provide(newProvidersWithLifecycle),
)
