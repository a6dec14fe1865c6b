package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
)

func TestNewProvidersWithoutEndpointIsNoop(t *testing.T) {
	p, err := NewProviders(context.Background(), config.TelemetryConfig{ServiceName: "blobtosql"})
	require.NoError(t, err)

	_, span := p.TracerProvider.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvidersRejectsUnknownProtocol(t *testing.T) {
	_, err := NewProviders(context.Background(), config.TelemetryConfig{OTLPEndpoint: "localhost:4317", OTLPProtocol: "udp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "udp")
}

func TestNewProvidersWithEndpoint(t *testing.T) {
	// Exporters connect lazily, so no collector is needed to build the providers.
	for _, protocol := range []string{"grpc", "http"} {
		t.Run(protocol, func(t *testing.T) {
			p, err := NewProviders(context.Background(), config.TelemetryConfig{
				OTLPEndpoint: "127.0.0.1:1",
				OTLPProtocol: protocol,
				OTLPInsecure: true,
			})
			require.NoError(t, err)
			_, span := p.TracerProvider.Tracer("test").Start(context.Background(), "real")
			assert.True(t, span.SpanContext().IsValid())
			span.End()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestResourceServiceName(t *testing.T) {
	res := Resource(config.TelemetryConfig{})
	v, ok := res.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "blobtosql", v.AsString())
}
