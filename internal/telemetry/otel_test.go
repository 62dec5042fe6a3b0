package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"lireddit/server/internal/config"
)

func TestInitProvider_UnreachableCollector(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Nothing listens here; setup must still succeed.
	p, err := InitProvider(ctx, config.TelemetryConfig{
		OTLPEndpoint: "localhost:19999",
		OTLPInsecure: true,
		ServiceName:  "lireddit-test",
	})
	require.NoError(t, err)
	require.NotNil(t, p)

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	assert.NoError(t, p.Shutdown(shutCtx))
}

func TestInitProvider_RequiresEndpoint(t *testing.T) {
	_, err := InitProvider(context.Background(), config.TelemetryConfig{ServiceName: "lireddit"})
	require.Error(t, err)
}

func TestNewResource_ServiceName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		serviceName string
		want        string
	}{
		{name: "configured", serviceName: "lireddit-api", want: "lireddit-api"},
		{name: "defaulted", serviceName: "", want: TracerName},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res, err := newResource(context.Background(), tc.serviceName)
			require.NoError(t, err)

			got, ok := res.Set().Value(semconv.ServiceNameKey)
			require.True(t, ok)
			assert.Equal(t, tc.want, got.AsString())
		})
	}
}

func TestProvider_NilShutdown(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}
