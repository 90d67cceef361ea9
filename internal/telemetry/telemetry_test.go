package telemetry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func testConfig() Config {
	return Config{
		ServiceName:    "garment-orders-api",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		SampleRate:     1.0,
	}
}

func shutdown(t *testing.T, tel *Telemetry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, tel.Shutdown(ctx))
	otel.SetTracerProvider(noop.NewTracerProvider())
	otel.SetMeterProvider(metricnoop.NewMeterProvider())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, ErrMissingServiceName},
		{"missing version", func(c *Config) { c.ServiceVersion = "" }, ErrMissingServiceVersion},
		{"sample rate above one", func(c *Config) { c.SampleRate = 1.5 }, ErrInvalidSampleRate},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }, ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInitialize(t *testing.T) {
	t.Run("exports spans and metrics through the given sinks", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableTracing = true
		cfg.EnableMetrics = true

		spans := tracetest.NewInMemoryExporter()
		reader := sdkmetric.NewManualReader()
		tel, err := Initialize(context.Background(), cfg, WithSpanExporter(spans), WithMetricReader(reader))
		require.NoError(t, err)
		defer shutdown(t, tel)

		require.NotNil(t, tel.TracerProvider())
		require.NotNil(t, tel.MeterProvider())

		counter, err := Meter("orders").Int64Counter("orders_created_total")
		require.NoError(t, err)
		counter.Add(context.Background(), 1)

		_, span := StartSpan(context.Background(), "CreateOrderCommand.Handle")
		span.End()
		require.NoError(t, tel.TracerProvider().ForceFlush(context.Background()))
		assert.Len(t, spans.GetSpans(), 1)

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		require.Len(t, rm.ScopeMetrics, 1)
		assert.Equal(t, instrumentationName+"/orders", rm.ScopeMetrics[0].Scope.Name)
	})

	t.Run("leaves disabled signals unset", func(t *testing.T) {
		tel, err := Initialize(context.Background(), testConfig())
		require.NoError(t, err)
		defer shutdown(t, tel)

		assert.Nil(t, tel.TracerProvider())
		assert.Nil(t, tel.MeterProvider())
	})

	t.Run("requires an endpoint without an explicit exporter", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableTracing = true

		tel, err := Initialize(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrMissingEndpoint)
		assert.Nil(t, tel)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.ServiceName = ""

		_, err := Initialize(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{-1, "AlwaysOffSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.rate), func(t *testing.T) {
			assert.Contains(t, newSampler(tt.rate).Description(), tt.want)
		})
	}
}

func TestInitializeSignals(t *testing.T) {
	t.Run("metrics only", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableMetrics = true

		tel, err := Initialize(context.Background(), cfg, WithMetricReader(sdkmetric.NewManualReader()))
		require.NoError(t, err)
		defer shutdown(t, tel)

		assert.Nil(t, tel.TracerProvider())
		assert.NotNil(t, tel.MeterProvider())
	})

	t.Run("zero sample rate records nothing", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableTracing = true
		cfg.SampleRate = 0

		spans := tracetest.NewInMemoryExporter()
		tel, err := Initialize(context.Background(), cfg, WithSpanExporter(spans))
		require.NoError(t, err)
		defer shutdown(t, tel)

		_, span := StartSpan(context.Background(), "op")
		assert.False(t, span.IsRecording())
		span.End()
		require.NoError(t, tel.TracerProvider().ForceFlush(context.Background()))
		assert.Empty(t, spans.GetSpans())
	})

	t.Run("installs trace context and baggage propagation", func(t *testing.T) {
		tel, err := Initialize(context.Background(), testConfig())
		require.NoError(t, err)
		defer shutdown(t, tel)

		fields := otel.GetTextMapPropagator().Fields()
		assert.Contains(t, fields, "traceparent")
		assert.Contains(t, fields, "baggage")
	})

	t.Run("metrics need an endpoint without a reader", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableMetrics = true

		tel, err := Initialize(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrMissingEndpoint)
		assert.Nil(t, tel)
	})
}

func TestShutdownZeroTelemetry(t *testing.T) {
	var tel Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Nil(t, tel.TracerProvider())
	assert.Nil(t, tel.MeterProvider())
}
