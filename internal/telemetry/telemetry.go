package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	ErrInvalidConfig         = errors.New("invalid telemetry configuration")
	ErrMissingServiceName    = errors.New("service name is required")
	ErrMissingServiceVersion = errors.New("service version is required")
	ErrInvalidSampleRate     = errors.New("sample rate must be between 0.0 and 1.0")
	ErrMissingEndpoint       = errors.New("otlp endpoint is required when no exporter is provided")
)

// Config selects which signals are exported and where.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	// Insecure disables TLS towards the collector.
	Insecure       bool
	EnableTracing  bool
	EnableMetrics  bool
	SampleRate     float64
	MetricInterval time.Duration
}

func (c *Config) Validate() error {
	switch {
	case c.ServiceName == "":
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrMissingServiceName)
	case c.ServiceVersion == "":
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrMissingServiceVersion)
	case c.SampleRate < 0 || c.SampleRate > 1:
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidSampleRate)
	}
	return nil
}

// Telemetry owns the providers installed as otel globals. A zero Telemetry
// has nothing to flush.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

type Option func(*options)

type options struct {
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader
}

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exporter }
}

// WithMetricReader replaces the periodic OTLP metric reader.
func WithMetricReader(reader sdkmetric.Reader) Option {
	return func(o *options) { o.metricReader = reader }
}

// Initialize installs global providers for the enabled signals and the W3C
// trace-context propagator. Disabled signals keep the otel no-op providers.
func Initialize(ctx context.Context, cfg Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tel := &Telemetry{}
	if !cfg.EnableTracing && !cfg.EnableMetrics {
		return tel, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	if cfg.EnableTracing {
		exporter := o.spanExporter
		if exporter == nil {
			if exporter, err = newSpanExporter(ctx, cfg); err != nil {
				return nil, fmt.Errorf("initialize tracing: %w", err)
			}
		}
		tel.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(newSampler(cfg.SampleRate)),
			sdktrace.WithBatcher(exporter),
		)
		otel.SetTracerProvider(tel.tracerProvider)
	}

	if cfg.EnableMetrics {
		reader := o.metricReader
		if reader == nil {
			if reader, err = newMetricReader(ctx, cfg); err != nil {
				_ = tel.Shutdown(ctx)
				return nil, fmt.Errorf("initialize metrics: %w", err)
			}
		}
		tel.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		otel.SetMeterProvider(tel.meterProvider)
	}

	return tel, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
	)
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.OTLPEndpoint == "" {
		return nil, ErrMissingEndpoint
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return exporter, nil
}

func newMetricReader(ctx context.Context, cfg Config) (sdkmetric.Reader, error) {
	if cfg.OTLPEndpoint == "" {
		return nil, ErrMissingEndpoint
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}
	return sdkmetric.NewPeriodicReader(exporter, readerOpts...), nil
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Shutdown flushes and stops the providers. Each provider shuts down its own
// exporter or reader.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (t *Telemetry) TracerProvider() *sdktrace.TracerProvider {
	return t.tracerProvider
}

func (t *Telemetry) MeterProvider() *sdkmetric.MeterProvider {
	return t.meterProvider
}

// Meter returns a named meter from the global provider, which is a no-op
// provider when metrics are disabled.
func Meter(name string) metric.Meter {
	return otel.Meter(instrumentationName + "/" + name)
}
