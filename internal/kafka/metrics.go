package kafka

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records producer latency and failed publishes per topic.
type Metrics struct {
	producerLatency metric.Float64Histogram
	publishErrors   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	latency, err := meter.Float64Histogram(
		"kafka_producer_latency_seconds",
		metric.WithDescription("Time to write one order event to the broker"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka_producer_latency histogram: %w", err)
	}

	publishErrors, err := meter.Int64Counter(
		"kafka_publish_errors_total",
		metric.WithDescription("Order events that could not be written after commit"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka_publish_errors_total counter: %w", err)
	}

	return &Metrics{producerLatency: latency, publishErrors: publishErrors}, nil
}

func (m *Metrics) RecordPublish(ctx context.Context, topic string, durationSeconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
		m.publishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
	}
	m.producerLatency.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("status", status),
	))
}
