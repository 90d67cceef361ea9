package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the order lifecycle instruments.
type Metrics struct {
	ordersCreatedTotal    metric.Int64Counter
	orderCreationDuration metric.Float64Histogram
	transitionsTotal      metric.Int64Counter
	transitionDuration    metric.Float64Histogram
	stockUnitsTotal       metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersCreatedTotal, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of orders created"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	m.orderCreationDuration, err = meter.Float64Histogram(
		"order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_creation_duration histogram: %w", err)
	}

	m.transitionsTotal, err = meter.Int64Counter(
		"order_transitions_total",
		metric.WithDescription("Order lifecycle actions by outcome"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_transitions_total counter: %w", err)
	}

	m.transitionDuration, err = meter.Float64Histogram(
		"order_transition_duration_seconds",
		metric.WithDescription("Duration of order lifecycle actions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_transition_duration histogram: %w", err)
	}

	m.stockUnitsTotal, err = meter.Int64Counter(
		"inventory_stock_units_total",
		metric.WithDescription("Product units reserved or released by orders"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create inventory_stock_units_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, success bool) {
	m.ordersCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", outcome(success)),
	))
}

func (m *Metrics) RecordOrderCreationDuration(ctx context.Context, durationSeconds float64) {
	m.orderCreationDuration.Record(ctx, durationSeconds)
}

// RecordTransition counts one lifecycle action; result is "success" or the error kind.
func (m *Metrics) RecordTransition(ctx context.Context, action, result string, durationSeconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("result", result),
	)
	m.transitionsTotal.Add(ctx, 1, attrs)
	m.transitionDuration.Record(ctx, durationSeconds, metric.WithAttributes(attribute.String("action", action)))
}

// RecordStockMovement counts units moved by direction ("reserve" or "release").
func (m *Metrics) RecordStockMovement(ctx context.Context, direction string, units int) {
	m.stockUnitsTotal.Add(ctx, int64(units), metric.WithAttributes(
		attribute.String("direction", direction),
	))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
