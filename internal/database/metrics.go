package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records storage latency per operation and pool saturation.
type Metrics struct {
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.queryDuration, err = meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_duration histogram: %w", err)
	}

	m.queryErrors, err = meter.Int64Counter(
		"db_query_errors_total",
		metric.WithDescription("Database operations that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_errors_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordQuery(ctx context.Context, operation string, durationSeconds float64, success bool) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.queryDuration.Record(ctx, durationSeconds, attrs)
	if !success {
		m.queryErrors.Add(ctx, 1, attrs)
	}
}

// ObservePool registers gauges reporting the pool's connection counts.
func ObservePool(meter metric.Meter, pool *pgxpool.Pool) error {
	total, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Open connections in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("create db_pool_connections gauge: %w", err)
	}
	acquired, err := meter.Int64ObservableGauge("db_pool_acquired_connections",
		metric.WithDescription("Connections currently checked out of the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("create db_pool_acquired_connections gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stat := pool.Stat()
		o.ObserveInt64(total, int64(stat.TotalConns()))
		o.ObserveInt64(acquired, int64(stat.AcquiredConns()))
		return nil
	}, total, acquired)
	if err != nil {
		return fmt.Errorf("register pool callback: %w", err)
	}
	return nil
}
