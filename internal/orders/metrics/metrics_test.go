package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumByAttr(t *testing.T, data metricdata.Aggregation, key string) map[string]int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", data)
	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestOrderCreationMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordOrderCreated(ctx, true)
	m.RecordOrderCreated(ctx, true)
	m.RecordOrderCreated(ctx, false)
	m.RecordOrderCreationDuration(ctx, 0.015)
	m.RecordOrderCreationDuration(ctx, 0.020)

	data := collect(t, reader)
	assert.Equal(t, map[string]int64{"success": 2, "error": 1}, sumByAttr(t, data["orders_created_total"], "status"))

	hist, ok := data["order_creation_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestTransitionAndStockMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTransition(ctx, "reject", "success", 0.01)
	m.RecordTransition(ctx, "reject", "invalid_transition", 0.02)
	m.RecordTransition(ctx, "approve", "success", 0.01)
	m.RecordStockMovement(ctx, "reserve", 5)
	m.RecordStockMovement(ctx, "release", 5)
	m.RecordStockMovement(ctx, "reserve", 2)

	data := collect(t, reader)
	assert.Equal(t, map[string]int64{"success": 2, "invalid_transition": 1}, sumByAttr(t, data["order_transitions_total"], "result"))
	assert.Equal(t, map[string]int64{"reserve": 7, "release": 5}, sumByAttr(t, data["inventory_stock_units_total"], "direction"))

	hist, ok := data["order_transition_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2, "duration is labelled by action only")
}
