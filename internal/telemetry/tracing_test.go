package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupTracerProvider(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	t.Helper()

	exp := tracetest.NewInMemoryExporter()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)))

	return exp, func() { otel.SetTracerProvider(noop.NewTracerProvider()) }
}

func TestSpanHelpers(t *testing.T) {
	exp, cleanup := setupTracerProvider(t)
	defer cleanup()

	ctx, parent := StartSpan(context.Background(), "TransitionOrder", attribute.String("order.action", "reject"))
	_, child := StartSpan(ctx, "OrderWriter.ApplyTransition")
	AddSpanAttributes(child, attribute.String("order.id", "order-1"))
	EndSpan(child, nil)
	EndSpan(parent, errors.New("invalid_transition"))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	c, p := spans[0], spans[1]
	assert.Equal(t, "OrderWriter.ApplyTransition", c.Name)
	assert.Equal(t, p.SpanContext.SpanID(), c.Parent.SpanID())
	assert.Equal(t, codes.Ok, c.Status.Code)
	assert.Contains(t, c.Attributes, attribute.String("order.id", "order-1"))

	assert.Contains(t, p.Attributes, attribute.String("order.action", "reject"))
	assert.Equal(t, codes.Error, p.Status.Code)
	assert.Equal(t, "invalid_transition", p.Status.Description)
	require.Len(t, p.Events, 1)
	assert.Equal(t, "exception", p.Events[0].Name)
}

func TestHelpersTolerateNilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		AddSpanAttributes(nil, attribute.String("k", "v"))
		RecordSpanError(nil, errors.New("x"))
		SetSpanSuccess(nil)
		EndSpan(nil, errors.New("x"))
	})
}

func TestTraceIDs(t *testing.T) {
	traceID, spanID := TraceIDs(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)

	_, cleanup := setupTracerProvider(t)
	defer cleanup()

	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()

	traceID, spanID = TraceIDs(ctx)
	assert.Len(t, traceID, 32)
	assert.Len(t, spanID, 16)
}

func TestEndSpanStatus(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		code        codes.Code
		description string
		events      int
	}{
		{"success", nil, codes.Ok, "", 0},
		{"failure", errors.New("not_found: order o-1 does not exist"), codes.Error, "not_found: order o-1 does not exist", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, cleanup := setupTracerProvider(t)
			defer cleanup()

			_, span := StartSpan(context.Background(), "GetOrderQuery.Handle")
			EndSpan(span, tt.err)

			spans := exp.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.code, spans[0].Status.Code)
			assert.Equal(t, tt.description, spans[0].Status.Description)
			assert.Len(t, spans[0].Events, tt.events)
		})
	}
}

func TestRecordSpanErrorIgnoresNil(t *testing.T) {
	exp, cleanup := setupTracerProvider(t)
	defer cleanup()

	_, span := StartSpan(context.Background(), "op")
	RecordSpanError(span, nil)
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Empty(t, spans[0].Events)
}

func TestHelpersOnNonRecordingSpan(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	ctx, span := StartSpan(context.Background(), "op", attribute.String("k", "v"))
	assert.False(t, span.IsRecording())
	assert.NotPanics(t, func() {
		AddSpanAttributes(span, attribute.String("order.id", "order-1"))
		EndSpan(span, errors.New("x"))
	})

	traceID, spanID := TraceIDs(ctx)
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}

func TestTraceIDsFollowRemoteParent(t *testing.T) {
	exp, cleanup := setupTracerProvider(t)
	defer cleanup()

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	ctx, span := StartSpan(ctx, "CreateOrderCommand.Handle")
	traceID, spanID := TraceIDs(ctx)
	span.End()

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traceID)
	assert.NotEqual(t, parent.SpanID().String(), spanID)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, parent.SpanID(), spans[0].Parent.SpanID())
}
