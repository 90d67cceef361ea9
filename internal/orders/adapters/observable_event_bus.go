package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/garment-orders/internal/kafka"
	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
	"github.com/dejobratic/garment-orders/internal/telemetry"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
	topics  kafka.Topics
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics, topics kafka.Topics) *ObservableEventBus {
	if topics.OrderCreated == "" {
		topics.OrderCreated = ports.TopicOrderCreated
	}
	if topics.OrderStatusChanged == "" {
		topics.OrderStatusChanged = ports.TopicOrderStatusChanged
	}
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
		topics:  topics,
	}
}

func (e *ObservableEventBus) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	return e.observe(ctx, "EventBus.PublishOrderCreated", e.topics.OrderCreated,
		[]attribute.KeyValue{
			attribute.String("order.id", order.ID),
			attribute.String("event.type", kafka.EventOrderCreated),
		},
		func(ctx context.Context) error {
			return e.bus.PublishOrderCreated(ctx, order)
		})
}

func (e *ObservableEventBus) PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	return e.observe(ctx, "EventBus.PublishOrderStatusChanged", e.topics.OrderStatusChanged,
		[]attribute.KeyValue{
			attribute.String("order.id", order.ID),
			attribute.String("event.type", kafka.EventOrderStatusChanged),
			attribute.String("order.from", string(from)),
			attribute.String("order.to", string(order.Status)),
		},
		func(ctx context.Context) error {
			return e.bus.PublishOrderStatusChanged(ctx, order, from)
		})
}

func (e *ObservableEventBus) observe(ctx context.Context, spanName, topic string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, spanName, append(attrs, attribute.String("topic", topic))...)

	start := time.Now()
	err := fn(ctx)
	e.metrics.RecordPublish(ctx, topic, time.Since(start).Seconds(), err == nil)

	telemetry.EndSpan(span, err)
	return err
}
