package kafka

import (
	"context"
	"log/slog"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

// NoopEventBus logs events without sending them to Kafka. Used when no brokers are configured.
type NoopEventBus struct{}

// NewNoopEventBus returns a new no-op event publisher.
func NewNoopEventBus() *NoopEventBus {
	return &NoopEventBus{}
}

func (n *NoopEventBus) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	slog.DebugContext(ctx, "event::order_created", "order_id", order.ID)
	return nil
}

func (n *NoopEventBus) PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	slog.DebugContext(ctx, "event::order_status_changed", "order_id", order.ID, "from", from, "to", order.Status)
	return nil
}
