package ports

import (
	"context"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
)

// EventBus defines the contract for publishing order lifecycle events.
type EventBus interface {
	PublishOrderCreated(ctx context.Context, order domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error
}
