package ports

import (
	"context"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

// OrderCache is a read-through cache in front of OrderRepository.GetByID.
// A miss is reported as (nil, nil).
type OrderCache interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	Set(ctx context.Context, order domain.Order) error
	Invalidate(ctx context.Context, id string) error
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.Order, error) { return nil, nil }
func (NoopCache) Set(context.Context, domain.Order) error            { return nil }
func (NoopCache) Invalidate(context.Context, string) error           { return nil }
