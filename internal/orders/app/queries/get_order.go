package queries

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID.
type GetOrderQuery struct {
	Caller  domain.Caller
	OrderID string
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.Caller.ID) == "" {
		return fmt.Errorf("%w: authentication required", domain.ErrUnauthorized)
	}
	if strings.TrimSpace(q.OrderID) == "" {
		return fmt.Errorf("%w: order_id is required", domain.ErrValidation)
	}
	return nil
}

// GetOrderQueryHandler reads an order through the cache. Buyers only see
// their own orders.
type GetOrderQueryHandler struct {
	repo   ports.OrderRepository
	cache  ports.OrderCache
	logger *slog.Logger
}

func NewGetOrderQueryHandler(repo ports.OrderRepository, cache ports.OrderCache, logger *slog.Logger) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{repo: repo, cache: cache, logger: logger}
}

func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.load(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}

	if !query.Caller.IsStaff() && !order.OwnedBy(query.Caller) {
		return nil, fmt.Errorf("%w: order belongs to another buyer", domain.ErrUnauthorized)
	}
	return order, nil
}

func (h *GetOrderQueryHandler) load(ctx context.Context, id string) (*domain.Order, error) {
	cached, err := h.cache.Get(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "order cache read failed", "order_id", id, "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	order, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := h.cache.Set(ctx, *order); err != nil {
		h.logger.WarnContext(ctx, "order cache write failed", "order_id", id, "error", err)
	}
	return order, nil
}
