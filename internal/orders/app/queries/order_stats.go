package queries

import (
	"context"
	"time"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

type OrderStatsQuery struct {
	Caller domain.Caller
}

// OrderStatsQueryHandler builds the admin dashboard. The daily rollup covers
// the last seven calendar days including today.
type OrderStatsQueryHandler struct {
	repo ports.OrderRepository
	now  func() time.Time
}

func NewOrderStatsQueryHandler(repo ports.OrderRepository, now func() time.Time) *OrderStatsQueryHandler {
	return &OrderStatsQueryHandler{repo: repo, now: now}
}

func (h *OrderStatsQueryHandler) Handle(ctx context.Context, query OrderStatsQuery) (*domain.OrderStats, error) {
	if err := query.Caller.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}

	today := h.now().UTC().Truncate(24 * time.Hour)
	since := today.Add(-domain.StatsWindow + 24*time.Hour)

	stats, err := h.repo.Stats(ctx, since)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
