package ports

import (
	"context"
	"math"
	"time"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

// OrderRepository exposes the read side of order persistence.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	Stats(ctx context.Context, since time.Time) (domain.OrderStats, error)
}

// ListFilter narrows list queries. Results are newest first, pages are 1-based.
type ListFilter struct {
	Statuses []domain.OrderStatus
	BuyerID  string
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps page and page size to sane bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	// Offset plus one page must not overflow.
	if maxPage := math.MaxInt / f.PageSize; f.Page > maxPage {
		f.Page = maxPage
	}
	return f
}

// Offset is the number of rows to skip for the filter's page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Matches reports whether order passes the status and buyer filters.
func (f ListFilter) Matches(order domain.Order) bool {
	if f.BuyerID != "" && order.BuyerID != f.BuyerID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if order.Status == s {
			return true
		}
	}
	return false
}
