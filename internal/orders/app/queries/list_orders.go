package queries

import (
	"context"
	"fmt"
	"strings"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

// Scope selects which orders a list query covers.
type Scope string

const (
	// ScopeMine lists the caller's own orders.
	ScopeMine Scope = "mine"
	// ScopeAll lists every order, optionally filtered by status.
	ScopeAll Scope = "all"
	// ScopePending lists orders awaiting a manager decision.
	ScopePending Scope = "pending"
	// ScopeApproved lists orders a manager has accepted, in any fulfilment stage.
	ScopeApproved Scope = "approved"
)

type ListOrdersQuery struct {
	Caller   domain.Caller
	Scope    Scope
	Status   string
	Page     int
	PageSize int
}

// filter authorizes the query and translates it into a repository filter.
func (q ListOrdersQuery) filter() (ports.ListFilter, error) {
	f := ports.ListFilter{Page: q.Page, PageSize: q.PageSize}

	switch q.Scope {
	case ScopeMine:
		if strings.TrimSpace(q.Caller.ID) == "" {
			return f, fmt.Errorf("%w: authentication required", domain.ErrUnauthorized)
		}
		f.BuyerID = q.Caller.ID
	case ScopeAll:
		if err := q.Caller.Require(domain.RoleAdmin); err != nil {
			return f, err
		}
	case ScopePending:
		if err := q.Caller.Require(domain.RoleManager, domain.RoleAdmin); err != nil {
			return f, err
		}
		f.Statuses = []domain.OrderStatus{domain.StatusPending}
	case ScopeApproved:
		if err := q.Caller.Require(domain.RoleManager, domain.RoleAdmin); err != nil {
			return f, err
		}
		f.Statuses = domain.FulfilmentStatuses
	default:
		return f, fmt.Errorf("%w: unknown list scope %q", domain.ErrValidation, q.Scope)
	}

	if s := strings.TrimSpace(q.Status); s != "" && s != "all" {
		status, ok := domain.ParseStatus(s)
		if !ok {
			return f, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, s)
		}
		if q.Scope != ScopeAll && q.Scope != ScopeMine {
			return f, fmt.Errorf("%w: status filter is not supported for %s orders", domain.ErrValidation, q.Scope)
		}
		f.Statuses = []domain.OrderStatus{status}
	}

	return f.Normalize(), nil
}

// OrderPage is one page of a list query.
type OrderPage struct {
	Orders   []domain.Order `json:"orders"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) (*OrderPage, error) {
	f, err := query.filter()
	if err != nil {
		return nil, err
	}

	orders, err := h.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return &OrderPage{Orders: orders, Page: f.Page, PageSize: f.PageSize}, nil
}
