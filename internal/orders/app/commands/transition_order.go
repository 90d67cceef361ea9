package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

// Action names a lifecycle operation on an existing order.
type Action string

const (
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionCancel       Action = "cancel"
	ActionUpdateStatus Action = "update_status"
	ActionAddTracking  Action = "add_tracking"
)

// TransitionOrderCommand asks for one lifecycle action. Status is used by
// update_status; Label and Location by add_tracking; Note by reject (as the
// reason), update_status and add_tracking.
type TransitionOrderCommand struct {
	Caller   domain.Caller
	OrderID  string
	Action   Action
	Status   string
	Label    string
	Location string
	Note     string
}

func (c TransitionOrderCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return fmt.Errorf("%w: order_id is required", domain.ErrValidation)
	}

	switch c.Action {
	case ActionCancel:
		if strings.TrimSpace(c.Caller.ID) == "" {
			return fmt.Errorf("%w: authentication required", domain.ErrUnauthorized)
		}
	case ActionApprove, ActionReject, ActionUpdateStatus, ActionAddTracking:
		if err := c.Caller.Require(domain.RoleManager, domain.RoleAdmin); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrValidation, c.Action)
	}

	switch c.Action {
	case ActionUpdateStatus:
		if strings.TrimSpace(c.Status) == "" {
			return fmt.Errorf("%w: status is required", domain.ErrValidation)
		}
		if _, ok := domain.ParseStatus(c.Status); !ok {
			return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, c.Status)
		}
	case ActionAddTracking:
		if strings.TrimSpace(c.Label) == "" {
			return fmt.Errorf("%w: tracking status is required", domain.ErrValidation)
		}
	}
	return nil
}

// plan computes the transition the action requests on order.
func (c TransitionOrderCommand) plan(order domain.Order, now time.Time) (domain.Transition, error) {
	switch c.Action {
	case ActionApprove:
		return order.Approve(now)
	case ActionReject:
		return order.Reject(c.Note, now)
	case ActionCancel:
		return order.Cancel(c.Caller, now)
	case ActionUpdateStatus:
		status, _ := domain.ParseStatus(c.Status)
		return order.ChangeStatus(status, c.Note, now)
	case ActionAddTracking:
		return order.Track(c.Label, c.Location, c.Note, now)
	default:
		return domain.Transition{}, fmt.Errorf("%w: unknown action %q", domain.ErrValidation, c.Action)
	}
}

// TransitionResult is the order after the action and the transition applied.
type TransitionResult struct {
	Order      domain.Order
	Transition domain.Transition
}

type TransitionOrderHandler interface {
	Handle(ctx context.Context, cmd TransitionOrderCommand) (*TransitionResult, error)
}

type TransitionOrderCommandHandler struct {
	uow    ports.UnitOfWork
	events ports.EventBus
	cache  ports.OrderCache
	logger *slog.Logger
	now    func() time.Time
}

func NewTransitionOrderCommandHandler(
	uow ports.UnitOfWork,
	events ports.EventBus,
	cache ports.OrderCache,
	logger *slog.Logger,
	now func() time.Time,
) *TransitionOrderCommandHandler {
	return &TransitionOrderCommandHandler{
		uow:    uow,
		events: events,
		cache:  cache,
		logger: logger,
		now:    now,
	}
}

func (h *TransitionOrderCommandHandler) Handle(ctx context.Context, cmd TransitionOrderCommand) (*TransitionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result, err := h.applyOrderTransition(ctx, cmd.OrderID, func(order domain.Order) (domain.Transition, error) {
		return cmd.plan(order, h.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	if err := h.cache.Invalidate(ctx, result.Order.ID); err != nil {
		h.logger.WarnContext(ctx, "failed to invalidate cached order", "order_id", result.Order.ID, "error", err)
	}
	if result.Transition.StatusChanged() {
		if err := h.events.PublishOrderStatusChanged(ctx, result.Order, result.Transition.From); err != nil {
			h.logger.WarnContext(ctx, "order updated but failed to publish event",
				"order_id", result.Order.ID,
				"error", err,
			)
		}
	}

	return result, nil
}

// applyOrderTransition is the only path that mutates an existing order. The
// status compare-and-set, the tracking append and any stock release commit
// together or not at all.
func (h *TransitionOrderCommandHandler) applyOrderTransition(
	ctx context.Context,
	orderID string,
	plan func(domain.Order) (domain.Transition, error),
) (*TransitionResult, error) {
	var result TransitionResult
	err := h.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		t, err := plan(*order)
		if err != nil {
			return err
		}

		if err := tx.Orders().ApplyTransition(ctx, t); err != nil {
			return err
		}
		if t.Release != nil {
			if err := tx.Inventory().Release(ctx, t.Release.ProductID, t.Release.Quantity); err != nil {
				return err
			}
		}

		result = TransitionResult{Order: order.Apply(t), Transition: t}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
