package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

type CreateOrderCommand struct {
	Caller           domain.Caller
	ProductID        string
	Quantity         int
	ShippingAddress  string
	PhoneNumber      string
	Notes            string
	PaymentMethod    domain.PaymentMethod
	PaymentType      domain.PaymentType
	PaymentReference string
	TotalAmount      decimal.Decimal
}

func (c CreateOrderCommand) placeOrder() domain.PlaceOrder {
	return domain.PlaceOrder{
		ProductID:        c.ProductID,
		BuyerID:          c.Caller.ID,
		Quantity:         c.Quantity,
		ShippingAddress:  c.ShippingAddress,
		PhoneNumber:      c.PhoneNumber,
		Notes:            c.Notes,
		PaymentMethod:    c.PaymentMethod,
		PaymentType:      c.PaymentType,
		PaymentReference: c.PaymentReference,
		TotalAmount:      c.TotalAmount,
	}
}

// Validate checks the caller and the input fields that do not need storage.
func (c CreateOrderCommand) Validate() error {
	if err := c.Caller.Require(domain.RoleBuyer, domain.RoleManager, domain.RoleAdmin); err != nil {
		return err
	}
	return c.placeOrder().Validate()
}

// CreateOrderResult is the created order. Replayed is set when an order with
// the same payment reference already existed and was returned unchanged.
type CreateOrderResult struct {
	Order    domain.Order
	Replayed bool
}

type CreateOrderHandler interface {
	Handle(ctx context.Context, cmd CreateOrderCommand) (*CreateOrderResult, error)
}

type CreateOrderCommandHandler struct {
	uow    ports.UnitOfWork
	events ports.EventBus
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewCreateOrderCommandHandler(
	uow ports.UnitOfWork,
	events ports.EventBus,
	logger *slog.Logger,
	now func() time.Time,
	newID func() string,
) *CreateOrderCommandHandler {
	return &CreateOrderCommandHandler{
		uow:    uow,
		events: events,
		logger: logger,
		now:    now,
		newID:  newID,
	}
}

// Handle inserts a pending order and reserves its stock in one unit of work.
func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*CreateOrderResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result CreateOrderResult
	err := h.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		if cmd.PaymentReference != "" {
			existing, err := tx.Orders().FindByPaymentReference(ctx, cmd.PaymentReference)
			switch {
			case err == nil:
				result = CreateOrderResult{Order: *existing, Replayed: true}
				return nil
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
		}

		product, err := tx.Inventory().Product(ctx, cmd.ProductID)
		if err != nil {
			return err
		}

		order, err := domain.NewOrder(h.newID(), cmd.placeOrder(), product, h.now().UTC())
		if err != nil {
			return err
		}

		if err := tx.Orders().Insert(ctx, *order); err != nil {
			return err
		}
		if err := tx.Inventory().Reserve(ctx, order.ProductID, order.Quantity); err != nil {
			return err
		}

		result = CreateOrderResult{Order: *order}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		if err := h.events.PublishOrderCreated(ctx, result.Order); err != nil {
			h.logger.WarnContext(ctx, "order saved but failed to publish event",
				"order_id", result.Order.ID,
				"error", fmt.Sprintf("%v", err),
			)
		}
	}

	return &result, nil
}
