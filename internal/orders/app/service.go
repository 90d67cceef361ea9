package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dejobratic/garment-orders/internal/orders/app/commands"
	"github.com/dejobratic/garment-orders/internal/orders/app/queries"
	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/metrics"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

// Service bundles use cases for handling orders via the API.
type Service struct {
	idemStore   ports.IdempotencyStore
	createOrder commands.CreateOrderHandler
	transition  commands.TransitionOrderHandler
	getOrder    *queries.GetOrderQueryHandler
	listOrders  *queries.ListOrdersQueryHandler
	orderStats  *queries.OrderStatsQueryHandler
}

// Dependencies are the adapters the service runs on. Cache may be nil.
type Dependencies struct {
	Orders      ports.OrderRepository
	UnitOfWork  ports.UnitOfWork
	Events      ports.EventBus
	Cache       ports.OrderCache
	Idempotency ports.IdempotencyStore
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

type options struct {
	now   func() time.Time
	newID func() string
}

// Option configures the service.
type Option func(*options)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces the order id generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// NewService wires required dependencies.
func NewService(deps Dependencies, opts ...Option) *Service {
	o := options{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}

	cache := deps.Cache
	if cache == nil {
		cache = ports.NoopCache{}
	}

	create := commands.NewCreateOrderCommandHandler(deps.UnitOfWork, deps.Events, deps.Logger, o.now, o.newID)
	transition := commands.NewTransitionOrderCommandHandler(deps.UnitOfWork, deps.Events, cache, deps.Logger, o.now)

	return &Service{
		idemStore:   deps.Idempotency,
		createOrder: commands.NewObservableCreateOrderHandler(create, deps.Logger, deps.Metrics),
		transition:  commands.NewObservableTransitionOrderHandler(transition, deps.Logger, deps.Metrics),
		getOrder:    queries.NewGetOrderQueryHandler(deps.Orders, cache, deps.Logger),
		listOrders:  queries.NewListOrdersQueryHandler(deps.Orders),
		orderStats:  queries.NewOrderStatsQueryHandler(deps.Orders, o.now),
	}
}

// CreateOrderInput captures payload for creating an order.
type CreateOrderInput struct {
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

// CreateOrder places an order for the caller and reserves its stock.
func (s *Service) CreateOrder(ctx context.Context, caller domain.Caller, input CreateOrderInput) (*commands.CreateOrderResult, error) {
	return s.createOrder.Handle(ctx, commands.CreateOrderCommand{
		Caller:           caller,
		ProductID:        input.ProductID,
		Quantity:         input.Quantity,
		ShippingAddress:  input.ShippingAddress,
		PhoneNumber:      input.PhoneNumber,
		Notes:            input.Notes,
		PaymentMethod:    input.PaymentMethod,
		PaymentType:      input.PaymentType,
		PaymentReference: input.PaymentReference,
		TotalAmount:      input.TotalAmount,
	})
}

// GetOrder retrieves an order by ID.
func (s *Service) GetOrder(ctx context.Context, caller domain.Caller, id string) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{Caller: caller, OrderID: id})
}

// ListOrders returns one page of the orders in scope.
func (s *Service) ListOrders(ctx context.Context, query queries.ListOrdersQuery) (*queries.OrderPage, error) {
	return s.listOrders.Handle(ctx, query)
}

// OrderStats summarizes orders for the admin dashboard.
func (s *Service) OrderStats(ctx context.Context, caller domain.Caller) (*domain.OrderStats, error) {
	return s.orderStats.Handle(ctx, queries.OrderStatsQuery{Caller: caller})
}

// CancelOrder withdraws a pending order on behalf of its buyer.
func (s *Service) CancelOrder(ctx context.Context, caller domain.Caller, id string) (*domain.Order, error) {
	return s.apply(ctx, commands.TransitionOrderCommand{Caller: caller, OrderID: id, Action: commands.ActionCancel})
}

func (s *Service) ApproveOrder(ctx context.Context, caller domain.Caller, id string) (*domain.Order, error) {
	return s.apply(ctx, commands.TransitionOrderCommand{Caller: caller, OrderID: id, Action: commands.ActionApprove})
}

func (s *Service) RejectOrder(ctx context.Context, caller domain.Caller, id, reason string) (*domain.Order, error) {
	return s.apply(ctx, commands.TransitionOrderCommand{
		Caller:  caller,
		OrderID: id,
		Action:  commands.ActionReject,
		Note:    reason,
	})
}

// UpdateStatus moves an order to status, which must be a legal successor.
func (s *Service) UpdateStatus(ctx context.Context, caller domain.Caller, id, status, note string) (*domain.Order, error) {
	return s.apply(ctx, commands.TransitionOrderCommand{
		Caller:  caller,
		OrderID: id,
		Action:  commands.ActionUpdateStatus,
		Status:  status,
		Note:    note,
	})
}

// TrackingInput is a free-text tracking entry.
type TrackingInput struct {
	Status   string
	Location string
	Note     string
}

func (s *Service) AddTracking(ctx context.Context, caller domain.Caller, id string, input TrackingInput) (*domain.Order, error) {
	return s.apply(ctx, commands.TransitionOrderCommand{
		Caller:   caller,
		OrderID:  id,
		Action:   commands.ActionAddTracking,
		Label:    input.Status,
		Location: input.Location,
		Note:     input.Note,
	})
}

func (s *Service) apply(ctx context.Context, cmd commands.TransitionOrderCommand) (*domain.Order, error) {
	result, err := s.transition.Handle(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &result.Order, nil
}

// ClaimIdempotencyKey reserves key for a create request, or returns the
// response stored by an earlier one.
func (s *Service) ClaimIdempotencyKey(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Claim(ctx, key)
}

// SaveIdempotentResponse fills a claimed key with the response to replay.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// ReleaseIdempotencyKey drops a claim whose request did not create an order.
func (s *Service) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return s.idemStore.Release(ctx, key)
}
