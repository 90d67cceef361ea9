package commands_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejobratic/garment-orders/internal/orders/adapters/memory"
	"github.com/dejobratic/garment-orders/internal/orders/app/commands"
	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

var (
	fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	buyer    = domain.Caller{ID: "buyer-1", Role: domain.RoleBuyer}
	manager  = domain.Caller{ID: "manager-1", Role: domain.RoleManager}
	admin    = domain.Caller{ID: "admin-1", Role: domain.RoleAdmin}
)

type recordingEventBus struct {
	mu      sync.Mutex
	created []domain.Order
	changed []domain.OrderStatus
	err     error
}

func (b *recordingEventBus) PublishOrderCreated(_ context.Context, order domain.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.created = append(b.created, order)
	return nil
}

func (b *recordingEventBus) PublishOrderStatusChanged(_ context.Context, order domain.Order, _ domain.OrderStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.changed = append(b.changed, order.Status)
	return nil
}

func clock() time.Time { return fixedNow }

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("order-%02d", n)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seededStore(quantity, minOrder int) *memory.Store {
	store := memory.NewStore()
	store.AddProduct(domain.Product{
		ID:       "p1",
		Title:    "Denim jacket",
		Price:    decimal.RequireFromString("12.50"),
		Quantity: quantity,
		MinOrder: minOrder,
	})
	return store
}

func createCommand(qty int) commands.CreateOrderCommand {
	return commands.CreateOrderCommand{
		Caller:          buyer,
		ProductID:       "p1",
		Quantity:        qty,
		ShippingAddress: "12 Mill Road",
		PhoneNumber:     "+27 21 555 0101",
		PaymentMethod:   domain.PaymentMethodCOD,
		PaymentType:     domain.PaymentTypeCashOnDelivery,
	}
}

func newCreateHandler(store *memory.Store, events *recordingEventBus) *commands.CreateOrderCommandHandler {
	return commands.NewCreateOrderCommandHandler(store, events, discardLogger(), clock, sequentialIDs())
}

func TestCreateOrder(t *testing.T) {
	t.Run("reserves stock and seeds tracking", func(t *testing.T) {
		store := seededStore(10, 2)
		events := &recordingEventBus{}

		result, err := newCreateHandler(store, events).Handle(context.Background(), createCommand(3))
		require.NoError(t, err)

		order := result.Order
		assert.False(t, result.Replayed)
		assert.Equal(t, domain.StatusPending, order.Status)
		assert.True(t, decimal.RequireFromString("37.50").Equal(order.TotalAmount))
		assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
		require.Len(t, order.Tracking, 1)
		assert.Equal(t, "Order Placed", order.Tracking[0].Status)
		assert.Equal(t, fixedNow, order.CreatedAt)

		qty, _ := store.ProductQuantity("p1")
		assert.Equal(t, 7, qty)
		assert.Len(t, events.created, 1)
	})

	t.Run("uses explicit total amount", func(t *testing.T) {
		store := seededStore(10, 1)
		cmd := createCommand(2)
		cmd.TotalAmount = decimal.RequireFromString("20.00")

		result, err := newCreateHandler(store, &recordingEventBus{}).Handle(context.Background(), cmd)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("20.00").Equal(result.Order.TotalAmount))
	})

	t.Run("insufficient stock leaves inventory untouched", func(t *testing.T) {
		store := seededStore(2, 1)

		_, err := newCreateHandler(store, &recordingEventBus{}).Handle(context.Background(), createCommand(5))
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Contains(t, err.Error(), "only 2 units available")

		qty, _ := store.ProductQuantity("p1")
		assert.Equal(t, 2, qty)
	})

	t.Run("below minimum order", func(t *testing.T) {
		store := seededStore(10, 5)

		_, err := newCreateHandler(store, &recordingEventBus{}).Handle(context.Background(), createCommand(3))
		assert.ErrorIs(t, err, domain.ErrBelowMinimumOrder)
	})

	t.Run("unknown product", func(t *testing.T) {
		cmd := createCommand(1)
		cmd.ProductID = "missing"

		_, err := newCreateHandler(seededStore(10, 1), &recordingEventBus{}).Handle(context.Background(), cmd)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name   string
			modify func(*commands.CreateOrderCommand)
			want   error
		}{
			{"missing address", func(c *commands.CreateOrderCommand) { c.ShippingAddress = "" }, domain.ErrValidation},
			{"zero quantity", func(c *commands.CreateOrderCommand) { c.Quantity = 0 }, domain.ErrValidation},
			{"unknown payment method", func(c *commands.CreateOrderCommand) { c.PaymentMethod = "barter" }, domain.ErrValidation},
			{"anonymous caller", func(c *commands.CreateOrderCommand) { c.Caller = domain.Caller{} }, domain.ErrUnauthorized},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := seededStore(10, 1)
				cmd := createCommand(1)
				tt.modify(&cmd)

				_, err := newCreateHandler(store, &recordingEventBus{}).Handle(context.Background(), cmd)
				assert.ErrorIs(t, err, tt.want)

				qty, _ := store.ProductQuantity("p1")
				assert.Equal(t, 10, qty)
			})
		}
	})

	t.Run("payment reference returns existing order", func(t *testing.T) {
		store := seededStore(10, 1)
		events := &recordingEventBus{}
		handler := newCreateHandler(store, events)

		cmd := createCommand(2)
		cmd.PaymentMethod = domain.PaymentMethodStripe
		cmd.PaymentType = domain.PaymentTypeAdvance
		cmd.PaymentReference = "pi_123"

		first, err := handler.Handle(context.Background(), cmd)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, first.Order.PaymentStatus)
		assert.Equal(t, "Online Store", first.Order.Tracking[0].Location)

		second, err := handler.Handle(context.Background(), cmd)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.Order.ID, second.Order.ID)

		qty, _ := store.ProductQuantity("p1")
		assert.Equal(t, 8, qty)
		assert.Len(t, events.created, 1)
	})

	t.Run("returns order even when event publishing fails", func(t *testing.T) {
		store := seededStore(10, 1)
		events := &recordingEventBus{err: errors.New("broker down")}

		result, err := newCreateHandler(store, events).Handle(context.Background(), createCommand(1))
		require.NoError(t, err)
		assert.NotEmpty(t, result.Order.ID)

		_, err = store.GetByID(context.Background(), result.Order.ID)
		assert.NoError(t, err)
	})

	t.Run("concurrent orders never oversell", func(t *testing.T) {
		store := seededStore(5, 1)
		handler := newCreateHandler(store, &recordingEventBus{})

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := handler.Handle(context.Background(), createCommand(1)); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		qty, _ := store.ProductQuantity("p1")
		assert.Equal(t, 5, succeeded)
		assert.Equal(t, 0, qty)
	})
}
