package domain_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

func placeOrder() domain.PlaceOrder {
	return domain.PlaceOrder{
		ProductID:       "product-1",
		BuyerID:         "buyer-1",
		Quantity:        5,
		ShippingAddress: "12 Mall Road, Lahore",
		PhoneNumber:     "+92 300 0000000",
		PaymentMethod:   domain.PaymentMethodCOD,
		PaymentType:     domain.PaymentTypeCashOnDelivery,
	}
}

func product() domain.Product {
	return domain.Product{
		ID:       "product-1",
		Title:    "Denim jacket",
		Price:    decimal.RequireFromString("12.50"),
		Quantity: 10,
		MinOrder: 2,
	}
}

func TestNewOrder(t *testing.T) {
	t.Run("creates pending order with placed entry", func(t *testing.T) {
		order, err := domain.NewOrder("order-1", placeOrder(), product(), now)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusPending, order.Status)
		assert.True(t, decimal.RequireFromString("62.50").Equal(order.TotalAmount))
		assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
		require.Len(t, order.Tracking, 1)
		assert.Equal(t, "Order Placed", order.Tracking[0].Status)
		assert.Equal(t, now, order.CreatedAt)
	})

	t.Run("explicit positive total wins", func(t *testing.T) {
		p := placeOrder()
		p.TotalAmount = decimal.NewFromInt(50)

		order, err := domain.NewOrder("order-1", p, product(), now)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(50).Equal(order.TotalAmount))
	})

	t.Run("prepaid with reference is paid", func(t *testing.T) {
		p := placeOrder()
		p.PaymentMethod = domain.PaymentMethodStripe
		p.PaymentType = domain.PaymentTypeAdvance
		p.PaymentReference = "cs_test_123"

		order, err := domain.NewOrder("order-1", p, product(), now)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
		assert.Equal(t, "Online Store", order.Tracking[0].Location)
	})

	tests := []struct {
		name    string
		mutate  func(*domain.PlaceOrder, *domain.Product)
		wantErr error
	}{
		{"insufficient stock", func(p *domain.PlaceOrder, _ *domain.Product) { p.Quantity = 11 }, domain.ErrInsufficientStock},
		{"below minimum order", func(p *domain.PlaceOrder, _ *domain.Product) { p.Quantity = 1 }, domain.ErrBelowMinimumOrder},
		{"zero quantity", func(p *domain.PlaceOrder, _ *domain.Product) { p.Quantity = 0 }, domain.ErrValidation},
		{"missing address", func(p *domain.PlaceOrder, _ *domain.Product) { p.ShippingAddress = " " }, domain.ErrValidation},
		{"unknown payment method", func(p *domain.PlaceOrder, _ *domain.Product) { p.PaymentMethod = "barter" }, domain.ErrValidation},
		{"free product", func(_ *domain.PlaceOrder, pr *domain.Product) { pr.Price = decimal.Zero }, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, pr := placeOrder(), product()
			tt.mutate(&p, &pr)

			order, err := domain.NewOrder("order-1", p, pr, now)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, order)
		})
	}
}

func TestOrderValidate(t *testing.T) {
	valid := func(t *testing.T) domain.Order {
		order, err := domain.NewOrder("order-1", placeOrder(), product(), now)
		require.NoError(t, err)
		return *order
	}

	tests := []struct {
		name   string
		mutate func(*domain.Order)
	}{
		{"zero value", func(o *domain.Order) { *o = domain.Order{} }},
		{"blank id", func(o *domain.Order) { o.ID = "  " }},
		{"zero quantity", func(o *domain.Order) { o.Quantity = 0 }},
		{"zero total", func(o *domain.Order) { o.TotalAmount = decimal.Zero }},
		{"negative unit price", func(o *domain.Order) { o.UnitPrice = decimal.NewFromInt(-1) }},
		{"no tracking", func(o *domain.Order) { o.Tracking = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := valid(t)
			tt.mutate(&order)

			err := order.Validate()
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, domain.ErrValidation, domain.Kind(err))
		})
	}

	assert.NoError(t, valid(t).Validate())
}

func TestCallerRequire(t *testing.T) {
	assert.NoError(t, domain.Caller{ID: "m", Role: domain.RoleManager}.Require(domain.RoleManager, domain.RoleAdmin))
	assert.ErrorIs(t, domain.Caller{ID: "b", Role: domain.RoleBuyer}.Require(domain.RoleAdmin), domain.ErrUnauthorized)
	assert.ErrorIs(t, domain.Caller{Role: domain.RoleAdmin}.Require(domain.RoleAdmin), domain.ErrUnauthorized)
}

func TestKind(t *testing.T) {
	_, err := orderIn(domain.StatusDelivered).Approve(now)
	assert.Equal(t, domain.ErrInvalidTransition, domain.Kind(err))
	assert.Nil(t, domain.Kind(assert.AnError))
}

func TestStorageError(t *testing.T) {
	cause := fmt.Errorf("failed to connect to `user=orders database=orders`: 10.0.3.7:5432: dial error")
	err := fmt.Errorf("create order: %w", domain.NewStorageError(domain.ErrConflict, "storage unavailable, retry the request", cause))

	assert.Equal(t, domain.ErrConflict, domain.Kind(err))
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Error(), "10.0.3.7")
	assert.Equal(t, "create order: conflict: storage unavailable, retry the request", err.Error())
	assert.Contains(t, domain.Detail(err), "10.0.3.7")

	bare := domain.NewStorageError(domain.ErrValidation, "bad row", nil)
	assert.Equal(t, domain.ErrValidation, domain.Kind(bare))
	assert.Equal(t, "validation_error: bad row", domain.Detail(bare))
	assert.Equal(t, "plain", domain.Detail(fmt.Errorf("plain")))
	assert.Empty(t, domain.Detail(nil))
}
