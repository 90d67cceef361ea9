package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the gateway that collects payment.
type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "cod"
	PaymentMethodStripe  PaymentMethod = "stripe"
	PaymentMethodPayfast PaymentMethod = "payfast"
)

// PaymentType describes when payment is collected.
type PaymentType string

const (
	PaymentTypeCashOnDelivery PaymentType = "cashOnDelivery"
	PaymentTypeAdvance        PaymentType = "advancePayment"
	PaymentTypePartial        PaymentType = "partialPayment"
)

// PaymentStatus tracks whether the buyer has paid.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// TrackingEntry is one immutable line of an order's history.
type TrackingEntry struct {
	Status    string    `json:"status"`
	Location  string    `json:"location"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Order represents a buyer's request for a quantity of one product.
type Order struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	BuyerID          string          `json:"buyer_id"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ShippingAddress  string          `json:"shipping_address"`
	PhoneNumber      string          `json:"phone_number"`
	Notes            string          `json:"notes"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentType      PaymentType     `json:"payment_type"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Status           OrderStatus     `json:"status"`
	Tracking         []TrackingEntry `json:"tracking"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Product is the slice of the catalog entry the order core reads.
type Product struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	MinOrder int             `json:"min_order"`
}

// PlaceOrder carries the buyer's input for a new order.
type PlaceOrder struct {
	ProductID        string
	BuyerID          string
	Quantity         int
	ShippingAddress  string
	PhoneNumber      string
	Notes            string
	PaymentMethod    PaymentMethod
	PaymentType      PaymentType
	PaymentReference string
	// TotalAmount overrides unit price × quantity when positive.
	TotalAmount decimal.Decimal
}

// Validate checks the input fields that do not depend on the product.
func (p PlaceOrder) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"product_id", p.ProductID},
		{"buyer_id", p.BuyerID},
		{"shipping_address", p.ShippingAddress},
		{"phone_number", p.PhoneNumber},
		{"payment_method", string(p.PaymentMethod)},
		{"payment_type", string(p.PaymentType)},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	if p.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	}
	switch p.PaymentMethod {
	case PaymentMethodCOD, PaymentMethodStripe, PaymentMethodPayfast:
	default:
		return fmt.Errorf("%w: unknown payment_method %q", ErrValidation, p.PaymentMethod)
	}
	switch p.PaymentType {
	case PaymentTypeCashOnDelivery, PaymentTypeAdvance, PaymentTypePartial:
	default:
		return fmt.Errorf("%w: unknown payment_type %q", ErrValidation, p.PaymentType)
	}
	if p.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: total_amount must not be negative", ErrValidation)
	}
	return nil
}

// InitialPaymentStatus derives the payment status of a freshly placed order.
func (p PlaceOrder) InitialPaymentStatus() PaymentStatus {
	if p.PaymentMethod == PaymentMethodCOD || p.PaymentType == PaymentTypeCashOnDelivery {
		return PaymentPending
	}
	if p.PaymentReference != "" {
		return PaymentPaid
	}
	return PaymentPending
}

// NewOrder builds a pending order for product, checking stock and minimum quantity.
func NewOrder(id string, p PlaceOrder, product Product, now time.Time) (*Order, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if product.Quantity < p.Quantity {
		return nil, fmt.Errorf("%w: only %d units available in stock", ErrInsufficientStock, product.Quantity)
	}
	minOrder := product.MinOrder
	if minOrder < 1 {
		minOrder = 1
	}
	if p.Quantity < minOrder {
		return nil, fmt.Errorf("%w: minimum order quantity is %d", ErrBelowMinimumOrder, minOrder)
	}

	total := p.TotalAmount
	if !total.IsPositive() {
		total = product.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: invalid total amount", ErrValidation)
	}

	entry := TrackingEntry{
		Status:    "Order Placed",
		Location:  "Online",
		Note:      "Your order has been received",
		Timestamp: now,
	}
	if p.PaymentReference != "" {
		entry.Location = "Online Store"
		entry.Note = "Payment successful, order placed"
	}

	order := &Order{
		ID:               id,
		ProductID:        p.ProductID,
		BuyerID:          p.BuyerID,
		Quantity:         p.Quantity,
		UnitPrice:        product.Price,
		TotalAmount:      total,
		ShippingAddress:  strings.TrimSpace(p.ShippingAddress),
		PhoneNumber:      strings.TrimSpace(p.PhoneNumber),
		Notes:            p.Notes,
		PaymentMethod:    p.PaymentMethod,
		PaymentType:      p.PaymentType,
		PaymentStatus:    p.InitialPaymentStatus(),
		PaymentReference: p.PaymentReference,
		Status:           StatusPending,
		Tracking:         []TrackingEntry{entry},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return order, order.Validate()
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if o.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if !o.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: total_amount must be positive", ErrValidation)
	}
	if o.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit_price must not be negative", ErrValidation)
	}
	if len(o.Tracking) == 0 {
		return fmt.Errorf("%w: tracking must not be empty", ErrValidation)
	}
	return nil
}

// IsTerminal indicates whether the order is in a terminal state.
func (o Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// OwnedBy reports whether the buyer placed the order.
func (o Order) OwnedBy(c Caller) bool {
	return c.ID != "" && o.BuyerID == c.ID
}
