package ports

import (
	"context"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

// UnitOfWork runs fn atomically. If fn returns an error every write made
// through tx is rolled back; otherwise all of them are committed together.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx gives access to the stores participating in one unit of work.
type Tx interface {
	Orders() OrderWriter
	Inventory() InventoryLedger
}

// OrderWriter is the write side of order persistence.
type OrderWriter interface {
	// GetForUpdate loads the order and holds it until the unit of work ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*domain.Order, error)
	Insert(ctx context.Context, order domain.Order) error
	// ApplyTransition compare-and-sets the status from t.From to t.To and
	// appends t.Entry. It fails with domain.ErrInvalidTransition when the
	// stored status is no longer t.From.
	ApplyTransition(ctx context.Context, t domain.Transition) error
}

// InventoryLedger owns product stock. Reserve and Release are the only
// operations that change a product's quantity.
type InventoryLedger interface {
	Product(ctx context.Context, id string) (domain.Product, error)
	Reserve(ctx context.Context, productID string, amount int) error
	Release(ctx context.Context, productID string, amount int) error
}
