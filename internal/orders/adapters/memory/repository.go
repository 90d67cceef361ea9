package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

// Store provides an in-memory order and product store useful for local
// development and tests. A unit of work holds the store lock for its whole
// duration and undoes its writes in reverse order when it fails.
type Store struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	products map[string]domain.Product
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		products: make(map[string]domain.Product),
	}
}

// AddProduct seeds or replaces a catalog entry.
func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// ProductQuantity returns the current stock of a product.
func (s *Store) ProductQuantity(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p.Quantity, ok
}

// GetByID fetches a single order by identifier.
func (s *Store) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s does not exist", domain.ErrNotFound, id)
	}
	return cloneOrder(order), nil
}

// List returns orders respecting the provided filter, newest first.
func (s *Store) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Order
	for _, order := range s.orders {
		if filter.Matches(order) {
			result = append(result, order)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := filter.Offset()
	if start >= len(result) {
		return []domain.Order{}, nil
	}
	end := min(start+filter.PageSize, len(result))

	page := make([]domain.Order, 0, end-start)
	for _, order := range result[start:end] {
		page = append(page, *cloneOrder(order))
	}
	return page, nil
}

// Stats aggregates every order, with the daily rollup limited to orders created since.
func (s *Store) Stats(_ context.Context, since time.Time) (domain.OrderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStatus := make(map[domain.OrderStatus]*domain.StatusRow)
	byDay := make(map[time.Time]*domain.DayRow)
	for _, order := range s.orders {
		row, ok := byStatus[order.Status]
		if !ok {
			row = &domain.StatusRow{Status: order.Status}
			byStatus[order.Status] = row
		}
		row.Count++
		row.Amount = row.Amount.Add(order.TotalAmount)

		if order.CreatedAt.Before(since) {
			continue
		}
		day := order.CreatedAt.UTC().Truncate(24 * time.Hour)
		d, ok := byDay[day]
		if !ok {
			d = &domain.DayRow{Day: day}
			byDay[day] = d
		}
		d.Count++
		d.Amount = d.Amount.Add(order.TotalAmount)
	}

	statuses := make([]domain.StatusRow, 0, len(byStatus))
	for _, row := range byStatus {
		statuses = append(statuses, *row)
	}
	days := make([]domain.DayRow, 0, len(byDay))
	for _, row := range byDay {
		days = append(days, *row)
	}
	return domain.BuildStats(statuses, days), nil
}

// Do runs fn while holding the store lock.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &tx{store: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type tx struct {
	store *Store
	undo  []func()
}

func (t *tx) Orders() ports.OrderWriter        { return orderWriter{t} }
func (t *tx) Inventory() ports.InventoryLedger { return ledger{t} }

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

type orderWriter struct{ tx *tx }

func (w orderWriter) GetForUpdate(_ context.Context, id string) (*domain.Order, error) {
	order, ok := w.tx.store.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s does not exist", domain.ErrNotFound, id)
	}
	return cloneOrder(order), nil
}

func (w orderWriter) FindByPaymentReference(_ context.Context, reference string) (*domain.Order, error) {
	if reference == "" {
		return nil, fmt.Errorf("%w: empty payment reference", domain.ErrNotFound)
	}
	for _, order := range w.tx.store.orders {
		if order.PaymentReference == reference {
			return cloneOrder(order), nil
		}
	}
	return nil, fmt.Errorf("%w: no order for payment reference %s", domain.ErrNotFound, reference)
}

func (w orderWriter) Insert(_ context.Context, order domain.Order) error {
	orders := w.tx.store.orders
	if _, exists := orders[order.ID]; exists {
		return fmt.Errorf("%w: order %s already exists", domain.ErrConflict, order.ID)
	}
	if order.PaymentReference != "" {
		for _, existing := range orders {
			if existing.PaymentReference == order.PaymentReference {
				return fmt.Errorf("%w: payment reference %s already used", domain.ErrConflict, order.PaymentReference)
			}
		}
	}
	orders[order.ID] = *cloneOrder(order)
	w.tx.undo = append(w.tx.undo, func() { delete(orders, order.ID) })
	return nil
}

func (w orderWriter) ApplyTransition(_ context.Context, tr domain.Transition) error {
	orders := w.tx.store.orders
	current, ok := orders[tr.OrderID]
	if !ok {
		return fmt.Errorf("%w: order %s does not exist", domain.ErrNotFound, tr.OrderID)
	}
	if current.Status != tr.From {
		return fmt.Errorf("%w: order %s is %s, expected %s", domain.ErrInvalidTransition, tr.OrderID, current.Status, tr.From)
	}
	orders[tr.OrderID] = current.Apply(tr)
	w.tx.undo = append(w.tx.undo, func() { orders[tr.OrderID] = current })
	return nil
}

type ledger struct{ tx *tx }

func (l ledger) Product(_ context.Context, id string) (domain.Product, error) {
	p, ok := l.tx.store.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %s does not exist", domain.ErrNotFound, id)
	}
	return p, nil
}

func (l ledger) Reserve(ctx context.Context, productID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: reserve amount must be positive", domain.ErrValidation)
	}
	p, err := l.Product(ctx, productID)
	if err != nil {
		return err
	}
	if p.Quantity < amount {
		return fmt.Errorf("%w: only %d units available in stock", domain.ErrInsufficientStock, p.Quantity)
	}
	l.adjust(p, -amount)
	return nil
}

func (l ledger) Release(ctx context.Context, productID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: release amount must be positive", domain.ErrValidation)
	}
	p, err := l.Product(ctx, productID)
	if err != nil {
		return err
	}
	l.adjust(p, amount)
	return nil
}

func (l ledger) adjust(p domain.Product, delta int) {
	products := l.tx.store.products
	previous := p
	p.Quantity += delta
	products[p.ID] = p
	l.tx.undo = append(l.tx.undo, func() { products[previous.ID] = previous })
}

func cloneOrder(order domain.Order) *domain.Order {
	order.Tracking = append([]domain.TrackingEntry(nil), order.Tracking...)
	if order.ApprovedAt != nil {
		at := *order.ApprovedAt
		order.ApprovedAt = &at
	}
	return &order
}
