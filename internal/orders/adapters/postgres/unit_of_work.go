package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

// UnitOfWork runs order and inventory writes in one read-committed
// transaction. Rows are locked with SELECT ... FOR UPDATE and status writes
// are conditional, so concurrent transitions on the same order serialize.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) (err error) {
	pgTx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.NewStorageError(domain.ErrConflict, reasonUnavailable, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			_ = pgTx.Rollback(ctx)
		}
	}()

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return classify(err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return domain.NewStorageError(domain.ErrConflict, reasonUnavailable, fmt.Errorf("commit: %w", err))
	}
	return nil
}

const (
	reasonUnavailable = "storage unavailable, retry the request"
	reasonContention  = "concurrent modification, retry the request"
)

// classify keeps domain errors as they are and reports everything else as a
// failed unit of work the caller may retry from scratch. Driver messages stay
// in the wrapped cause and never reach the reason.
func classify(err error) error {
	if domain.Kind(err) != nil {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return domain.NewStorageError(domain.ErrConflict, reasonContention, err)
		case pgerrcode.UniqueViolation:
			return domain.NewStorageError(domain.ErrConflict, "duplicate value violates "+pgErr.ConstraintName, err)
		case pgerrcode.CheckViolation:
			return domain.NewStorageError(domain.ErrValidation, "value violates "+pgErr.ConstraintName, err)
		}
	}
	return domain.NewStorageError(domain.ErrConflict, reasonUnavailable, err)
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) Orders() ports.OrderWriter        { return &orderWriter{q: t.tx} }
func (t *tx) Inventory() ports.InventoryLedger { return &Ledger{q: t.tx} }

type orderWriter struct {
	q querier
}

func (w *orderWriter) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, w.q, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (w *orderWriter) FindByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	return getOrder(ctx, w.q, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1 FOR UPDATE`, reference)
}

func (w *orderWriter) Insert(ctx context.Context, order domain.Order) error {
	query := `
		INSERT INTO orders (
			id, product_id, buyer_id, quantity, unit_price, total_amount,
			shipping_address, phone_number, notes, payment_method, payment_type,
			payment_status, payment_reference, status, approved_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15, $16, $17)
	`
	_, err := w.q.Exec(ctx, query,
		order.ID,
		order.ProductID,
		order.BuyerID,
		order.Quantity,
		order.UnitPrice,
		order.TotalAmount,
		order.ShippingAddress,
		order.PhoneNumber,
		order.Notes,
		string(order.PaymentMethod),
		string(order.PaymentType),
		string(order.PaymentStatus),
		order.PaymentReference,
		string(order.Status),
		order.ApprovedAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, entry := range order.Tracking {
		_, err := w.q.Exec(ctx, `
			INSERT INTO order_tracking (order_id, seq, status, location, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, i+1, entry.Status, entry.Location, entry.Note, entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert tracking entry: %w", err)
		}
	}
	return nil
}

func (w *orderWriter) ApplyTransition(ctx context.Context, t domain.Transition) error {
	result, err := w.q.Exec(ctx, `
		UPDATE orders
		SET status = $3, approved_at = COALESCE(approved_at, $4), updated_at = $5
		WHERE id = $1 AND status = $2`,
		t.OrderID, string(t.From), string(t.To), t.ApprovedAt, t.At,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if result.RowsAffected() == 0 {
		var current string
		err := w.q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, t.OrderID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: order %s does not exist", domain.ErrNotFound, t.OrderID)
		}
		if err != nil {
			return fmt.Errorf("select order status: %w", err)
		}
		return fmt.Errorf("%w: order %s is %s, expected %s", domain.ErrInvalidTransition, t.OrderID, current, t.From)
	}

	_, err = w.q.Exec(ctx, `
		INSERT INTO order_tracking (order_id, seq, status, location, note, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM order_tracking
		WHERE order_id = $1`,
		t.OrderID, t.Entry.Status, t.Entry.Location, t.Entry.Note, t.Entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append tracking entry: %w", err)
	}
	return nil
}
