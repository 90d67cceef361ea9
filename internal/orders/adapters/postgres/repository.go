package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderColumns = `
	id, product_id, buyer_id, quantity, unit_price::text, total_amount::text,
	shipping_address, phone_number, notes, payment_method, payment_type,
	payment_status, COALESCE(payment_reference, ''), status, approved_at,
	created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	filter = filter.Normalize()

	var statuses []string
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text[] IS NULL OR status = ANY($1))
		  AND ($2 = '' OR buyer_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, statuses, filter.BuyerID, filter.PageSize, filter.Offset())
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err := attachTracking(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) Stats(ctx context.Context, since time.Time) (domain.OrderStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)::text
		FROM orders
		GROUP BY status`)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("query status stats: %w", err)
	}
	var statuses []domain.StatusRow
	for rows.Next() {
		var (
			row    domain.StatusRow
			amount string
		)
		if err := rows.Scan(&row.Status, &row.Count, &amount); err != nil {
			rows.Close()
			return domain.OrderStats{}, fmt.Errorf("scan status stats: %w", err)
		}
		if row.Amount, err = decimal.NewFromString(amount); err != nil {
			rows.Close()
			return domain.OrderStats{}, fmt.Errorf("parse status revenue: %w", err)
		}
		statuses = append(statuses, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.OrderStats{}, fmt.Errorf("iterate status stats: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*), COALESCE(SUM(total_amount), 0)::text
		FROM orders
		WHERE created_at >= $1
		GROUP BY day`, since)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()
	var days []domain.DayRow
	for rows.Next() {
		var (
			row    domain.DayRow
			amount string
		)
		if err := rows.Scan(&row.Day, &row.Count, &amount); err != nil {
			return domain.OrderStats{}, fmt.Errorf("scan daily stats: %w", err)
		}
		if row.Amount, err = decimal.NewFromString(amount); err != nil {
			return domain.OrderStats{}, fmt.Errorf("parse daily revenue: %w", err)
		}
		days = append(days, row)
	}
	if err := rows.Err(); err != nil {
		return domain.OrderStats{}, fmt.Errorf("iterate daily stats: %w", err)
	}

	return domain.BuildStats(statuses, days), nil
}

func getOrder(ctx context.Context, q querier, query string, args ...any) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order does not exist", domain.ErrNotFound)
		}
		return nil, err
	}
	orders := []domain.Order{*order}
	if err := attachTracking(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order       domain.Order
		unitPrice   string
		totalAmount string
	)
	err := row.Scan(
		&order.ID,
		&order.ProductID,
		&order.BuyerID,
		&order.Quantity,
		&unitPrice,
		&totalAmount,
		&order.ShippingAddress,
		&order.PhoneNumber,
		&order.Notes,
		&order.PaymentMethod,
		&order.PaymentType,
		&order.PaymentStatus,
		&order.PaymentReference,
		&order.Status,
		&order.ApprovedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if order.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("parse unit_price: %w", err)
	}
	if order.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("parse total_amount: %w", err)
	}
	return &order, nil
}

func attachTracking(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.Query(ctx, `
		SELECT order_id, status, location, note, created_at
		FROM order_tracking
		WHERE order_id = ANY($1)
		ORDER BY order_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("query tracking: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			entry   domain.TrackingEntry
		)
		if err := rows.Scan(&orderID, &entry.Status, &entry.Location, &entry.Note, &entry.Timestamp); err != nil {
			return fmt.Errorf("scan tracking: %w", err)
		}
		i := index[orderID]
		orders[i].Tracking = append(orders[i].Tracking, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tracking: %w", err)
	}
	return nil
}
