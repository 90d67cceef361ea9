package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

// Ledger mutates product stock with conditional updates so quantity can
// never drop below zero.
type Ledger struct {
	q querier
}

func (l *Ledger) Product(ctx context.Context, id string) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	err := l.q.QueryRow(ctx, `
		SELECT id, title, price::text, quantity, min_order
		FROM products
		WHERE id = $1
		FOR UPDATE`, id).Scan(&p.ID, &p.Title, &price, &p.Quantity, &p.MinOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%w: product %s does not exist", domain.ErrNotFound, id)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Product{}, fmt.Errorf("parse price: %w", err)
	}
	return p, nil
}

func (l *Ledger) Reserve(ctx context.Context, productID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: reserve amount must be positive", domain.ErrValidation)
	}
	result, err := l.q.Exec(ctx, `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2`, productID, amount)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var available int
	err = l.q.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: product %s does not exist", domain.ErrNotFound, productID)
	}
	if err != nil {
		return fmt.Errorf("select product quantity: %w", err)
	}
	return fmt.Errorf("%w: only %d units available in stock", domain.ErrInsufficientStock, available)
}

func (l *Ledger) Release(ctx context.Context, productID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: release amount must be positive", domain.ErrValidation)
	}
	result, err := l.q.Exec(ctx, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1`, productID, amount)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %s does not exist", domain.ErrNotFound, productID)
	}
	return nil
}
