package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

// pendingStatus marks a claimed row that has no response yet.
const pendingStatus = 0

// Store keeps create responses in the idempotency_keys table. Rows older
// than the TTL can be claimed again and are removed by Purge.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl}
}

// Claim inserts a pending row for key, or takes over an expired one. When a
// live row exists it is returned if completed and reported as in progress
// otherwise.
func (s *Store) Claim(ctx context.Context, key string) (*ports.StoredResponse, error) {
	claim := `
		INSERT INTO idempotency_keys (key, status_code, body, order_id)
		VALUES ($1, $2, ''::bytea, '')
		ON CONFLICT (key) DO UPDATE
		SET status_code = EXCLUDED.status_code,
		    body = EXCLUDED.body,
		    order_id = EXCLUDED.order_id,
		    created_at = NOW()
		WHERE $3::interval IS NOT NULL
		  AND idempotency_keys.created_at <= NOW() - $3::interval
		RETURNING key
	`

	var claimed string
	err := s.pool.QueryRow(ctx, claim, key, pendingStatus, s.interval()).Scan(&claimed)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}

	var resp ports.StoredResponse
	err = s.pool.QueryRow(ctx,
		`SELECT status_code, body, order_id FROM idempotency_keys WHERE key = $1`,
		key,
	).Scan(&resp.StatusCode, &resp.Body, &resp.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Released between the two statements; the client may retry.
			return nil, ports.ErrRequestInProgress
		}
		return nil, fmt.Errorf("select idempotency key: %w", err)
	}
	if resp.StatusCode == pendingStatus {
		return nil, ports.ErrRequestInProgress
	}

	return &resp, nil
}

// Save fills the row for key. A pending or expired row is replaced; a live
// completed one is kept.
func (s *Store) Save(ctx context.Context, key string, response ports.StoredResponse) error {
	if response.StatusCode <= pendingStatus {
		return fmt.Errorf("%w: stored response needs a status code", domain.ErrValidation)
	}

	query := `
		INSERT INTO idempotency_keys (key, status_code, body, order_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET status_code = EXCLUDED.status_code,
		    body = EXCLUDED.body,
		    order_id = EXCLUDED.order_id,
		    created_at = NOW()
		WHERE idempotency_keys.status_code = $6
		   OR ($5::interval IS NOT NULL AND idempotency_keys.created_at <= NOW() - $5::interval)
	`

	_, err := s.pool.Exec(ctx, query, key, response.StatusCode, response.Body, response.OrderID, s.interval(), pendingStatus)
	if err != nil {
		return fmt.Errorf("insert idempotency key: %w", err)
	}

	return nil
}

// Release deletes the row for key while it is still pending.
func (s *Store) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE key = $1 AND status_code = $2`,
		key, pendingStatus,
	)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Purge deletes expired keys and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE created_at <= NOW() - $1::interval`,
		s.interval(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// interval renders the TTL for Postgres, or nil when keys never expire.
func (s *Store) interval() *string {
	if s.ttl <= 0 {
		return nil
	}
	v := fmt.Sprintf("%d milliseconds", s.ttl.Milliseconds())
	return &v
}
