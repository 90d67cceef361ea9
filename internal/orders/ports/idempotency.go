package ports

import (
	"context"
	"fmt"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

// StoredResponse contains the response data to replay for a reused key.
// A zero StatusCode marks a key that is claimed but not yet filled.
type StoredResponse struct {
	StatusCode int
	Body       []byte
	OrderID    string
}

// ErrRequestInProgress is returned by Claim while another request holds the key.
var ErrRequestInProgress = fmt.Errorf("%w: a request with this idempotency key is still in progress", domain.ErrConflict)

// IdempotencyStore ensures create operations can be retried safely. A key is
// claimed before the operation runs, then either filled with the response or
// released so the client may retry.
type IdempotencyStore interface {
	// Claim reserves key and returns nil, or returns the response of a
	// completed request. A key held by a request in flight yields
	// ErrRequestInProgress.
	Claim(ctx context.Context, key string) (*StoredResponse, error)
	// Save fills a claimed key. A completed live response is never replaced.
	Save(ctx context.Context, key string, response StoredResponse) error
	// Release drops a claim that was never filled.
	Release(ctx context.Context, key string) error
}
