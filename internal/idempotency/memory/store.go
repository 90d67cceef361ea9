package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

type entry struct {
	response ports.StoredResponse
	pending  bool
	savedAt  time.Time
}

// Store retains create responses for replaying duplicate requests. Entries
// older than the TTL, pending or not, are treated as absent; a zero TTL keeps
// them forever.
type Store struct {
	mu    sync.Mutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a new in-memory idempotency store.
func NewStore(ttl time.Duration) *Store {
	return &Store{items: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Claim reserves key unless a live entry holds it.
func (s *Store) Claim(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok && !s.expired(e) {
		if e.pending {
			return nil, ports.ErrRequestInProgress
		}
		resp := e.response
		resp.Body = append([]byte(nil), e.response.Body...)
		return &resp, nil
	}
	s.items[key] = entry{pending: true, savedAt: s.now()}
	return nil, nil
}

// Save stores the response for a key. The first completed live response wins.
func (s *Store) Save(_ context.Context, key string, response ports.StoredResponse) error {
	if response.StatusCode <= 0 {
		return fmt.Errorf("%w: stored response needs a status code", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok && !e.pending && !s.expired(e) {
		return nil
	}
	response.Body = append([]byte(nil), response.Body...)
	s.items[key] = entry{response: response, savedAt: s.now()}
	return nil
}

// Release removes a pending claim. Completed entries are kept.
func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok && e.pending {
		delete(s.items, key)
	}
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (s *Store) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, e := range s.items {
		if s.expired(e) {
			delete(s.items, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) expired(e entry) bool {
	return s.ttl > 0 && s.now().Sub(e.savedAt) > s.ttl
}
