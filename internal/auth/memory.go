// ABOUTME: In-memory TokenStore implementation for single-process deployments
// ABOUTME: Tokens do not survive restarts; an accepted limitation, not a bug

package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryTokenStore keeps issued tokens in a process-wide map.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]IssuedToken
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]IssuedToken),
	}
}

// Put stores a token, replacing any existing entry with the same value.
func (s *MemoryTokenStore) Put(_ context.Context, token IssuedToken) error {
	s.mu.Lock()
	s.tokens[token.Value] = token
	s.mu.Unlock()
	return nil
}

// Get returns the token with the given value, or ErrTokenNotFound.
func (s *MemoryTokenStore) Get(_ context.Context, value string) (*IssuedToken, error) {
	s.mu.RLock()
	token, ok := s.tokens[value]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &token, nil
}

// Delete removes a token. Deleting an absent token is not an error.
func (s *MemoryTokenStore) Delete(_ context.Context, value string) error {
	s.mu.Lock()
	delete(s.tokens, value)
	s.mu.Unlock()
	return nil
}

// Sweep removes all tokens expired at the given instant.
func (s *MemoryTokenStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for value, token := range s.tokens {
		if token.ExpiredAt(now) {
			delete(s.tokens, value)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryTokenStore) Close() error {
	return nil
}

// Count returns the number of stored tokens (for monitoring).
func (s *MemoryTokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// RunSweeper periodically sweeps expired tokens until ctx is canceled.
// Used by the gateway so lazily-expired tokens don't accumulate when their
// holders never return.
func RunSweeper(ctx context.Context, store TokenStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = store.Sweep(ctx, time.Now())
		case <-ctx.Done():
			return
		}
	}
}
