// ABOUTME: TokenStore interface and IssuedToken type for gateway-minted credentials
// ABOUTME: Backed by an in-memory map or SQLite; swapped without touching the resolver

package auth

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned when a token value is not in the store.
var ErrTokenNotFound = errors.New("token not found")

// IssuedToken is a credential minted by the gateway's own token endpoint.
type IssuedToken struct {
	Value     string
	ClientID  string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the token is expired at the given instant.
func (t *IssuedToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TokenStore persists issued tokens. Implementations must be safe for
// concurrent use.
type TokenStore interface {
	// Put stores a token, replacing any existing entry with the same value.
	Put(ctx context.Context, token IssuedToken) error

	// Get returns the token with the given value, or ErrTokenNotFound.
	// Expiry is the caller's concern; Get returns expired tokens.
	Get(ctx context.Context, value string) (*IssuedToken, error)

	// Delete removes a token. Deleting an absent token is not an error.
	Delete(ctx context.Context, value string) error

	// Sweep removes all tokens expired at the given instant and returns
	// how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Close releases any underlying resources.
	Close() error
}
