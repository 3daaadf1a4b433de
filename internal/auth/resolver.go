// ABOUTME: Layered credential resolution: issued tokens, API keys, JWT, introspection
// ABOUTME: Produces an auth Context or a typed failure for middleware to map to 401

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Resolver checks a presented credential against the configured chain.
// See the package documentation for the chain order.
type Resolver struct {
	Enabled      bool
	Store        TokenStore
	APIKeys      map[string]struct{}
	Signer       *JWTSigner    // optional
	Introspector *Introspector // optional

	// Now is injectable for expiry tests; defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// NewResolver builds a resolver. Store is required when enabled; Signer and
// Introspector are optional chain links.
func NewResolver(enabled bool, store TokenStore, apiKeys map[string]struct{}, signer *JWTSigner, introspector *Introspector, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		Enabled:      enabled,
		Store:        store,
		APIKeys:      apiKeys,
		Signer:       signer,
		Introspector: introspector,
		Now:          time.Now,
		Logger:       logger,
	}
}

// Resolve checks the presented credential value. An empty value means no
// credential was presented. Failures are one of ErrMissingCredential,
// ErrExpiredToken, or ErrInvalidToken (possibly wrapped).
func (r *Resolver) Resolve(ctx context.Context, credential string) (*Context, error) {
	if !r.Enabled {
		return &Context{Method: MethodNone}, nil
	}

	if credential == "" {
		return nil, ErrMissingCredential
	}

	// 1. Issued-token table
	if r.Store != nil {
		token, err := r.Store.Get(ctx, credential)
		switch {
		case err == nil:
			if token.ExpiredAt(r.now()) {
				// Lazy expiry: remove on first use after expiration.
				if delErr := r.Store.Delete(ctx, credential); delErr != nil {
					r.Logger.Warn("failed to delete expired token", "error", delErr)
				}
				return nil, ErrExpiredToken
			}
			return &Context{
				Method:  MethodIssuedToken,
				Subject: token.ClientID,
				Claims:  map[string]any{"scope": token.Scope},
			}, nil
		case !errors.Is(err, ErrTokenNotFound):
			r.Logger.Warn("token store lookup failed", "error", err)
		}
	}

	// 2. Static API keys; no subject, keys carry no user identity
	if _, ok := r.APIKeys[credential]; ok {
		return &Context{Method: MethodAPIKey}, nil
	}

	// 3. Local HS256 verification when configured
	if r.Signer != nil {
		subject, scope, err := r.Signer.Verify(credential)
		if err == nil {
			return &Context{
				Method:  MethodJWT,
				Subject: subject,
				Claims:  map[string]any{"scope": scope},
			}, nil
		}
		if errors.Is(err, ErrExpiredToken) && r.Introspector == nil {
			return nil, ErrExpiredToken
		}
	}

	// 4. External introspection, always last: its failure is the final failure
	if r.Introspector != nil {
		claims, err := r.Introspector.Introspect(ctx, credential)
		if err != nil {
			r.Logger.Debug("introspection rejected credential", "error", err)
			return nil, err
		}
		return &Context{
			Method:  MethodIntrospection,
			Subject: SubjectFromClaims(claims),
			Claims:  claims,
		}, nil
	}

	return nil, ErrInvalidToken
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
