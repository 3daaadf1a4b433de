// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// Method identifies which link of the credential chain accepted a request.
type Method string

const (
	MethodNone          Method = "none"          // auth disabled process-wide
	MethodAPIKey        Method = "api_key"       // static configured key
	MethodIssuedToken   Method = "issued_token"  // token minted by this gateway
	MethodJWT           Method = "jwt"           // locally verified HS256 token
	MethodIntrospection Method = "introspection" // external introspection endpoint
)

// Context holds the authenticated identity resolved from a request.
// Subject is empty for API keys (they carry no user identity) and for
// disabled auth. Claims carries the raw introspection body or token claims
// for downstream consumers like /oauth/userinfo.
type Context struct {
	Method  Method
	Subject string
	Claims  map[string]any
}

// UserID returns the identity to forward upstream, or "" if none.
func (c *Context) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// authContextKey is the key type for storing Context in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the auth Context attached.
func WithAuth(ctx context.Context, auth *Context) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the auth Context from the context, returning nil if not present.
func FromContext(ctx context.Context) *Context {
	val := ctx.Value(authContextKey{})
	if val == nil {
		return nil
	}
	auth, ok := val.(*Context)
	if !ok {
		return nil
	}
	return auth
}
