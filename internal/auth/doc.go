// Package auth provides credential resolution for bridge-gateway.
//
// # Credential Chain
//
// Every inbound request presents at most one credential (a bearer token or an
// API key). The Resolver checks it against a fixed chain, short-circuiting on
// the first match:
//
//  1. Issued-token table: tokens minted by this gateway's own /oauth/token
//     endpoint. Expired entries are deleted on first use after expiry.
//  2. Static API keys: opaque strings from configuration. API keys carry no
//     user identity.
//  3. Local HS256 verification: only when a jwt_secret is configured and the
//     issued tokens are JWTs.
//  4. External introspection: the token is forwarded to the configured
//     introspection endpoint with client-credential basic auth. This is
//     always the last step, so its failure is the final failure.
//
// When authentication is disabled the Resolver returns MethodNone for every
// request; that is a deployment mode, not a bypass.
//
// # Token Store
//
// Issued tokens live behind the TokenStore interface so the single-process
// in-memory map can be swapped for the SQLite-backed store (database.path in
// config) without touching resolver logic. Neither store is a shared
// multi-instance store; that remains a known production gap.
//
// # Context Propagation
//
// WithAuth/FromContext attach the resolved Context to the request context so
// handlers can extract the subject for upstream forwarding.
package auth
