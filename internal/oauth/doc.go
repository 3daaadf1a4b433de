// ABOUTME: Package doc for token issuance and OAuth discovery
// ABOUTME: Client-credentials grant only, no authorization-code flows

// Package oauth implements the bridge's own token issuance.
//
// POST /oauth/token accepts the client_credentials grant and checks the
// presented client against static configuration. Issued tokens land in the
// shared token store where the credential resolver finds them on later
// requests. When a JWT secret is configured the issued token is a signed
// HS256 token and survives a process restart; otherwise it is an opaque
// random value that lives only as long as the store does.
//
// The .well-known documents exist so chat clients can discover the token
// endpoint. They are static configuration shaped from the base URL, nothing
// in them is computed per request.
package oauth
