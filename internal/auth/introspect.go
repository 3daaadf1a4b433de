// ABOUTME: External token introspection client (RFC 7662 style)
// ABOUTME: Forwards bearer tokens to the issuing authority with basic auth

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// introspectTimeout bounds a single introspection round trip.
const introspectTimeout = 10 * time.Second

// subjectClaims is the priority order for deriving a subject identifier
// from an introspection response. The upstream authority is inconsistent
// about which claim it populates.
var subjectClaims = []string{"sub", "uid", "username", "email", "client_id"}

// Introspector checks token validity against an external introspection
// endpoint using client-credential basic auth.
type Introspector struct {
	URL          string
	ClientID     string
	ClientSecret string

	// HTTPClient may be overridden in tests; defaults to a client with
	// introspectTimeout.
	HTTPClient *http.Client
}

// NewIntrospector creates an introspection client for the given endpoint.
func NewIntrospector(endpoint, clientID, clientSecret string) *Introspector {
	return &Introspector{
		URL:          endpoint,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   &http.Client{Timeout: introspectTimeout},
	}
}

// Introspect posts the token to the introspection endpoint. It returns the
// response claims when the token is active. Inactive tokens, non-200
// responses, and transport failures all return an error wrapping
// ErrInvalidToken; the caller treats introspection as the final step of the
// chain.
func (i *Introspector) Introspect(ctx context.Context, token string) (map[string]any, error) {
	form := url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.URL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: building introspection request: %v", ErrInvalidToken, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(i.ClientID, i.ClientSecret)

	client := i.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: introspectTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: introspection request failed: %v", ErrInvalidToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: introspection returned status %d", ErrInvalidToken, resp.StatusCode)
	}

	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: decoding introspection response: %v", ErrInvalidToken, err)
	}

	active, _ := claims["active"].(bool)
	if !active {
		return nil, fmt.Errorf("%w: token is not active", ErrInvalidToken)
	}

	return claims, nil
}

// SubjectFromClaims derives a subject identifier from introspection claims,
// trying sub, uid, username, email, client_id in that order.
func SubjectFromClaims(claims map[string]any) string {
	for _, key := range subjectClaims {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
