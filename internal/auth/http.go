// ABOUTME: HTTP middleware enforcing the credential chain on API endpoints
// ABOUTME: Maps typed auth failures to 401 responses with re-authentication hints

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// ExtractCredential pulls the presented credential from a request. The
// X-API-Key header wins over the Authorization bearer token; both feed the
// same resolver chain. Returns "" if no credential is present.
func ExtractCredential(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// failureDetail maps a resolver error to the user-facing detail message.
func failureDetail(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "Authentication required"
	case errors.Is(err, ErrExpiredToken):
		return "Token is not active or has expired"
	default:
		return "Invalid or expired token"
	}
}

// ReauthHint appends a clickable re-authentication URL to a failure message
// when an authorize endpoint is configured.
func ReauthHint(detail, authorizeURL string) string {
	if authorizeURL == "" {
		return detail
	}
	return detail + ". Please authenticate here: " + authorizeURL
}

// WriteUnauthorized writes a 401 response with a WWW-Authenticate header and
// a machine-readable body carrying the re-authentication hint.
func WriteUnauthorized(w http.ResponseWriter, err error, authorizeURL string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"detail": ReauthHint(failureDetail(err), authorizeURL),
	})
}

// Middleware enforces the credential chain on protected endpoints. On success
// the resolved Context is attached to the request context; handlers retrieve
// it with FromContext.
func Middleware(resolver *Resolver, authorizeURL string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := ExtractCredential(r)

			authCtx, err := resolver.Resolve(r.Context(), credential)
			if err != nil {
				logger.Debug("request rejected",
					"path", r.URL.Path,
					"error", err,
				)
				WriteUnauthorized(w, err, authorizeURL)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
