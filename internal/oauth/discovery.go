// ABOUTME: OAuth and OpenID discovery documents under /.well-known
// ABOUTME: Static metadata shaped from the configured base URL

package oauth

import (
	"encoding/json"
	"net/http"
)

func (s *Server) writeDiscovery(w http.ResponseWriter, doc map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		s.logger.Warn("failed to encode discovery document", "error", err)
	}
}

// handleAuthServerMetadata serves RFC 8414 authorization server metadata.
func (s *Server) handleAuthServerMetadata(w http.ResponseWriter, r *http.Request) {
	s.writeDiscovery(w, map[string]any{
		"issuer":                s.baseURL,
		"token_endpoint":        s.baseURL + "/oauth/token",
		"grant_types_supported": []string{"client_credentials"},
		"token_endpoint_auth_methods_supported": []string{
			"client_secret_basic",
			"client_secret_post",
		},
		"scopes_supported": []string{"openid", "profile", "email"},
	})
}

// handleOpenIDConfiguration serves OpenID provider metadata. Some chat
// clients probe this path instead of the OAuth one.
func (s *Server) handleOpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	s.writeDiscovery(w, map[string]any{
		"issuer":                                s.baseURL,
		"token_endpoint":                        s.baseURL + "/oauth/token",
		"userinfo_endpoint":                     s.baseURL + "/oauth/userinfo",
		"response_types_supported":              []string{"token"},
		"grant_types_supported":                 []string{"client_credentials"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"HS256"},
		"scopes_supported":                      []string{"openid", "profile", "email"},
		"token_endpoint_auth_methods_supported": []string{
			"client_secret_basic",
			"client_secret_post",
		},
		"claims_supported": []string{"sub", "name", "email", "email_verified"},
	})
}

// handleProtectedResource serves OAuth protected resource metadata.
func (s *Server) handleProtectedResource(w http.ResponseWriter, r *http.Request) {
	s.writeDiscovery(w, map[string]any{
		"resource":                 s.baseURL,
		"authorization_servers":    []string{s.baseURL},
		"scopes_supported":         []string{"openid", "profile", "email"},
		"bearer_methods_supported": []string{"header"},
	})
}
