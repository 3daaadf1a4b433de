// ABOUTME: Token endpoint implementing the client-credentials grant
// ABOUTME: Validates static clients and records issued tokens in the store

package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/bridge-gateway/internal/auth"
	"github.com/2389/bridge-gateway/internal/config"
)

// opaqueTokenBytes is the entropy of an opaque issued token.
const opaqueTokenBytes = 32

// TokenResponse is the success body of POST /oauth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Config holds configuration for the OAuth server.
type Config struct {
	Clients  []config.ClientCredential
	Signer   *auth.JWTSigner // optional; opaque tokens when nil
	Store    auth.TokenStore
	TokenTTL time.Duration
	BaseURL  string
	Logger   *slog.Logger
}

// Server issues tokens and serves the discovery documents.
type Server struct {
	clients  []config.ClientCredential
	signer   *auth.JWTSigner
	store    auth.TokenStore
	tokenTTL time.Duration
	baseURL  string
	logger   *slog.Logger
}

// NewServer creates an OAuth server from configuration.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		clients:  cfg.Clients,
		signer:   cfg.Signer,
		store:    cfg.Store,
		tokenTTL: cfg.TokenTTL,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		logger:   logger,
	}
}

// RegisterRoutes registers the token, userinfo, and discovery endpoints.
// The token endpoint and discovery documents are public; userinfo requires
// the credential chain.
func (s *Server) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.HandleFunc("/oauth/token", s.handleToken)
	mux.Handle("/oauth/userinfo", protect(http.HandlerFunc(s.handleUserinfo)))
	mux.HandleFunc("/.well-known/oauth-authorization-server", s.handleAuthServerMetadata)
	mux.HandleFunc("/.well-known/openid-configuration", s.handleOpenIDConfiguration)
	mux.HandleFunc("/.well-known/oauth-protected-resource", s.handleProtectedResource)
}

// oauthError writes an RFC 6749 style error body.
func (s *Server) oauthError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// clientCredentials pulls client id and secret from the form body or basic
// auth header. Both token_endpoint_auth_methods are supported.
func clientCredentials(r *http.Request) (id, secret string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret
	}
	return r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
}

// verifySecret checks a presented secret against the configured one.
// Configured secrets may be bcrypt hashes; plain values are compared in
// constant time.
func verifySecret(configured, presented string) bool {
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

func (s *Server) findClient(id, secret string) *config.ClientCredential {
	for i := range s.clients {
		if s.clients[i].ID == id && verifySecret(s.clients[i].Secret, secret) {
			return &s.clients[i]
		}
	}
	return nil
}

// mintToken produces the access token value. With a signer the token is a
// verifiable JWT; otherwise it is opaque.
func (s *Server) mintToken(clientID, scope string) (string, error) {
	if s.signer != nil {
		return s.signer.Mint(clientID, scope, s.tokenTTL)
	}

	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// handleToken handles POST /oauth/token. Only the client_credentials grant
// is supported.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.oauthError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if r.PostForm.Get("grant_type") != "client_credentials" {
		s.oauthError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	clientID, clientSecret := clientCredentials(r)
	client := s.findClient(clientID, clientSecret)
	if client == nil {
		s.logger.Warn("token request with invalid client", "client_id", clientID)
		s.oauthError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	scope := r.PostForm.Get("scope")
	if scope == "" {
		scope = client.Scope
	}

	tokenValue, err := s.mintToken(client.ID, scope)
	if err != nil {
		s.logger.Error("minting token failed", "error", err)
		s.oauthError(w, http.StatusInternalServerError, "server_error")
		return
	}

	now := time.Now()
	token := auth.IssuedToken{
		Value:     tokenValue,
		ClientID:  client.ID,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.store.Put(r.Context(), token); err != nil {
		s.logger.Error("storing issued token failed", "error", err)
		s.oauthError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.logger.Info("token issued",
		"client_id", client.ID,
		"scope", scope,
		"expires_in", int(s.tokenTTL.Seconds()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(TokenResponse{
		AccessToken: tokenValue,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
		Scope:       scope,
	})
}

// handleUserinfo returns identity claims for the authenticated caller.
func (s *Server) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// API keys carry no identity; report a fixed synthetic profile so
	// clients that insist on calling userinfo still get a valid document.
	if authCtx.Method == auth.MethodAPIKey {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"sub":            "api-key-user",
			"name":           "API Key User",
			"email_verified": false,
		})
		return
	}

	name := authCtx.Subject
	if v, ok := authCtx.Claims["username"].(string); ok && v != "" {
		name = v
	}
	email, _ := authCtx.Claims["email"].(string)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sub":            authCtx.Subject,
		"name":           name,
		"email":          email,
		"email_verified": email != "",
	})
}
