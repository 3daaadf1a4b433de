// ABOUTME: Tests for the REST handlers and route protection
// ABOUTME: Covers /invoke, /stream, /health, /agents, and the credential gate

package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389/bridge-gateway/internal/auth"
	"github.com/2389/bridge-gateway/internal/config"
	"github.com/2389/bridge-gateway/internal/langgraph"
	"github.com/2389/bridge-gateway/internal/mcp"
	"github.com/2389/bridge-gateway/internal/oauth"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Upstream.AssistantID = "agent"
	cfg.Upstream.HealthAssistantID = "health"
	cfg.Auth.TokenTTL = time.Hour
	return cfg
}

func testGateway(t *testing.T, client *stubClient) *Gateway {
	t.Helper()

	g := &Gateway{
		config: testConfig(),
		logger: slog.Default(),
	}
	g.orchestrator = NewOrchestrator(client, g.config.Upstream.AssistantID, nil)
	return g
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleInvoke_Success(t *testing.T) {
	client := &stubClient{snapshot: snapshotWith(t,
		`{"role": "user", "content": "hello"}`,
		`{"role": "assistant", "content": "The answer is 4."}`,
	)}
	g := testGateway(t, client)

	rec := postJSON(t, g.handleInvoke, "/invoke", `{"prompt": "what is 2+2?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp InvokeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected status success, got %q", resp.Status)
	}
	if resp.RunID != "run-1" {
		t.Errorf("expected run id run-1, got %q", resp.RunID)
	}
	if resp.ThreadID == "" {
		t.Error("expected a thread id in the response")
	}
	if resp.Output.Content != "The answer is 4." {
		t.Errorf("expected reduced content, got %q", resp.Output.Content)
	}
	if len(resp.Output.AllMessages) != 2 {
		t.Errorf("expected full message trail, got %d messages", len(resp.Output.AllMessages))
	}
	if resp.Output.ContentHTML != "" {
		t.Errorf("expected no HTML without format=html, got %q", resp.Output.ContentHTML)
	}
}

func TestHandleInvoke_HTMLFormat(t *testing.T) {
	client := &stubClient{snapshot: snapshotWith(t,
		`{"role": "assistant", "content": "# Result\n\nAll **good**."}`,
	)}
	g := testGateway(t, client)

	rec := postJSON(t, g.handleInvoke, "/invoke", `{"prompt": "report", "format": "html"}`)

	var resp InvokeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !strings.Contains(resp.Output.ContentHTML, "<h1") {
		t.Errorf("expected rendered markdown heading, got %q", resp.Output.ContentHTML)
	}
	if !strings.Contains(resp.Output.ContentHTML, "<strong>good</strong>") {
		t.Errorf("expected rendered bold text, got %q", resp.Output.ContentHTML)
	}
}

func TestHandleInvoke_BadRequests(t *testing.T) {
	g := testGateway(t, &stubClient{})

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"invalid JSON", `{not json`, "invalid JSON body"},
		{"missing prompt", `{"assistant_id": "agent"}`, "prompt is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, g.handleInvoke, "/invoke", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.detail) {
				t.Errorf("expected detail %q, got %s", tt.detail, rec.Body.String())
			}
		})
	}
}

func TestHandleInvoke_UpstreamFailure(t *testing.T) {
	client := &stubClient{err: &langgraph.UpstreamError{Status: 503, Body: "unavailable"}}
	g := testGateway(t, client)

	rec := postJSON(t, g.handleInvoke, "/invoke", `{"prompt": "hi"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error invoking agent") {
		t.Errorf("expected error envelope detail, got %s", rec.Body.String())
	}
}

func TestHandleInvoke_MethodNotAllowed(t *testing.T) {
	g := testGateway(t, &stubClient{})

	req := httptest.NewRequest(http.MethodGet, "/invoke", nil)
	rec := httptest.NewRecorder()
	g.handleInvoke(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleStream_Success(t *testing.T) {
	client := &stubClient{rawResult: langgraph.RawStreamResult{Output: "raw stream body", Chunks: 5}}
	g := testGateway(t, client)

	rec := postJSON(t, g.handleStream, "/stream", `{"prompt": "hi"}`)

	var resp StreamResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected status success, got %q", resp.Status)
	}
	if resp.Output != "raw stream body" {
		t.Errorf("expected raw output, got %q", resp.Output)
	}
	if resp.ChunksReceived != 5 {
		t.Errorf("expected 5 chunks, got %d", resp.ChunksReceived)
	}
}

func TestHandleHealth(t *testing.T) {
	g := testGateway(t, &stubClient{})
	g.config.Auth.Enabled = true

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	g.handleHealth(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", body["status"])
	}
	if body["service"] != "bridge-gateway" {
		t.Errorf("expected service name, got %v", body["service"])
	}
	if body["auth_enabled"] != true {
		t.Errorf("expected auth_enabled true, got %v", body["auth_enabled"])
	}
}

func TestHandleListAgents(t *testing.T) {
	g := testGateway(t, &stubClient{})

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()
	g.handleListAgents(rec, req)

	var body map[string][]AgentInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	agents := body["agents"]
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[0].ID != "agent" || agents[1].ID != "health" {
		t.Errorf("unexpected agent ids: %v", agents)
	}
}

// fullGateway wires the real route table with auth enabled and one API key.
func fullGateway(t *testing.T, client *stubClient) *Gateway {
	t.Helper()

	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = "test-key"

	store := auth.NewMemoryTokenStore()
	t.Cleanup(func() { store.Close() })

	g := &Gateway{
		config:     cfg,
		tokenStore: store,
		resolver:   auth.NewResolver(true, store, cfg.Auth.APIKeySet(), nil, nil, nil),
		logger:     slog.Default(),
	}
	g.orchestrator = NewOrchestrator(client, cfg.Upstream.AssistantID, nil)
	g.mcpServer = mcp.NewServer(mcp.Config{
		Runner:           mcpRunner{g.orchestrator},
		Upstream:         langgraph.NewClient("http://127.0.0.1:0", nil, nil, nil),
		DefaultAssistant: cfg.Upstream.AssistantID,
		HealthAssistant:  cfg.Upstream.HealthAssistantID,
	})
	g.oauthServer = oauth.NewServer(oauth.Config{
		Store:    store,
		TokenTTL: cfg.Auth.TokenTTL,
		BaseURL:  "http://127.0.0.1:8080",
	})
	return g
}

func TestRouteProtection(t *testing.T) {
	client := &stubClient{snapshot: snapshotWith(t,
		`{"role": "assistant", "content": "ok"}`,
	)}
	g := fullGateway(t, client)
	mux := g.buildMux()

	t.Run("invoke rejected without credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"prompt": "hi"}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Errorf("expected WWW-Authenticate Bearer, got %q", got)
		}
	})

	t.Run("invoke accepted with API key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"prompt": "hi"}`))
		req.Header.Set("X-API-Key", "test-key")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"status":"success"`) {
			t.Errorf("expected success envelope, got %s", rec.Body.String())
		}
	})

	t.Run("health is public", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 without credentials, got %d", rec.Code)
		}
	})

	t.Run("discovery is public", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 without credentials, got %d", rec.Code)
		}
	})
}
