// ABOUTME: REST surface for agent invocation and platform passthrough
// ABOUTME: Provides /invoke, /stream, /health, and /agents handlers

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/bridge-gateway/internal/auth"
	"github.com/2389/bridge-gateway/internal/htmlfmt"
	"github.com/2389/bridge-gateway/internal/langgraph"
)

// InvokeRequest is the JSON request body for POST /invoke.
type InvokeRequest struct {
	Prompt         string `json:"prompt"`
	AssistantID    string `json:"assistant_id,omitempty"`
	ThreadID       string `json:"thread_id,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Format         string `json:"format,omitempty"` // "text" (default) or "html"
}

// InvokeOutput carries the reduced reply plus the full message trail.
type InvokeOutput struct {
	Content     string              `json:"content"`
	ContentHTML string              `json:"content_html,omitempty"`
	AllMessages []langgraph.Message `json:"all_messages"`
}

// InvokeResponse is the JSON response body for POST /invoke.
type InvokeResponse struct {
	RunID    string       `json:"run_id"`
	ThreadID string       `json:"thread_id"`
	Output   InvokeOutput `json:"output"`
	Status   string       `json:"status"`
}

// StreamRequest is the JSON request body for POST /stream.
type StreamRequest struct {
	Prompt         string `json:"prompt"`
	AssistantID    string `json:"assistant_id,omitempty"`
	ThreadID       string `json:"thread_id,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// StreamResponse is the JSON response body for POST /stream.
type StreamResponse struct {
	Output         string `json:"output"`
	ChunksReceived int    `json:"chunks_received"`
	Status         string `json:"status"`
}

// AgentInfo describes one invocable assistant for GET /agents.
type AgentInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// sendJSONError writes a JSON error response with a detail field.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}

// parseInvokeRequest decodes and validates an InvokeRequest body.
func parseInvokeRequest(r io.Reader) (*InvokeRequest, error) {
	var req InvokeRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if req.Prompt == "" {
		return nil, errors.New("prompt is required")
	}
	return &req, nil
}

// handleInvoke handles POST /invoke: run the agent to completion and return
// the reduced reply.
func (g *Gateway) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseInvokeRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	authCtx := auth.FromContext(r.Context())
	result := g.orchestrator.Invoke(r.Context(), InvokeParams{
		Prompt:         req.Prompt,
		AssistantID:    req.AssistantID,
		ThreadID:       req.ThreadID,
		ConversationID: req.ConversationID,
	}, authCtx)

	if result.IsError {
		g.sendJSONError(w, http.StatusInternalServerError, result.Text)
		return
	}

	output := InvokeOutput{
		Content:     result.Text,
		AllMessages: result.AllMessages,
	}
	if req.Format == "html" {
		output.ContentHTML = htmlfmt.Render(result.Text)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(InvokeResponse{
		RunID:    result.RunID,
		ThreadID: result.ThreadID,
		Output:   output,
		Status:   "success",
	})
}

// handleStream handles POST /stream: run the agent and return the raw stream
// body without reduction.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Prompt == "" {
		g.sendJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	authCtx := auth.FromContext(r.Context())
	result := g.orchestrator.Stream(r.Context(), InvokeParams{
		Prompt:         req.Prompt,
		AssistantID:    req.AssistantID,
		ThreadID:       req.ThreadID,
		ConversationID: req.ConversationID,
	}, authCtx)

	if result.IsError {
		g.sendJSONError(w, http.StatusInternalServerError, result.Output)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StreamResponse{
		Output:         result.Output,
		ChunksReceived: result.Chunks,
		Status:         "success",
	})
}

// handleHealth handles GET /health. Public: ChatGPT Enterprise probes this
// before attaching credentials.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":       "healthy",
		"service":      "bridge-gateway",
		"version":      "1.0.0",
		"auth_enabled": g.config.Auth.Enabled,
	})
}

// handleListAgents handles GET /agents and returns the invocable assistants.
func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	agents := []AgentInfo{
		{
			ID:          g.config.Upstream.AssistantID,
			Name:        "General Agent",
			Description: "General purpose conversational agent",
		},
		{
			ID:          g.config.Upstream.HealthAssistantID,
			Name:        "Health Agent",
			Description: "System health monitoring agent",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]AgentInfo{"agents": agents})
}
