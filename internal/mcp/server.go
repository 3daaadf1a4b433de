// ABOUTME: MCP Streamable HTTP endpoint with JSON-RPC 2.0 message handling
// ABOUTME: Manages sessions and routes initialize, tools/list, and tools/call

package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/bridge-gateway/internal/auth"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2025-03-26": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version advertised in initialize responses.
const latestProtocolVersion = "2025-11-25"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// ToolInfo represents an MCP tool definition.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the result for tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content represents content in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// RunParams describe one agent run requested through a tool.
type RunParams struct {
	Prompt         string
	AssistantID    string
	ThreadID       string
	ConversationID string
}

// RunOutcome is the reduced result of a run. IsError outcomes carry the
// failure as presentable text.
type RunOutcome struct {
	Text     string
	RunID    string
	ThreadID string
	IsError  bool
}

// StreamOutcome is the unreduced result of a raw stream run.
type StreamOutcome struct {
	Output  string
	Chunks  int
	IsError bool
}

// Runner executes agent runs on behalf of tool calls.
type Runner interface {
	Invoke(ctx context.Context, p RunParams, authCtx *auth.Context) RunOutcome
	Stream(ctx context.Context, p RunParams, authCtx *auth.Context) StreamOutcome
}

// Upstream is the slice of the platform client the passthrough tools need.
type Upstream interface {
	GetThreadState(ctx context.Context, threadID string) (json.RawMessage, error)
	ListThreads(ctx context.Context, limit int) (json.RawMessage, error)
	Health(ctx context.Context) error
}

// session tracks an active MCP client session.
type session struct {
	id              string
	protocolVersion string
	ownerToken      string // credential used at initialize, checked on DELETE
	createdAt       time.Time
}

// sessionStore manages active MCP sessions (in-memory).
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) create(protocolVersion, ownerToken string) *session {
	sess := &session{
		id:              uuid.New().String(),
		protocolVersion: protocolVersion,
		ownerToken:      ownerToken,
		createdAt:       time.Now(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return existed
}

// Config holds configuration for the MCP server.
type Config struct {
	Runner           Runner
	Upstream         Upstream
	DefaultAssistant string
	HealthAssistant  string
	Logger           *slog.Logger
}

// Server implements the MCP endpoint. Conforms to the MCP Streamable HTTP
// transport specification (2025-11-25).
type Server struct {
	runner           Runner
	upstream         Upstream
	defaultAssistant string
	healthAssistant  string
	tools            []toolDefinition
	sessions         *sessionStore
	logger           *slog.Logger
}

// NewServer creates an MCP server with the given configuration.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		runner:           cfg.Runner,
		upstream:         cfg.Upstream,
		defaultAssistant: cfg.DefaultAssistant,
		healthAssistant:  cfg.HealthAssistant,
		sessions:         newSessionStore(),
		logger:           logger,
	}
	s.tools = s.buildTools()
	return s
}

// RegisterRoutes registers the MCP endpoint on the mux behind the given
// middleware.
func (s *Server) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("/mcp", protect(http.HandlerFunc(s.handleMCP)))
}

// handleMCP is the single MCP endpoint supporting POST and DELETE per the
// Streamable HTTP transport spec.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		// Server-initiated SSE streams are not supported
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session. The caller must present the same
// credential used at initialize.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, ok := s.sessions.get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if sess.ownerToken != "" && auth.ExtractCredential(r) != sess.ownerToken {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.sessions.delete(sessionID)
	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendError(w, nil, JSONRPCParseError, "failed to read request body")
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendError(w, nil, JSONRPCInvalidRequest, "request body too large")
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendError(w, nil, JSONRPCParseError, "invalid JSON")
		return
	}

	if req.JSONRPC != "2.0" {
		s.sendError(w, req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version")
		return
	}

	isInitialize := req.Method == "initialize"
	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	// An absent version header means a pre-2025-06 client; treat as 2025-03-26.
	if !isInitialize && protoVersion != "" && !supportedProtocolVersions[protoVersion] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}

	if !isInitialize && !isNotification {
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		if _, ok := s.sessions.get(sessionID); !ok {
			// Session expired or invalid - client must re-initialize
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", isNotification,
		"session_id", sessionID,
	)

	// Notifications: accept and return HTTP 202 with no body
	if isNotification {
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
		} else {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(w, r, req)
	case "tools/list":
		s.handleToolsList(w, req)
	case "tools/call":
		s.handleToolsCall(w, r, req)
	default:
		s.sendError(w, req.ID, JSONRPCMethodNotFound, "method not found")
	}
}

// handleInitialize handles the MCP initialize handshake and creates a session.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	sess := s.sessions.create(latestProtocolVersion, auth.ExtractCredential(r))

	s.logger.Info("MCP session created",
		"session_id", sess.id,
		"protocol_version", sess.protocolVersion,
	)

	w.Header().Set("Mcp-Session-Id", sess.id)

	result := map[string]any{
		"protocolVersion": latestProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "bridge-gateway",
			"version": "1.0.0",
		},
	}
	s.sendResult(w, req.ID, result)
}

// handleToolsList handles tools/list requests.
func (s *Server) handleToolsList(w http.ResponseWriter, req JSONRPCRequest) {
	result := ListToolsResult{
		Tools: make([]ToolInfo, len(s.tools)),
	}
	for i, tool := range s.tools {
		result.Tools[i] = ToolInfo{
			Name:        tool.name,
			Description: tool.description,
			InputSchema: tool.inputSchema,
		}
	}

	s.logger.Debug("tools/list", "count", len(s.tools))
	s.sendResult(w, req.ID, result)
}

// handleToolsCall handles tools/call requests.
func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendError(w, req.ID, JSONRPCInvalidParams, "invalid params")
			return
		}
	}

	if params.Name == "" {
		s.sendError(w, req.ID, JSONRPCInvalidParams, "tool name is required")
		return
	}

	tool := s.findTool(params.Name)
	if tool == nil {
		s.sendError(w, req.ID, JSONRPCInvalidParams, "tool not found")
		return
	}

	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	s.logger.Debug("tools/call", "tool_name", params.Name)

	result := tool.call(r.Context(), args, auth.FromContext(r.Context()))

	s.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"is_error", result.IsError,
	)
	s.sendResult(w, req.ID, result)
}

func (s *Server) findTool(name string) *toolDefinition {
	for i := range s.tools {
		if s.tools[i].name == name {
			return &s.tools[i]
		}
	}
	return nil
}

// sendResult sends a successful JSON-RPC response.
func (s *Server) sendResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// sendError sends a JSON-RPC error response.
func (s *Server) sendError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}
