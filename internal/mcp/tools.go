// ABOUTME: Agent tool set exposed over tools/list and tools/call
// ABOUTME: Fronts invocation, health probes, and thread passthrough

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389/bridge-gateway/internal/auth"
	"github.com/2389/bridge-gateway/internal/htmlfmt"
)

// toolHandler executes one tool call. It returns the result payload; failed
// payloads use the same {error, status: failed} shape the chat clients
// already handle.
type toolHandler func(ctx context.Context, args json.RawMessage, authCtx *auth.Context) (any, bool)

type toolDefinition struct {
	name        string
	description string
	inputSchema json.RawMessage
	handler     toolHandler
}

// call runs the handler and wraps its payload as MCP tool content.
func (t *toolDefinition) call(ctx context.Context, args json.RawMessage, authCtx *auth.Context) CallToolResult {
	payload, isError := t.handler(ctx, args, authCtx)

	text, err := json.Marshal(payload)
	if err != nil {
		return CallToolResult{
			Content: []Content{{Type: "text", Text: "internal error encoding tool result"}},
			IsError: true,
		}
	}
	return CallToolResult{
		Content: []Content{{Type: "text", Text: string(text)}},
		IsError: isError,
	}
}

func failure(msg string) (any, bool) {
	return map[string]string{"error": msg, "status": "failed"}, true
}

// invokeArgs are shared by the invocation-style tools.
type invokeArgs struct {
	Prompt         string `json:"prompt"`
	AssistantID    string `json:"assistant_id"`
	ThreadID       string `json:"thread_id"`
	ConversationID string `json:"conversation_id"`
	Format         string `json:"format"`
	AgentName      string `json:"agent_name"`
	Limit          int    `json:"limit"`
	Message        string `json:"message"`
}

func parseArgs(raw json.RawMessage) (invokeArgs, error) {
	var args invokeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

func (s *Server) buildTools() []toolDefinition {
	return []toolDefinition{
		{
			name:        "invoke_agent",
			description: "Invoke the conversational agent with a prompt and wait for the final reply. Pass thread_id to continue a previous conversation. Set format to \"html\" for an iframe-ready HTML page.",
			inputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"prompt": {"type": "string", "description": "The user prompt to send to the agent"},
					"assistant_id": {"type": "string", "description": "Assistant to run (defaults to the general agent)"},
					"thread_id": {"type": "string", "description": "Thread ID for conversation continuity"},
					"conversation_id": {"type": "string", "description": "Caller-side conversation identifier"},
					"format": {"type": "string", "enum": ["text", "html"], "description": "Response format"}
				},
				"required": ["prompt"]
			}`),
			handler: s.toolInvokeAgent,
		},
		{
			name:        "stream_agent",
			description: "Run the agent and return the raw event stream output without reduction.",
			inputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"prompt": {"type": "string", "description": "The user prompt to send to the agent"},
					"assistant_id": {"type": "string", "description": "Assistant to run (defaults to the general agent)"},
					"thread_id": {"type": "string", "description": "Thread ID for conversation continuity"}
				},
				"required": ["prompt"]
			}`),
			handler: s.toolStreamAgent,
		},
		{
			name:        "check_system_health",
			description: "Run the health monitoring assistant and report overall system health.",
			inputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
			handler: s.toolCheckSystemHealth,
		},
		{
			name:        "check_agent_status",
			description: "Check the status of a specific named agent via the health assistant.",
			inputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"agent_name": {"type": "string", "description": "Name of the agent to check"}
				},
				"required": ["agent_name"]
			}`),
			handler: s.toolCheckAgentStatus,
		},
		{
			name:        "get_thread_state",
			description: "Get the current state of a conversation thread.",
			inputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"thread_id": {"type": "string", "description": "The thread ID to query"}
				},
				"required": ["thread_id"]
			}`),
			handler: s.toolGetThreadState,
		},
		{
			name:        "list_threads",
			description: "List available conversation threads, newest first.",
			inputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"limit": {"type": "integer", "description": "Maximum number of threads to return (default 10)"}
				}
			}`),
			handler: s.toolListThreads,
		},
		{
			name:        "echo",
			description: "Echo a message back. Connectivity test tool.",
			inputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"message": {"type": "string", "description": "Message to echo back"}
				},
				"required": ["message"]
			}`),
			handler: s.toolEcho,
		},
		{
			name:        "get_server_info",
			description: "Get information about this MCP server and its capabilities.",
			inputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
			handler: s.toolServerInfo,
		},
	}
}

func (s *Server) toolInvokeAgent(ctx context.Context, raw json.RawMessage, authCtx *auth.Context) (any, bool) {
	args, err := parseArgs(raw)
	if err != nil {
		return failure(err.Error())
	}
	if args.Prompt == "" {
		return failure("prompt is required")
	}

	outcome := s.runner.Invoke(ctx, RunParams{
		Prompt:         args.Prompt,
		AssistantID:    args.AssistantID,
		ThreadID:       args.ThreadID,
		ConversationID: args.ConversationID,
	}, authCtx)
	if outcome.IsError {
		return failure(outcome.Text)
	}

	output := map[string]any{"content": outcome.Text}
	if args.Format == "html" {
		output["content_html"] = htmlfmt.Page(outcome.Text, "Agent Response")
	}

	return map[string]any{
		"run_id":    outcome.RunID,
		"thread_id": outcome.ThreadID,
		"output":    output,
		"status":    "success",
	}, false
}

func (s *Server) toolStreamAgent(ctx context.Context, raw json.RawMessage, authCtx *auth.Context) (any, bool) {
	args, err := parseArgs(raw)
	if err != nil {
		return failure(err.Error())
	}
	if args.Prompt == "" {
		return failure("prompt is required")
	}

	outcome := s.runner.Stream(ctx, RunParams{
		Prompt:      args.Prompt,
		AssistantID: args.AssistantID,
		ThreadID:    args.ThreadID,
	}, authCtx)
	if outcome.IsError {
		return failure(outcome.Output)
	}

	return map[string]any{
		"output":          outcome.Output,
		"chunks_received": outcome.Chunks,
		"status":          "success",
	}, false
}

func (s *Server) toolCheckSystemHealth(ctx context.Context, _ json.RawMessage, authCtx *auth.Context) (any, bool) {
	outcome := s.runner.Invoke(ctx, RunParams{
		Prompt:      "Check system health",
		AssistantID: s.healthAssistant,
	}, authCtx)
	if outcome.IsError {
		return failure(outcome.Text)
	}

	return map[string]any{
		"health_check": outcome.Text,
		"run_id":       outcome.RunID,
		"status":       "success",
	}, false
}

func (s *Server) toolCheckAgentStatus(ctx context.Context, raw json.RawMessage, authCtx *auth.Context) (any, bool) {
	args, err := parseArgs(raw)
	if err != nil {
		return failure(err.Error())
	}
	if args.AgentName == "" {
		return failure("agent_name is required")
	}

	outcome := s.runner.Invoke(ctx, RunParams{
		Prompt:      fmt.Sprintf("Check %s agent status", args.AgentName),
		AssistantID: s.healthAssistant,
	}, authCtx)
	if outcome.IsError {
		return failure(outcome.Text)
	}

	return map[string]any{
		"agent":        args.AgentName,
		"status_check": outcome.Text,
		"run_id":       outcome.RunID,
		"status":       "success",
	}, false
}

func (s *Server) toolGetThreadState(ctx context.Context, raw json.RawMessage, _ *auth.Context) (any, bool) {
	args, err := parseArgs(raw)
	if err != nil {
		return failure(err.Error())
	}
	if args.ThreadID == "" {
		return failure("thread_id is required")
	}

	state, err := s.upstream.GetThreadState(ctx, args.ThreadID)
	if err != nil {
		return failure(fmt.Sprintf("error fetching state: %v", err))
	}

	return map[string]any{
		"state":     state,
		"thread_id": args.ThreadID,
		"status":    "success",
	}, false
}

func (s *Server) toolListThreads(ctx context.Context, raw json.RawMessage, _ *auth.Context) (any, bool) {
	args, err := parseArgs(raw)
	if err != nil {
		return failure(err.Error())
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}

	threads, err := s.upstream.ListThreads(ctx, limit)
	if err != nil {
		return failure(fmt.Sprintf("error listing threads: %v", err))
	}

	return map[string]any{
		"threads": threads,
		"status":  "success",
	}, false
}

func (s *Server) toolEcho(_ context.Context, raw json.RawMessage, _ *auth.Context) (any, bool) {
	args, err := parseArgs(raw)
	if err != nil {
		return failure(err.Error())
	}

	return map[string]any{
		"echo":   args.Message,
		"status": "success",
	}, false
}

func (s *Server) toolServerInfo(ctx context.Context, _ json.RawMessage, _ *auth.Context) (any, bool) {
	upstreamStatus := "healthy"
	if err := s.upstream.Health(ctx); err != nil {
		upstreamStatus = "unreachable"
	}

	return map[string]any{
		"name":              "bridge-gateway",
		"version":           "1.0.0",
		"transport":         "streamable-http",
		"endpoint":          "/mcp",
		"default_assistant": s.defaultAssistant,
		"health_assistant":  s.healthAssistant,
		"upstream_status":   upstreamStatus,
		"tools":             len(s.tools),
	}, false
}
