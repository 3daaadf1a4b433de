// ABOUTME: Request orchestrator composing upstream call, stream parse, and reduce
// ABOUTME: Owns id generation and graceful error envelopes for agent runs

package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/bridge-gateway/internal/auth"
	"github.com/2389/bridge-gateway/internal/langgraph"
)

// InvokeParams describes one inbound invocation before orchestration fills in
// the blanks.
type InvokeParams struct {
	Prompt         string
	AssistantID    string
	ThreadID       string
	ConversationID string
}

// InvokeResult is the normalized outcome of an invocation. IsError results
// carry the failure as presentable text; the orchestrator never propagates a
// raw error past this envelope.
type InvokeResult struct {
	Text        string
	RunID       string
	ThreadID    string
	AllMessages []langgraph.Message
	IsError     bool
}

// runner is the slice of the upstream client the orchestrator needs.
type runner interface {
	StreamRun(ctx context.Context, req langgraph.RunRequest) (langgraph.RunSnapshot, error)
	RawStream(ctx context.Context, req langgraph.RunRequest) (langgraph.RawStreamResult, error)
}

// Orchestrator turns inbound invocations into upstream runs.
type Orchestrator struct {
	client             runner
	defaultAssistantID string
	logger             *slog.Logger
}

// NewOrchestrator creates an orchestrator backed by the given upstream client.
func NewOrchestrator(client runner, defaultAssistantID string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:             client,
		defaultAssistantID: defaultAssistantID,
		logger:             logger.With("component", "orchestrator"),
	}
}

// Invoke runs the full pipeline: fill in identifiers, call upstream, parse
// the stream, reduce to the final reply. Every invocation gets a thread id
// and conversation id so follow-up turns are always addressable.
func (o *Orchestrator) Invoke(ctx context.Context, params InvokeParams, authCtx *auth.Context) InvokeResult {
	req := o.buildRequest(params, authCtx)

	snapshot, err := o.client.StreamRun(ctx, req)
	if err != nil {
		o.logger.Error("run failed",
			"assistant_id", req.AssistantID,
			"thread_id", req.ThreadID,
			"error", err,
		)
		return InvokeResult{
			Text:     fmt.Sprintf("error invoking agent: %v", err),
			ThreadID: req.ThreadID,
			IsError:  true,
		}
	}

	messages := make([]langgraph.Message, 0, len(snapshot.Messages))
	for _, raw := range snapshot.Messages {
		messages = append(messages, langgraph.NormalizeMessage(raw))
	}

	return InvokeResult{
		Text:        langgraph.Reduce(snapshot.Messages),
		RunID:       snapshot.RunID,
		ThreadID:    req.ThreadID,
		AllMessages: messages,
	}
}

// StreamResult is the unreduced outcome of a raw stream invocation.
type StreamResult struct {
	Output  string
	Chunks  int
	IsError bool
}

// Stream runs the upstream call without reduction, returning the raw stream
// body for callers that do their own parsing.
func (o *Orchestrator) Stream(ctx context.Context, params InvokeParams, authCtx *auth.Context) StreamResult {
	req := o.buildRequest(params, authCtx)

	result, err := o.client.RawStream(ctx, req)
	if err != nil {
		o.logger.Error("stream failed",
			"assistant_id", req.AssistantID,
			"thread_id", req.ThreadID,
			"error", err,
		)
		return StreamResult{
			Output:  fmt.Sprintf("error invoking agent: %v", err),
			IsError: true,
		}
	}

	return StreamResult{Output: result.Output, Chunks: result.Chunks}
}

func (o *Orchestrator) buildRequest(params InvokeParams, authCtx *auth.Context) langgraph.RunRequest {
	assistantID := params.AssistantID
	if assistantID == "" {
		assistantID = o.defaultAssistantID
	}

	threadID := params.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	conversationID := params.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	var userID string
	if authCtx != nil {
		userID = authCtx.UserID()
	}

	return langgraph.RunRequest{
		AssistantID:    assistantID,
		Prompt:         params.Prompt,
		UserID:         userID,
		ConversationID: conversationID,
		ThreadID:       threadID,
	}
}
