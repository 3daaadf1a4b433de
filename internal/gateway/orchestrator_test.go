// ABOUTME: Tests for the orchestrator pipeline and id generation
// ABOUTME: Uses a stub upstream client to avoid network calls

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/2389/bridge-gateway/internal/auth"
	"github.com/2389/bridge-gateway/internal/langgraph"
)

// stubClient records the request it received and returns canned results.
type stubClient struct {
	lastReq   langgraph.RunRequest
	snapshot  langgraph.RunSnapshot
	rawResult langgraph.RawStreamResult
	err       error
}

func (s *stubClient) StreamRun(_ context.Context, req langgraph.RunRequest) (langgraph.RunSnapshot, error) {
	s.lastReq = req
	return s.snapshot, s.err
}

func (s *stubClient) RawStream(_ context.Context, req langgraph.RunRequest) (langgraph.RawStreamResult, error) {
	s.lastReq = req
	return s.rawResult, s.err
}

func snapshotWith(t *testing.T, docs ...string) langgraph.RunSnapshot {
	t.Helper()

	snapshot := langgraph.RunSnapshot{RunID: "run-1"}
	for _, doc := range docs {
		if !json.Valid([]byte(doc)) {
			t.Fatalf("invalid fixture: %s", doc)
		}
		snapshot.Messages = append(snapshot.Messages, json.RawMessage(doc))
	}
	return snapshot
}

func TestInvoke_ReducesFinalReply(t *testing.T) {
	client := &stubClient{snapshot: snapshotWith(t,
		`{"role": "user", "content": "hello"}`,
		`{"role": "assistant", "content": "Hi! How can I help?"}`,
	)}
	o := NewOrchestrator(client, "agent", nil)

	result := o.Invoke(context.Background(), InvokeParams{Prompt: "hello"}, nil)

	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Text)
	}
	if result.Text != "Hi! How can I help?" {
		t.Errorf("expected reduced assistant reply, got %q", result.Text)
	}
	if result.RunID != "run-1" {
		t.Errorf("expected run id from snapshot, got %q", result.RunID)
	}
	if len(result.AllMessages) != 2 {
		t.Fatalf("expected 2 normalized messages, got %d", len(result.AllMessages))
	}
	if result.AllMessages[0].Role != langgraph.RoleUser {
		t.Errorf("expected first message role user, got %q", result.AllMessages[0].Role)
	}
}

func TestInvoke_FillsDefaults(t *testing.T) {
	client := &stubClient{snapshot: snapshotWith(t)}
	o := NewOrchestrator(client, "default-agent", nil)

	result := o.Invoke(context.Background(), InvokeParams{Prompt: "hi"}, nil)

	if client.lastReq.AssistantID != "default-agent" {
		t.Errorf("expected default assistant, got %q", client.lastReq.AssistantID)
	}
	if client.lastReq.ThreadID == "" {
		t.Error("expected a generated thread id")
	}
	if client.lastReq.ConversationID == "" {
		t.Error("expected a generated conversation id")
	}
	if client.lastReq.ThreadID == client.lastReq.ConversationID {
		t.Error("thread and conversation ids must be generated independently")
	}
	if result.ThreadID != client.lastReq.ThreadID {
		t.Errorf("result thread id %q does not match request %q", result.ThreadID, client.lastReq.ThreadID)
	}
}

func TestInvoke_PreservesProvidedIDs(t *testing.T) {
	client := &stubClient{snapshot: snapshotWith(t)}
	o := NewOrchestrator(client, "agent", nil)

	o.Invoke(context.Background(), InvokeParams{
		Prompt:         "hi",
		AssistantID:    "special",
		ThreadID:       "t-1",
		ConversationID: "c-1",
	}, nil)

	if client.lastReq.AssistantID != "special" {
		t.Errorf("expected assistant special, got %q", client.lastReq.AssistantID)
	}
	if client.lastReq.ThreadID != "t-1" {
		t.Errorf("expected thread t-1, got %q", client.lastReq.ThreadID)
	}
	if client.lastReq.ConversationID != "c-1" {
		t.Errorf("expected conversation c-1, got %q", client.lastReq.ConversationID)
	}
}

func TestInvoke_ForwardsUserID(t *testing.T) {
	client := &stubClient{snapshot: snapshotWith(t)}
	o := NewOrchestrator(client, "agent", nil)

	o.Invoke(context.Background(), InvokeParams{Prompt: "hi"}, &auth.Context{
		Method:  auth.MethodIssuedToken,
		Subject: "user-7",
	})

	if client.lastReq.UserID != "user-7" {
		t.Errorf("expected user id from auth context, got %q", client.lastReq.UserID)
	}
}

func TestInvoke_UpstreamErrorBecomesEnvelope(t *testing.T) {
	client := &stubClient{err: &langgraph.UpstreamError{Status: 503, Body: "unavailable"}}
	o := NewOrchestrator(client, "agent", nil)

	result := o.Invoke(context.Background(), InvokeParams{Prompt: "hi", ThreadID: "t-9"}, nil)

	if !result.IsError {
		t.Fatal("expected an error result")
	}
	if !strings.HasPrefix(result.Text, "error invoking agent: ") {
		t.Errorf("expected error envelope prefix, got %q", result.Text)
	}
	if result.ThreadID != "t-9" {
		t.Errorf("expected thread id preserved on error, got %q", result.ThreadID)
	}
}

func TestInvoke_NoAssistantMessageFallsBack(t *testing.T) {
	client := &stubClient{snapshot: snapshotWith(t,
		`{"role": "user", "content": "hello"}`,
	)}
	o := NewOrchestrator(client, "agent", nil)

	result := o.Invoke(context.Background(), InvokeParams{Prompt: "hello"}, nil)
	if result.Text != langgraph.FallbackText {
		t.Errorf("expected fallback text, got %q", result.Text)
	}
}

func TestStream_ReturnsRawOutput(t *testing.T) {
	client := &stubClient{rawResult: langgraph.RawStreamResult{Output: "event: values\ndata: {}\n\n", Chunks: 3}}
	o := NewOrchestrator(client, "agent", nil)

	result := o.Stream(context.Background(), InvokeParams{Prompt: "hi"}, nil)

	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Output)
	}
	if result.Chunks != 3 {
		t.Errorf("expected 3 chunks, got %d", result.Chunks)
	}
	if result.Output == "" {
		t.Error("expected raw output passthrough")
	}
}

func TestStream_ErrorEnvelope(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	o := NewOrchestrator(client, "agent", nil)

	result := o.Stream(context.Background(), InvokeParams{Prompt: "hi"}, nil)

	if !result.IsError {
		t.Fatal("expected an error result")
	}
	if !strings.Contains(result.Output, "connection refused") {
		t.Errorf("expected underlying error in output, got %q", result.Output)
	}
}
