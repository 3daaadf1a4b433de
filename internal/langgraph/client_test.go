// ABOUTME: Tests for the upstream platform client
// ABOUTME: Uses httptest servers standing in for the agent platform

package langgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStreamRun_PayloadShape(t *testing.T) {
	var captured map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runs/stream" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decoding payload: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: metadata\ndata: {\"run_id\": \"r1\"}\n\n")
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL, nil, nil, nil)
	snapshot, err := client.StreamRun(context.Background(), RunRequest{
		AssistantID:    "agent",
		Prompt:         "hello",
		UserID:         "user-1",
		ConversationID: "conv-1",
		ThreadID:       "thread-1",
	})
	if err != nil {
		t.Fatalf("StreamRun() error = %v", err)
	}
	if snapshot.RunID != "r1" {
		t.Errorf("RunID = %q", snapshot.RunID)
	}

	if captured["assistant_id"] != "agent" {
		t.Errorf("assistant_id = %v", captured["assistant_id"])
	}

	input, _ := captured["input"].(map[string]any)
	if input == nil {
		t.Fatal("payload missing input")
	}
	if input["userId"] != "user-1" || input["conversationId"] != "conv-1" {
		t.Errorf("input identity fields = %v / %v", input["userId"], input["conversationId"])
	}
	msgs, _ := input["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("len(messages) = %d", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "user" || first["content"] != "hello" {
		t.Errorf("message = %v", first)
	}

	config, _ := captured["config"].(map[string]any)
	configurable, _ := config["configurable"].(map[string]any)
	if configurable["thread_id"] != "thread-1" {
		t.Errorf("config = %v", captured["config"])
	}

	modes, _ := captured["stream_mode"].([]any)
	if len(modes) != 1 || modes[0] != "values" {
		t.Errorf("stream_mode = %v", captured["stream_mode"])
	}
}

func TestStreamRun_OmitsOptionalFields(t *testing.T) {
	var captured map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		fmt.Fprint(w, "\n")
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL, nil, nil, nil)
	_, err := client.StreamRun(context.Background(), RunRequest{
		AssistantID: "agent",
		Prompt:      "hello",
	})
	if err != nil {
		t.Fatalf("StreamRun() error = %v", err)
	}

	if _, present := captured["config"]; present {
		t.Error("config should be omitted without a thread id")
	}
	input, _ := captured["input"].(map[string]any)
	if _, present := input["userId"]; present {
		t.Error("userId should be omitted when empty")
	}
	if _, present := input["conversationId"]; present {
		t.Error("conversationId should be omitted when empty")
	}
}

func TestStreamRun_UpstreamRejection(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL, nil, nil, nil)
	_, err := client.StreamRun(context.Background(), RunRequest{AssistantID: "agent", Prompt: "x"})

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if upstreamErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d", upstreamErr.Status)
	}
}

func TestRawStream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: values\ndata: {\"messages\": []}\n\n")
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL, nil, nil, nil)
	result, err := client.RawStream(context.Background(), RunRequest{AssistantID: "agent", Prompt: "x"})
	if err != nil {
		t.Fatalf("RawStream() error = %v", err)
	}
	if result.Output == "" {
		t.Error("Output is empty")
	}
	if result.Chunks == 0 {
		t.Error("Chunks = 0")
	}
}

func TestGetThreadState(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/t-1/state" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"values": {"messages": []}}`)
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL, nil, nil, nil)
	state, err := client.GetThreadState(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("GetThreadState() error = %v", err)
	}
	if !json.Valid(state) {
		t.Error("state is not valid JSON")
	}
}

func TestListThreads(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		fmt.Fprint(w, `[]`)
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL, nil, nil, nil)
	if _, err := client.ListThreads(context.Background(), 5); err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/ok" {
				t.Errorf("path = %q", r.URL.Path)
			}
			fmt.Fprint(w, `{"ok": true}`)
		}))
		defer upstream.Close()

		client := NewClient(upstream.URL, nil, nil, nil)
		if err := client.Health(context.Background()); err != nil {
			t.Errorf("Health() error = %v", err)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		}))
		defer upstream.Close()

		client := NewClient(upstream.URL, nil, nil, nil)
		if err := client.Health(context.Background()); err == nil {
			t.Error("Health() error = nil, want error")
		}
	})
}

// taggingTransport stamps each outbound request so the handler can tell
// which http.Client carried it.
type taggingTransport struct {
	tag string
}

func (tt *taggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("X-Client-Tag", tt.tag)
	return http.DefaultTransport.RoundTrip(clone)
}

func TestClient_InvokeAndStreamUseSeparateClients(t *testing.T) {
	var tags []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tags = append(tags, r.Header.Get("X-Client-Tag"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: metadata\ndata: {\"run_id\": \"r1\"}\n\n")
	}))
	defer upstream.Close()

	client := NewClient(upstream.URL,
		&http.Client{Transport: &taggingTransport{tag: "invoke"}},
		&http.Client{Transport: &taggingTransport{tag: "stream"}},
		nil,
	)

	req := RunRequest{AssistantID: "agent", Prompt: "hi"}
	if _, err := client.StreamRun(context.Background(), req); err != nil {
		t.Fatalf("StreamRun() error = %v", err)
	}
	if _, err := client.RawStream(context.Background(), req); err != nil {
		t.Fatalf("RawStream() error = %v", err)
	}

	if len(tags) != 2 || tags[0] != "invoke" || tags[1] != "stream" {
		t.Errorf("request client tags = %v, want [invoke stream]", tags)
	}
}
