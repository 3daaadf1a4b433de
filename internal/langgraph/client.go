// ABOUTME: HTTP client for the upstream agent platform
// ABOUTME: Streams runs, fetches thread state, and probes platform health

package langgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an upstream error response is kept for the
// error message.
const maxErrorBody = 2048

// UpstreamError reports a non-2xx response from the platform before any
// events were streamed.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// RunRequest describes one agent run. UserID and ConversationID are passed
// through inside the input object when set; ThreadID pins the platform-side
// conversation thread via the run config.
type RunRequest struct {
	AssistantID    string
	Prompt         string
	UserID         string
	ConversationID string
	ThreadID       string
}

// runPayload is the wire shape the platform expects for /runs/stream.
type runPayload struct {
	AssistantID string     `json:"assistant_id"`
	Input       runInput   `json:"input"`
	Config      *runConfig `json:"config,omitempty"`
	StreamMode  []string   `json:"stream_mode"`
}

type runInput struct {
	Messages       []runMessage `json:"messages"`
	UserID         string       `json:"userId,omitempty"`
	ConversationID string       `json:"conversationId,omitempty"`
}

type runMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runConfig struct {
	Configurable map[string]string `json:"configurable"`
}

// RawStreamResult carries the unreduced output of a raw stream call.
type RawStreamResult struct {
	Output string
	Chunks int
}

// Client calls the upstream agent platform.
type Client struct {
	baseURL      string
	invokeClient *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// NewClient creates a platform client. Each http.Client's timeout bounds
// whole calls including streaming; full invocations and raw stream reads
// carry separate budgets, so they take separate clients. A nil streamClient
// falls back to invokeClient.
func NewClient(baseURL string, invokeClient, streamClient *http.Client, logger *slog.Logger) *Client {
	if invokeClient == nil {
		invokeClient = http.DefaultClient
	}
	if streamClient == nil {
		streamClient = invokeClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		invokeClient: invokeClient,
		streamClient: streamClient,
		logger:       logger.With("component", "langgraph"),
	}
}

func (c *Client) buildPayload(req RunRequest) runPayload {
	payload := runPayload{
		AssistantID: req.AssistantID,
		Input: runInput{
			Messages: []runMessage{
				{Role: "user", Content: req.Prompt},
			},
			UserID:         req.UserID,
			ConversationID: req.ConversationID,
		},
		StreamMode: []string{"values"},
	}
	if req.ThreadID != "" {
		payload.Config = &runConfig{
			Configurable: map[string]string{"thread_id": req.ThreadID},
		}
	}
	return payload
}

func (c *Client) postStream(ctx context.Context, httpClient *http.Client, req RunRequest) (*http.Response, error) {
	body, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("encoding run payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/runs/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building run request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling upstream: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("upstream rejected run",
			"status", resp.StatusCode,
			"assistant_id", req.AssistantID,
		)
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(errBody)}
	}

	return resp, nil
}

// StreamRun executes a run and consumes its event stream to completion,
// returning the run id and final message snapshot.
func (c *Client) StreamRun(ctx context.Context, req RunRequest) (RunSnapshot, error) {
	resp, err := c.postStream(ctx, c.invokeClient, req)
	if err != nil {
		return RunSnapshot{}, err
	}
	defer resp.Body.Close()

	snapshot, err := ParseEventStream(resp.Body, c.logger)
	if err != nil {
		return snapshot, fmt.Errorf("reading event stream: %w", err)
	}

	c.logger.Debug("run completed",
		"run_id", snapshot.RunID,
		"messages", len(snapshot.Messages),
	)
	return snapshot, nil
}

// RawStream executes a run and returns the concatenated raw stream body
// without event parsing, along with the number of non-empty chunks read.
func (c *Client) RawStream(ctx context.Context, req RunRequest) (RawStreamResult, error) {
	resp, err := c.postStream(ctx, c.streamClient, req)
	if err != nil {
		return RawStreamResult{}, err
	}
	defer resp.Body.Close()

	var out strings.Builder
	chunks := 0
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if strings.TrimSpace(chunk) != "" {
				chunks++
			}
			out.WriteString(chunk)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return RawStreamResult{}, fmt.Errorf("reading stream: %w", err)
		}
	}

	return RawStreamResult{Output: out.String(), Chunks: chunks}, nil
}

// GetThreadState fetches the current state of a conversation thread.
func (c *Client) GetThreadState(ctx context.Context, threadID string) (json.RawMessage, error) {
	return c.getJSON(ctx, fmt.Sprintf("/threads/%s/state", threadID))
}

// ListThreads lists conversation threads, newest first, up to limit.
func (c *Client) ListThreads(ctx context.Context, limit int) (json.RawMessage, error) {
	return c.getJSON(ctx, fmt.Sprintf("/threads?limit=%d", limit))
}

// Health probes the platform's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ok", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.invokeClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling upstream: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.invokeClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling upstream: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	return json.RawMessage(body), nil
}
