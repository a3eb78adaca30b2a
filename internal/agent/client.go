package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"proctor/internal/models"
)

const defaultTimeout = 120 * time.Second

// Client invokes an agent server over HTTP. Sessions are created on the
// server; each /generate call streams the reply back as SSE. A Client is
// safe for reuse across tasks but performs one invocation at a time.
type Client struct {
	baseURL     string
	http        *http.Client
	autoApprove bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying HTTP client. Tests use it to
// point at an httptest server with a short timeout.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds each round trip to the agent.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithAutoApprove controls whether the client resolves confirmation pauses
// itself. On by default; disable to assert on the interrupt prompt.
func WithAutoApprove(enabled bool) ClientOption {
	return func(c *Client) { c.autoApprove = enabled }
}

// NewClient builds a Client for the agent server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: defaultTimeout},
		autoApprove: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize verifies the agent server is reachable by opening and
// discarding a session.
func (c *Client) Initialize(ctx context.Context) error {
	id, err := c.CreateSession(ctx)
	if err != nil {
		return err
	}
	if err := c.DeleteSession(ctx, id); err != nil {
		slog.Warn("could not delete probe session", "session_id", id, "error", err)
	}
	return nil
}

// Shutdown is a no-op; sessions are torn down per conversation.
func (c *Client) Shutdown(context.Context) error { return nil }

// CreateSession opens a fresh server-side session.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/create_session", nil)
	if err != nil {
		return "", &InvocationError{Op: "create_session", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &InvocationError{Op: "create_session", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", &InvocationError{Op: "create_session", StatusCode: resp.StatusCode}
	}

	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &InvocationError{Op: "create_session", Err: err}
	}
	if body.SessionID == "" {
		return "", &InvocationError{Op: "create_session", Err: fmt.Errorf("server returned empty session_id")}
	}
	return body.SessionID, nil
}

// EndSession closes a session, keeping its server-side transcript.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.sessionOp(ctx, http.MethodGet, "end_session", sessionID)
}

// DeleteSession removes a session and its resources.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.sessionOp(ctx, http.MethodDelete, "delete_session", sessionID)
}

func (c *Client) sessionOp(ctx context.Context, method, op, sessionID string) error {
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, op, url.Values{"session_id": {sessionID}}.Encode())
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return &InvocationError{Op: op, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &InvocationError{Op: op, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &InvocationError{Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}

type generatePayload struct {
	Messages  []chatMessage `json:"messages"`
	UserID    string        `json:"user_id"`
	SessionID string        `json:"session_id"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Invoke sends one user message and normalizes the streamed reply. When the
// agent pauses for confirmation and auto-approval is on, the client answers
// "yes" on the same session and splices the continuation into the content
// behind an explicit marker, so transcripts show where the approval
// happened. Auto-approval runs at most once per invocation.
func (c *Client) Invoke(ctx context.Context, req *InvocationRequest) (*models.AgentOutcome, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		id, err := c.CreateSession(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = id
	}

	start := time.Now()

	first, err := c.generate(ctx, req.Message, req.UserID, sessionID)
	if err != nil {
		return nil, err
	}

	content := first.Content
	interrupted := first.AwaitingConfirmation || looksLikeConfirmationPrompt(first.Content)
	autoApproved := false

	if interrupted && c.autoApprove {
		slog.Debug("auto-approving confirmation pause", "task", req.TaskID, "session_id", sessionID)
		followup, err := c.generate(ctx, "yes", req.UserID, sessionID)
		if err != nil {
			return nil, err
		}
		content = content + "\n[AUTO-APPROVED]\n" + followup.Content
		autoApproved = true
	}

	return &models.AgentOutcome{
		Content:      content,
		SessionID:    sessionID,
		Interrupted:  interrupted,
		AutoApproved: autoApproved,
		LatencyMS:    time.Since(start).Milliseconds(),
	}, nil
}

func (c *Client) generate(ctx context.Context, message, userID, sessionID string) (sseResult, error) {
	payload, err := json.Marshal(generatePayload{
		Messages:  []chatMessage{{Role: "user", Content: message}},
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return sseResult{}, &InvocationError{Op: "generate", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return sseResult{}, &InvocationError{Op: "generate", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return sseResult{}, &InvocationError{Op: "generate", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return sseResult{}, &InvocationError{Op: "generate", StatusCode: resp.StatusCode}
	}

	result, err := parseSSE(resp.Body)
	if err != nil {
		return sseResult{}, &InvocationError{Op: "generate", Err: err}
	}
	return result, nil
}
