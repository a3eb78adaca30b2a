package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAgent is a minimal agent server speaking the session + SSE protocol.
type fakeAgent struct {
	t *testing.T

	sessions     map[string][]string // session -> messages received
	ended        []string
	deleted      []string
	replies      func(sessionID, message string) string
	generateFail int // fail this many /generate calls with 500
}

func newFakeAgent(t *testing.T) *fakeAgent {
	return &fakeAgent{t: t, sessions: map[string][]string{}}
}

func (f *fakeAgent) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /create_session", func(w http.ResponseWriter, r *http.Request) {
		id := fmt.Sprintf("sess-%d", len(f.sessions)+1)
		f.sessions[id] = nil
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": id}) //nolint:errcheck
	})

	mux.HandleFunc("GET /end_session", func(w http.ResponseWriter, r *http.Request) {
		f.ended = append(f.ended, r.URL.Query().Get("session_id"))
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("DELETE /delete_session", func(w http.ResponseWriter, r *http.Request) {
		f.deleted = append(f.deleted, r.URL.Query().Get("session_id"))
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		if f.generateFail > 0 {
			f.generateFail--
			http.Error(w, "agent exploded", http.StatusInternalServerError)
			return
		}

		var payload struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
			SessionID string `json:"session_id"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(f.t, payload.Messages, 1)

		message := payload.Messages[0].Content
		f.sessions[payload.SessionID] = append(f.sessions[payload.SessionID], message)

		reply := "Default reply."
		if f.replies != nil {
			reply = f.replies(payload.SessionID, message)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		// Stream the reply in two chunks plus a terminal marker.
		half := len(reply) / 2
		writeSSE(w, reply[:half], "")
		writeSSE(w, reply[half:], "")
		writeSSE(w, "", "[DONE]")
	})

	return mux
}

func writeSSE(w http.ResponseWriter, content, finishReason string) {
	chunk := map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]any{"content": content},
			"finish_reason": finishReason,
		}},
	}
	data, _ := json.Marshal(chunk) //nolint:errcheck
	fmt.Fprintf(w, "data: %s\n", data)
}

func TestClientInvoke(t *testing.T) {
	fake := newFakeAgent(t)
	fake.replies = func(_, message string) string {
		return "You asked: " + message
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL)
	outcome, err := client.Invoke(context.Background(), &InvocationRequest{
		TaskID:  "order_status_001",
		Message: "Where is my order 2001?",
		UserID:  "1001",
	})
	require.NoError(t, err)
	require.Equal(t, "You asked: Where is my order 2001?", outcome.Content)
	require.NotEmpty(t, outcome.SessionID)
	require.False(t, outcome.Interrupted)
	require.GreaterOrEqual(t, outcome.LatencyMS, int64(0))
}

func TestClientAutoApprove(t *testing.T) {
	fake := newFakeAgent(t)
	fake.replies = func(sessionID, message string) string {
		if message == "yes" {
			return "Your return has been started."
		}
		return "Please approve: do you want to return this item?"
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL)
	outcome, err := client.Invoke(context.Background(), &InvocationRequest{
		TaskID:  "return_init_001",
		Message: "I want to return my hub.",
		UserID:  "1001",
	})
	require.NoError(t, err)
	require.True(t, outcome.Interrupted)
	require.True(t, outcome.AutoApproved)
	require.Contains(t, outcome.Content, "[AUTO-APPROVED]")
	require.Contains(t, outcome.Content, "Your return has been started.")

	// Both turns landed on the same session.
	require.Len(t, fake.sessions, 1)
	for _, msgs := range fake.sessions {
		require.Equal(t, []string{"I want to return my hub.", "yes"}, msgs)
	}
}

func TestClientAutoApproveDisabled(t *testing.T) {
	fake := newFakeAgent(t)
	fake.replies = func(_, _ string) string {
		return "Please approve: do you want to return this item?"
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, WithAutoApprove(false))
	outcome, err := client.Invoke(context.Background(), &InvocationRequest{
		TaskID:  "return_init_001",
		Message: "I want to return my hub.",
		UserID:  "1001",
	})
	require.NoError(t, err)
	require.True(t, outcome.Interrupted)
	require.False(t, outcome.AutoApproved)
	require.NotContains(t, outcome.Content, "[AUTO-APPROVED]")
}

func TestClientGenerateFailure(t *testing.T) {
	fake := newFakeAgent(t)
	fake.generateFail = 1
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Invoke(context.Background(), &InvocationRequest{
		TaskID:  "order_status_001",
		Message: "hello",
		UserID:  "1001",
	})
	require.Error(t, err)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	require.Equal(t, "generate", invErr.Op)
	require.Equal(t, http.StatusInternalServerError, invErr.StatusCode)
}

func TestInvokeConversationMultiTurn(t *testing.T) {
	fake := newFakeAgent(t)
	fake.replies = func(sessionID, message string) string {
		turn := len(fake.sessions[sessionID])
		return fmt.Sprintf("Reply %d to: %s", turn, message)
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL)
	prompts := []string{
		"What's the status of my return?",
		"When will the refund arrive?",
		"Thanks, that's all.",
	}

	outcomes, err := InvokeConversation(context.Background(), client, "return_status_002", "1001", prompts)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	// Every turn shares one session, and the session is cleaned up after.
	require.Len(t, fake.sessions, 1)
	require.Len(t, fake.ended, 1)
	require.Len(t, fake.deleted, 1)
	for _, msgs := range fake.sessions {
		require.Equal(t, prompts, msgs)
	}

	final := outcomes[2]
	require.True(t, strings.HasPrefix(final.Content, "Reply 3"))
}

// The server routes session teardown by method: end_session is a GET,
// delete_session a DELETE. Anything else 404s, so these assertions would
// catch the client drifting to the wrong verb.
func TestClientSessionTeardownMethods(t *testing.T) {
	fake := newFakeAgent(t)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL)
	id, err := client.CreateSession(context.Background())
	require.NoError(t, err)

	require.NoError(t, client.EndSession(context.Background(), id))
	require.Equal(t, []string{id}, fake.ended)

	require.NoError(t, client.DeleteSession(context.Background(), id))
	require.Equal(t, []string{id}, fake.deleted)
}

func TestParseSSE(t *testing.T) {
	t.Run("joins chunks and skips terminal marker", func(t *testing.T) {
		raw := `data: {"choices":[{"message":{"content":"Hello, "},"finish_reason":""}]}
data: {"choices":[{"message":{"content":"world."},"finish_reason":""}]}
data: {"choices":[{"message":{"content":"ignored"},"finish_reason":"[DONE]"}]}
`
		result, err := parseSSE(strings.NewReader(raw))
		require.NoError(t, err)
		require.Equal(t, "Hello, world.", result.Content)
	})

	t.Run("skips malformed lines", func(t *testing.T) {
		raw := "data: not json\ndata: {\"choices\":[{\"message\":{\"content\":\"ok\"},\"finish_reason\":\"\"}]}\n"
		result, err := parseSSE(strings.NewReader(raw))
		require.NoError(t, err)
		require.Equal(t, "ok", result.Content)
	})

	t.Run("structured confirmation signal", func(t *testing.T) {
		raw := `data: {"awaiting_confirmation":true,"choices":[{"message":{"content":"Confirm?"},"finish_reason":""}]}
`
		result, err := parseSSE(strings.NewReader(raw))
		require.NoError(t, err)
		require.True(t, result.AwaitingConfirmation)
		require.Equal(t, "Confirm?", result.Content)
	})
}
