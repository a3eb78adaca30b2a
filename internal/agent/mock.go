package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"proctor/internal/models"
)

// ScriptedReply is one canned mock response, selected when the incoming
// message contains Match (or unconditionally when Match is empty).
type ScriptedReply struct {
	Match   string
	Content string
	Events  []StreamEvent
	Err     error
}

// MockEngine is a scriptable in-process engine for tests and dry runs. It
// implements the session and cache hooks so the orchestration paths that
// depend on them are exercisable without a live agent.
type MockEngine struct {
	replies []ScriptedReply

	// Requests records every invocation in order.
	Requests []InvocationRequest
	// Sessions records every session created.
	Sessions []string
	// CacheInvalidations counts InvalidateCache calls.
	CacheInvalidations int
}

// NewMockEngine creates a mock with the given script.
func NewMockEngine(replies ...ScriptedReply) *MockEngine {
	return &MockEngine{replies: replies}
}

func (m *MockEngine) Initialize(context.Context) error { return nil }
func (m *MockEngine) Shutdown(context.Context) error   { return nil }

func (m *MockEngine) InvalidateCache(context.Context) error {
	m.CacheInvalidations++
	return nil
}

func (m *MockEngine) CreateSession(context.Context) (string, error) {
	id := uuid.NewString()
	m.Sessions = append(m.Sessions, id)
	return id, nil
}

func (m *MockEngine) EndSession(context.Context, string) error    { return nil }
func (m *MockEngine) DeleteSession(context.Context, string) error { return nil }

// Invoke replays the first scripted reply matching the message. With no
// script, it echoes the message.
func (m *MockEngine) Invoke(_ context.Context, req *InvocationRequest) (*models.AgentOutcome, error) {
	m.Requests = append(m.Requests, *req)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		m.Sessions = append(m.Sessions, sessionID)
	}

	for _, reply := range m.replies {
		if reply.Match != "" && !strings.Contains(strings.ToLower(req.Message), strings.ToLower(reply.Match)) {
			continue
		}
		if reply.Err != nil {
			return nil, reply.Err
		}

		red := Reduce(reply.Events)
		content := red.Content
		if content == "" {
			content = reply.Content
		}
		return &models.AgentOutcome{
			Content:   content,
			SessionID: sessionID,
			ToolCalls: red.ToolCalls,
			Trace:     red.Trace,
		}, nil
	}

	return &models.AgentOutcome{
		Content:   fmt.Sprintf("Mock response for: %s", req.Message),
		SessionID: sessionID,
	}, nil
}
