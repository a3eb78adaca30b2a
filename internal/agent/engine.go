// Package agent adapts a conversational agent behind a uniform invocation
// interface: one prompt (or a prompt sequence) in, a normalized
// models.AgentOutcome out. The HTTP client talks to a running agent server;
// the mock engine scripts outcomes for tests and dry runs.
package agent

import (
	"context"
	"fmt"

	"proctor/internal/models"
)

// Engine executes prompts against an agent implementation.
type Engine interface {
	// Initialize prepares the engine for a run.
	Initialize(ctx context.Context) error

	// Invoke sends one user message and returns the normalized outcome.
	// An empty SessionID asks the engine to open a fresh session.
	Invoke(ctx context.Context, req *InvocationRequest) (*models.AgentOutcome, error)

	// Shutdown releases engine resources.
	Shutdown(ctx context.Context) error
}

// CacheInvalidator is implemented by engines whose agent memoizes tool
// results between invocations. The runner calls it before every task so a
// store reset is actually observed by the next tool call.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// SessionManager is implemented by engines with an explicit session
// lifecycle. Multi-turn tasks run every turn on one session; the runner
// ends and deletes the session when the task completes.
type SessionManager interface {
	CreateSession(ctx context.Context) (string, error)
	EndSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// InvocationRequest is one agent turn.
type InvocationRequest struct {
	TaskID    string
	Message   string
	UserID    string
	SessionID string
}

// InvocationError wraps a transport or protocol failure talking to the
// agent. It always classifies as a harness error, never a task failure.
type InvocationError struct {
	Op         string // "create_session", "generate", ...
	StatusCode int    // non-zero for HTTP status failures
	Err        error
}

func (e *InvocationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("agent %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("agent %s: %v", e.Op, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// InvokeConversation runs a prompt sequence on one session and returns the
// outcome of every turn, final turn last. Session state carries between
// turns so follow-ups resolve against earlier context. If the engine
// manages sessions, one is created up front and torn down on return.
func InvokeConversation(ctx context.Context, engine Engine, taskID, userID string, prompts []string) ([]*models.AgentOutcome, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("task %s: no prompts to send", taskID)
	}

	var sessionID string
	if mgr, ok := engine.(SessionManager); ok {
		id, err := mgr.CreateSession(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = id
		defer func() {
			cleanupCtx := context.WithoutCancel(ctx)
			_ = mgr.EndSession(cleanupCtx, sessionID)    //nolint:errcheck
			_ = mgr.DeleteSession(cleanupCtx, sessionID) //nolint:errcheck
		}()
	}

	outcomes := make([]*models.AgentOutcome, 0, len(prompts))
	for _, prompt := range prompts {
		outcome, err := engine.Invoke(ctx, &InvocationRequest{
			TaskID:    taskID,
			Message:   prompt,
			UserID:    userID,
			SessionID: sessionID,
		})
		if err != nil {
			return nil, err
		}
		if sessionID == "" {
			sessionID = outcome.SessionID
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// FinalOutcome reduces a multi-turn conversation to the single outcome
// verification runs against: the final turn's content and tool calls,
// wholesale. Earlier turns only set up conversational state; what the agent
// said or did while getting there is never asserted on. Latency sums across
// turns and the interrupted/auto-approved flags carry if any turn set them,
// since those describe the conversation rather than the last answer.
func FinalOutcome(outcomes []*models.AgentOutcome) *models.AgentOutcome {
	if len(outcomes) == 0 {
		return &models.AgentOutcome{}
	}

	final := outcomes[len(outcomes)-1]
	result := &models.AgentOutcome{
		Content:   final.Content,
		SessionID: final.SessionID,
		ToolCalls: final.ToolCalls,
	}

	for _, o := range outcomes {
		result.LatencyMS += o.LatencyMS
		result.Interrupted = result.Interrupted || o.Interrupted
		result.AutoApproved = result.AutoApproved || o.AutoApproved
		result.Trace = append(result.Trace, o.Trace...)
	}

	return result
}
