package models

import "time"

// Status represents the outcome status of a task or run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	// StatusError means the harness itself failed before verification could
	// run (transport failure, timeout), as opposed to StatusFailed which
	// means verification ran and found a mismatch.
	StatusError Status = "error"
)

// ToolCall is one observed tool invocation. Within an outcome, tool calls are
// deduplicated by name: the same tool surfacing through two instrumentation
// signals counts once, keeping its first-occurrence position and its
// most-recently-observed arguments.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// TraceEventKind tags the variant of a lifecycle trace event.
type TraceEventKind string

const (
	TraceToolStart   TraceEventKind = "tool_start"
	TraceModelStream TraceEventKind = "model_stream"
	TraceChainEnd    TraceEventKind = "chain_end"
)

// TraceEvent is a compact record of one lifecycle event, kept for debugging.
type TraceEvent struct {
	Kind TraceEventKind `json:"kind"`
	Name string         `json:"name,omitempty"`
}

// AgentOutcome is the normalized result of invoking the agent for one task.
// Constructed fresh per invocation and immutable once returned.
type AgentOutcome struct {
	Content   string     `json:"content"`
	SessionID string     `json:"session_id"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Interrupted reports that the conversation paused for a confirmation
	// step; AutoApproved that the adapter resolved it automatically.
	Interrupted  bool `json:"interrupted,omitempty"`
	AutoApproved bool `json:"auto_approved,omitempty"`

	Trace     []TraceEvent `json:"trace,omitempty"`
	LatencyMS int64        `json:"latency_ms"`
}

// ToolNames returns the deduplicated tool names in first-call order.
func (o *AgentOutcome) ToolNames() []string {
	names := make([]string, 0, len(o.ToolCalls))
	for _, tc := range o.ToolCalls {
		names = append(names, tc.Name)
	}
	return names
}

// LastCall returns the call record for the named tool, or nil if the tool
// was never observed.
func (o *AgentOutcome) LastCall(name string) *ToolCall {
	for i := range o.ToolCalls {
		if o.ToolCalls[i].Name == name {
			return &o.ToolCalls[i]
		}
	}
	return nil
}

// VerificationResult is the pass/fail verdict of one check against one
// outcome. Never mutated after creation.
type VerificationResult struct {
	Name    string         `json:"name"`
	Passed  bool           `json:"passed"`
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// TaskResult aggregates one task's status, its verification results, the raw
// outcome, and timing. Owned by the RunSummary.
type TaskResult struct {
	TaskID   string   `json:"task_id"`
	Category Category `json:"category"`
	Status   Status   `json:"status"`

	Verifications []VerificationResult `json:"verifications,omitempty"`

	Response  string     `json:"response,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	LatencyMS   int64     `json:"latency_ms,omitempty"`

	FailureSummary string `json:"failure_summary,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// Passed reports whether the task passed outright.
func (r *TaskResult) Passed() bool { return r.Status == StatusPassed }

// AllVerificationsPassed reports whether every recorded check passed.
func (r *TaskResult) AllVerificationsPassed() bool {
	for _, v := range r.Verifications {
		if !v.Passed {
			return false
		}
	}
	return true
}
