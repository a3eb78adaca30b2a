package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"proctor/internal/models"
)

// Judge renders a qualitative pass/fail verdict on a response. Wired only
// for tasks that opt in; the engine runs fine without one.
type Judge interface {
	Assess(ctx context.Context, task *models.Task, response string) (models.VerificationResult, error)
}

// Verifier runs every check applicable to a task against one outcome. All
// applicable checks run; a failure never short-circuits the rest, so a
// single task result carries the full diagnostic picture.
type Verifier struct {
	store StoreReader
	judge Judge
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithJudge wires a qualitative judge for tasks that request one.
func WithJudge(j Judge) Option {
	return func(v *Verifier) { v.judge = j }
}

// New builds a Verifier. The store may be nil when no task in the run
// declares expected store state.
func New(store StoreReader, opts ...Option) *Verifier {
	v := &Verifier{store: store}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the task's applicable checks against the outcome and returns
// one result per check, in a stable order. A returned error means the
// harness could not complete verification (store unreachable, judge
// transport failure), which is distinct from checks failing.
func (v *Verifier) Verify(ctx context.Context, task *models.Task, outcome *models.AgentOutcome) ([]models.VerificationResult, error) {
	var results []models.VerificationResult
	toolNames := outcome.ToolNames()

	if len(task.ResponseMustContain) > 0 {
		results = append(results, ResponseContains(outcome.Content, task.ResponseMustContain, false))
	}
	if len(task.ResponseMustNotContain) > 0 {
		results = append(results, ResponseNotContains(outcome.Content, task.ResponseMustNotContain, false))
	}
	if task.ResponsePattern != "" {
		results = append(results, ResponseMatchesPattern(outcome.Content, task.ResponsePattern))
	}

	for _, tool := range task.ToolMustBeCalled {
		results = append(results, ToolCalled(toolNames, tool))
	}
	for _, tool := range task.ToolMustNotBeCalled {
		results = append(results, ToolNotCalled(toolNames, tool))
	}

	for _, tool := range sortedKeys(task.ExpectedToolArgs) {
		results = append(results, ToolCallArgs(outcome.ToolCalls, tool, task.ExpectedToolArgs[tool]))
	}

	if len(task.ExpectedStoreState) > 0 {
		if v.store == nil {
			return nil, fmt.Errorf("task %s declares expected store state but no store is configured", task.ID)
		}
		key, err := task.StoreKey()
		if err != nil {
			return nil, err
		}
		result, err := StoreState(ctx, v.store, key, task.ExpectedStoreState)
		if err != nil {
			return nil, fmt.Errorf("task %s: store verification: %w", task.ID, err)
		}
		results = append(results, result)
	}

	if task.UseJudge {
		if v.judge == nil {
			slog.Warn("task requests judge assessment but no judge is configured", "task", task.ID)
		} else {
			result, err := v.judge.Assess(ctx, task, outcome.Content)
			if err != nil {
				return nil, fmt.Errorf("task %s: judge assessment: %w", task.ID, err)
			}
			results = append(results, result)
		}
	}

	return results, nil
}

// FailureSummary condenses failed checks into one line for reports.
func FailureSummary(results []models.VerificationResult) string {
	var parts []string
	for _, r := range results {
		if r.Passed {
			continue
		}
		if r.Error != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Error))
		} else {
			parts = append(parts, r.Name)
		}
	}
	return strings.Join(parts, "; ")
}

func sortedKeys(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
