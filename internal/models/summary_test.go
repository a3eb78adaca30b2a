package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunSummary_AddResult(t *testing.T) {
	s := NewRunSummary()

	s.AddResult(TaskResult{TaskID: "a", Category: CategoryOrderStatus, Status: StatusPassed})
	s.AddResult(TaskResult{TaskID: "b", Category: CategoryOrderStatus, Status: StatusFailed})
	s.AddResult(TaskResult{TaskID: "c", Category: CategoryReturnInit, Status: StatusError})

	require.Equal(t, 3, s.TotalTasks)
	require.Equal(t, 1, s.Passed)
	require.Equal(t, 1, s.Failed)
	require.Equal(t, 1, s.Errors)

	require.Equal(t, &CategoryCounts{Total: 2, Passed: 1, Failed: 1}, s.ByCategory[CategoryOrderStatus])
	require.Equal(t, &CategoryCounts{Total: 1, Errors: 1}, s.ByCategory[CategoryReturnInit])

	// Results are recorded in order, incrementally.
	require.Len(t, s.Results, 3)
	require.Equal(t, "b", s.Results[1].TaskID)
}

func TestRunSummary_PassRate(t *testing.T) {
	s := NewRunSummary()
	require.Equal(t, 0.0, s.PassRate())

	s.AddResult(TaskResult{TaskID: "a", Category: CategoryProductQA, Status: StatusPassed})
	s.AddResult(TaskResult{TaskID: "b", Category: CategoryProductQA, Status: StatusFailed})

	require.InDelta(t, 50.0, s.PassRate(), 0.001)
}

func TestRunSummary_Finalize(t *testing.T) {
	s := NewRunSummary()
	s.Finalize()

	require.False(t, s.CompletedAt.IsZero())
	require.GreaterOrEqual(t, s.DurationSeconds, 0.0)
	require.False(t, s.CompletedAt.Before(s.StartedAt))
}

func TestRunSummary_StatusFilters(t *testing.T) {
	s := NewRunSummary()
	s.AddResult(TaskResult{TaskID: "a", Category: CategoryOrderStatus, Status: StatusPassed})
	s.AddResult(TaskResult{TaskID: "b", Category: CategoryOrderStatus, Status: StatusFailed, FailureSummary: "missing keyword"})
	s.AddResult(TaskResult{TaskID: "c", Category: CategoryOutOfScope, Status: StatusError, ErrorMessage: "agent unreachable"})

	failed := s.FailedResults()
	require.Len(t, failed, 1)
	require.Equal(t, "b", failed[0].TaskID)

	errored := s.ErroredResults()
	require.Len(t, errored, 1)
	require.Equal(t, "c", errored[0].TaskID)

	require.Equal(t, []Category{CategoryOrderStatus, CategoryOutOfScope}, s.SortedCategories())
}

func TestAgentOutcome_ToolAccessors(t *testing.T) {
	o := AgentOutcome{
		ToolCalls: []ToolCall{
			{Name: "structured_rag", Arguments: map[string]any{"query": "order 2001"}},
			{Name: "update_return", Arguments: map[string]any{"order_id": float64(2001)}},
		},
	}

	require.Equal(t, []string{"structured_rag", "update_return"}, o.ToolNames())

	call := o.LastCall("update_return")
	require.NotNil(t, call)
	require.Equal(t, float64(2001), call.Arguments["order_id"])

	require.Nil(t, o.LastCall("unknown_tool"))
}
