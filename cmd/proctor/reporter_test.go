package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"proctor/internal/models"
	"proctor/internal/orchestration"
)

func buildSummary() *models.RunSummary {
	summary := models.NewRunSummary()
	summary.AddResult(models.TaskResult{
		TaskID:   "order_status_001",
		Category: models.CategoryOrderStatus,
		Status:   models.StatusPassed,
	})
	summary.AddResult(models.TaskResult{
		TaskID:   "return_init_001",
		Category: models.CategoryReturnInit,
		Status:   models.StatusFailed,
		Verifications: []models.VerificationResult{
			{Name: "tool_called_update_return", Passed: false, Error: `required tool "update_return" was not called`},
			{Name: "response_contains", Passed: true},
		},
		FailureSummary: `tool_called_update_return: required tool "update_return" was not called`,
	})
	summary.AddResult(models.TaskResult{
		TaskID:       "product_qa_003",
		Category:     models.CategoryProductQA,
		Status:       models.StatusError,
		ErrorMessage: "agent generate: unexpected status 500",
	})
	summary.Finalize()
	return summary
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf strings.Builder
	newReporter(&buf, false, false).PrintSummary(buildSummary())
	out := buf.String()

	require.Contains(t, out, "3 total, 1 passed, 1 failed, 1 errors")
	require.Contains(t, out, "33.3%")

	// Category table rows, sorted by category name.
	orderIdx := strings.Index(out, "order_status")
	qaIdx := strings.Index(out, "product_qa")
	require.Greater(t, orderIdx, -1)
	require.Greater(t, qaIdx, -1)
	require.Less(t, orderIdx, qaIdx)

	// Failure details name the failing check only.
	require.Contains(t, out, `required tool "update_return" was not called`)
	require.NotContains(t, out, "response_contains:")

	// Error section carries the harness error verbatim.
	require.Contains(t, out, "agent generate: unexpected status 500")
}

func TestHandleProgress(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf strings.Builder
	reporter := newReporter(&buf, false, false)

	reporter.HandleProgress(orchestration.ProgressEvent{
		EventType:  orchestration.EventRunStart,
		TotalTasks: 2,
	})
	reporter.HandleProgress(orchestration.ProgressEvent{
		EventType:  orchestration.EventTaskComplete,
		TaskID:     "order_status_001",
		TaskNum:    1,
		TotalTasks: 2,
		Status:     models.StatusPassed,
		DurationMs: 1500,
	})
	reporter.HandleProgress(orchestration.ProgressEvent{
		EventType:  orchestration.EventTaskComplete,
		TaskID:     "return_init_001",
		TaskNum:    2,
		TotalTasks: 2,
		Status:     models.StatusFailed,
		Summary:    "db_state: field mismatches: return_status",
	})

	out := buf.String()
	require.Contains(t, out, "Running 2 tasks")
	require.Contains(t, out, "[1/2] order_status_001")
	require.Contains(t, out, "field mismatches: return_status")
}

func TestHandleProgressQuiet(t *testing.T) {
	var buf strings.Builder
	reporter := newReporter(&buf, true, false)

	reporter.HandleProgress(orchestration.ProgressEvent{EventType: orchestration.EventRunStart, TotalTasks: 5})
	require.Empty(t, buf.String())
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "a b", truncate("a\nb", 10))
	long := strings.Repeat("x", 250)
	require.Equal(t, 203, len(truncate(long, 200)))

	// Cuts land on rune boundaries, so multi-byte responses stay valid UTF-8.
	accented := strings.Repeat("é", 10)
	got := truncate(accented, 4)
	require.Equal(t, "éééé...", got)
	require.True(t, utf8.ValidString(got))
}
