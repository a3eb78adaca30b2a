package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"proctor/internal/models"
	"proctor/internal/orchestration"
)

var (
	passMark  = color.New(color.FgGreen).Sprint("✓")
	failMark  = color.New(color.FgRed).Sprint("✗")
	errorMark = color.New(color.FgYellow).Sprint("!")
	boldText  = color.New(color.Bold)
)

// reporter renders run progress and the final summary to one writer.
type reporter struct {
	out     io.Writer
	quiet   bool
	verbose bool
}

func newReporter(out io.Writer, quiet, verbose bool) *reporter {
	return &reporter{out: out, quiet: quiet, verbose: verbose}
}

// HandleProgress is wired as an orchestration.ProgressListener.
func (r *reporter) HandleProgress(event orchestration.ProgressEvent) {
	if r.quiet {
		return
	}

	switch event.EventType {
	case orchestration.EventRunStart:
		fmt.Fprintf(r.out, "Running %d tasks\n\n", event.TotalTasks)
	case orchestration.EventTaskStart:
		if r.verbose {
			fmt.Fprintf(r.out, "[%d/%d] %s (%s) ...\n", event.TaskNum, event.TotalTasks, event.TaskID, event.Category)
		}
	case orchestration.EventTaskComplete:
		mark := passMark
		switch event.Status {
		case models.StatusFailed:
			mark = failMark
		case models.StatusError:
			mark = errorMark
		}
		fmt.Fprintf(r.out, "%s [%d/%d] %-24s %6dms", mark, event.TaskNum, event.TotalTasks, event.TaskID, event.DurationMs)
		if event.Status != models.StatusPassed && event.Summary != "" {
			fmt.Fprintf(r.out, "  %s", event.Summary)
		}
		fmt.Fprintln(r.out)
	case orchestration.EventRunStopped:
		fmt.Fprintln(r.out, "\nRun stopped before completion.")
	}
}

// PrintSummary renders the final report: totals, pass rate, the
// per-category table, and details for everything that did not pass.
func (r *reporter) PrintSummary(summary *models.RunSummary) {
	fmt.Fprintln(r.out)
	boldText.Fprintln(r.out, "══════════════ Evaluation Summary ══════════════")

	rate := summary.PassRate()
	rateText := fmt.Sprintf("%.1f%%", rate)
	switch {
	case rate >= 90:
		rateText = color.GreenString(rateText)
	case rate >= 60:
		rateText = color.YellowString(rateText)
	default:
		rateText = color.RedString(rateText)
	}

	fmt.Fprintf(r.out, "Tasks:     %d total, %d passed, %d failed, %d errors\n",
		summary.TotalTasks, summary.Passed, summary.Failed, summary.Errors)
	fmt.Fprintf(r.out, "Pass rate: %s\n", rateText)
	fmt.Fprintf(r.out, "Duration:  %.1fs\n", summary.DurationSeconds)

	fmt.Fprintln(r.out)
	boldText.Fprintln(r.out, "By category")
	fmt.Fprintf(r.out, "  %-16s %6s %8s %8s %8s\n", "category", "total", "passed", "failed", "errors")
	for _, category := range summary.SortedCategories() {
		counts := summary.ByCategory[category]
		fmt.Fprintf(r.out, "  %-16s %6d %8d %8d %8d\n",
			category, counts.Total, counts.Passed, counts.Failed, counts.Errors)
	}

	if failed := summary.FailedResults(); len(failed) > 0 {
		fmt.Fprintln(r.out)
		boldText.Fprintln(r.out, "Failures")
		for _, result := range failed {
			fmt.Fprintf(r.out, "  %s %s\n", failMark, result.TaskID)
			for _, v := range result.Verifications {
				if v.Passed {
					continue
				}
				fmt.Fprintf(r.out, "      %s: %s\n", v.Name, v.Error)
			}
			if r.verbose && result.Response != "" {
				fmt.Fprintf(r.out, "      response: %s\n", truncate(result.Response, 200))
			}
		}
	}

	if errored := summary.ErroredResults(); len(errored) > 0 {
		fmt.Fprintln(r.out)
		boldText.Fprintln(r.out, "Errors")
		for _, result := range errored {
			fmt.Fprintf(r.out, "  %s %s: %s\n", errorMark, result.TaskID, result.ErrorMessage)
		}
	}

	fmt.Fprintln(r.out)
}

// truncate shortens s to at most n runes, never splitting a multi-byte
// character.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
