package models

import (
	"sort"
	"time"
)

// CategoryCounts tracks per-category totals inside a RunSummary.
type CategoryCounts struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Errors int `json:"errors"`
}

// RunSummary accumulates the results of one evaluation run. It is owned and
// written solely by the orchestrator; once Finalize is called it is treated
// as read-only.
type RunSummary struct {
	TotalTasks int `json:"total_tasks"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Errors     int `json:"errors"`

	ByCategory map[Category]*CategoryCounts `json:"by_category,omitempty"`

	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	Results []TaskResult `json:"results"`
}

// NewRunSummary starts an empty summary with its clock open.
func NewRunSummary() *RunSummary {
	return &RunSummary{
		ByCategory: make(map[Category]*CategoryCounts),
		StartedAt:  time.Now(),
	}
}

// AddResult records one task result and updates all counters. Called after
// every task, not batched, so a crash mid-run still leaves partial results.
func (s *RunSummary) AddResult(result TaskResult) {
	s.Results = append(s.Results, result)
	s.TotalTasks++

	counts := s.ByCategory[result.Category]
	if counts == nil {
		counts = &CategoryCounts{}
		s.ByCategory[result.Category] = counts
	}
	counts.Total++

	switch result.Status {
	case StatusPassed:
		s.Passed++
		counts.Passed++
	case StatusFailed:
		s.Failed++
		counts.Failed++
	default:
		s.Errors++
		counts.Errors++
	}
}

// Finalize closes the summary's timestamps and computes the run duration.
func (s *RunSummary) Finalize() {
	s.CompletedAt = time.Now()
	s.DurationSeconds = s.CompletedAt.Sub(s.StartedAt).Seconds()
}

// PassRate is the overall pass rate as a percentage.
func (s *RunSummary) PassRate() float64 {
	if s.TotalTasks == 0 {
		return 0.0
	}
	return float64(s.Passed) / float64(s.TotalTasks) * 100
}

// SortedCategories returns the categories seen during the run in a stable
// order for reporting.
func (s *RunSummary) SortedCategories() []Category {
	cats := make([]Category, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// FailedResults returns the results whose verification found a mismatch.
func (s *RunSummary) FailedResults() []TaskResult {
	return s.resultsWithStatus(StatusFailed)
}

// ErroredResults returns the results where the harness itself failed.
func (s *RunSummary) ErroredResults() []TaskResult {
	return s.resultsWithStatus(StatusError)
}

func (s *RunSummary) resultsWithStatus(status Status) []TaskResult {
	var out []TaskResult
	for _, r := range s.Results {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}
