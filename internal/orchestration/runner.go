// Package orchestration drives an evaluation run end to end: reset the
// store, invoke the agent, verify the outcome, aggregate the summary. Tasks
// run strictly one at a time; the agent server keys session state and tool
// caches in ways that make concurrent tasks interfere with each other's
// store assertions.
package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"proctor/internal/agent"
	"proctor/internal/config"
	"proctor/internal/models"
	"proctor/internal/verify"
)

// ProgressListener receives progress updates during a run.
type ProgressListener func(event ProgressEvent)

// EventType tags a progress event.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventRunComplete  EventType = "run_complete"
	EventRunStopped   EventType = "run_stopped"
	EventStoreReset   EventType = "store_reset"
	EventTaskStart    EventType = "task_start"
	EventTaskComplete EventType = "task_complete"
)

// ProgressEvent is one progress update.
type ProgressEvent struct {
	EventType  EventType
	TaskID     string
	TaskName   string
	Category   models.Category
	TaskNum    int
	TotalTasks int
	Status     models.Status
	DurationMs int64
	Summary    string
}

// StoreResetter is the slice of the fixture store the runner drives: a
// reset before each task when configured. Nil when the run skips resets.
type StoreResetter interface {
	ResetToBaseline(ctx context.Context) error
}

// Runner executes tasks sequentially against one engine and one verifier.
type Runner struct {
	cfg      *config.RunConfig
	engine   agent.Engine
	store    StoreResetter
	verifier *verify.Verifier

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// NewRunner builds a Runner. The store may be nil when resets are disabled
// and no task checks store state.
func NewRunner(cfg *config.RunConfig, engine agent.Engine, store StoreResetter, verifier *verify.Verifier) *Runner {
	return &Runner{
		cfg:      cfg,
		engine:   engine,
		store:    store,
		verifier: verifier,
	}
}

// OnProgress registers a progress listener.
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes every task and returns the aggregated summary. A task whose
// invocation or verification fails becomes an error result and the run
// moves on; a returned error means the harness itself could not continue
// (engine initialization, store reset). The engine is always shut down,
// even when the run is cancelled mid-task.
func (r *Runner) Run(ctx context.Context, taskList []models.Task) (*models.RunSummary, error) {
	if len(taskList) == 0 {
		return nil, fmt.Errorf("no tasks to run")
	}

	if err := r.engine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing engine: %w", err)
	}
	defer func() {
		if err := r.engine.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("engine shutdown failed", "error", err)
		}
	}()

	summary := models.NewRunSummary()
	r.notifyProgress(ProgressEvent{EventType: EventRunStart, TotalTasks: len(taskList)})

	stopped := false
	for i, task := range taskList {
		if ctx.Err() != nil {
			stopped = true
			break
		}

		r.notifyProgress(ProgressEvent{
			EventType:  EventTaskStart,
			TaskID:     task.ID,
			TaskName:   task.Name,
			Category:   task.Category,
			TaskNum:    i + 1,
			TotalTasks: len(taskList),
		})

		if r.cfg.ResetPerTask() && r.store != nil {
			if err := r.store.ResetToBaseline(ctx); err != nil {
				summary.Finalize()
				return summary, fmt.Errorf("resetting store before task %s: %w", task.ID, err)
			}
			r.notifyProgress(ProgressEvent{EventType: EventStoreReset, TaskID: task.ID})
		}

		result := r.runTask(ctx, &task)
		summary.AddResult(result)

		r.notifyProgress(ProgressEvent{
			EventType:  EventTaskComplete,
			TaskID:     task.ID,
			TaskName:   task.Name,
			Category:   task.Category,
			TaskNum:    i + 1,
			TotalTasks: len(taskList),
			Status:     result.Status,
			DurationMs: result.LatencyMS,
			Summary:    result.FailureSummary,
		})
	}

	summary.Finalize()

	if stopped {
		r.notifyProgress(ProgressEvent{EventType: EventRunStopped})
	} else {
		r.notifyProgress(ProgressEvent{EventType: EventRunComplete})
	}
	return summary, nil
}

// runTask executes one task through its full lifecycle. Panics inside the
// engine or a check become error results so one misbehaving task cannot
// take down the rest of the run.
func (r *Runner) runTask(ctx context.Context, task *models.Task) (result models.TaskResult) {
	result = models.TaskResult{
		TaskID:    task.ID,
		Category:  task.Category,
		StartedAt: time.Now(),
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic during task", "task", task.ID, "panic", rec)
			debug.PrintStack()
			result.Status = models.StatusError
			result.ErrorMessage = fmt.Sprintf("panic: %v", rec)
		}
		result.CompletedAt = time.Now()
	}()

	if ci, ok := r.engine.(agent.CacheInvalidator); ok {
		if err := ci.InvalidateCache(ctx); err != nil {
			result.Status = models.StatusError
			result.ErrorMessage = fmt.Sprintf("invalidating agent cache: %v", err)
			return result
		}
	}

	outcomes, err := agent.InvokeConversation(ctx, r.engine, task.ID, task.UserID, task.Prompts())
	if err != nil {
		result.Status = models.StatusError
		result.ErrorMessage = err.Error()
		return result
	}

	outcome := agent.FinalOutcome(outcomes)
	result.Response = outcome.Content
	result.ToolCalls = outcome.ToolCalls
	result.LatencyMS = outcome.LatencyMS

	verifications, err := r.verifier.Verify(ctx, task, outcome)
	if err != nil {
		result.Status = models.StatusError
		result.ErrorMessage = err.Error()
		return result
	}
	result.Verifications = verifications

	if result.AllVerificationsPassed() {
		result.Status = models.StatusPassed
	} else {
		result.Status = models.StatusFailed
		result.FailureSummary = verify.FailureSummary(verifications)
	}
	return result
}

// Limit applies the run's task cap.
func Limit(taskList []models.Task, n int) []models.Task {
	if n <= 0 || n >= len(taskList) {
		return taskList
	}
	return taskList[:n]
}
