// Package config carries the settings for one evaluation run. All settings
// are threaded explicitly from flags or a run-spec file; nothing here reads
// process environment as a side effect.
package config

import (
	"time"

	"proctor/internal/fixture"
	"proctor/internal/models"
)

const (
	defaultTasksDir     = "tasks"
	defaultBaselinePath = "data/orders.csv"
	defaultAgentURL     = "http://localhost:8000"
	defaultTimeout      = 120 * time.Second
)

// RunConfig is the immutable configuration of one run. Construct with
// NewRunConfig and functional options; read through accessors.
type RunConfig struct {
	tasksDir     string
	taskFile     string
	categories   []models.Category
	taskIDs      []string
	limit        int
	agentURL     string
	timeout      time.Duration
	autoApprove  bool
	resetPerTask bool
	baselinePath string
	store        fixture.Config
	outputPath   string
	verbose      bool
	quiet        bool
}

// Option mutates a RunConfig during construction.
type Option func(*RunConfig)

// NewRunConfig builds a RunConfig with sensible local defaults, then
// applies the options in order. The last option wins on conflict.
func NewRunConfig(opts ...Option) *RunConfig {
	cfg := &RunConfig{
		tasksDir:     defaultTasksDir,
		agentURL:     defaultAgentURL,
		timeout:      defaultTimeout,
		autoApprove:  true,
		resetPerTask: true,
		baselinePath: defaultBaselinePath,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithTasksDir sets the directory task files load from.
func WithTasksDir(dir string) Option {
	return func(c *RunConfig) { c.tasksDir = dir }
}

// WithTaskFile selects a single task file instead of the directory.
func WithTaskFile(path string) Option {
	return func(c *RunConfig) { c.taskFile = path }
}

// WithCategories narrows the run to the given categories.
func WithCategories(categories []models.Category) Option {
	return func(c *RunConfig) { c.categories = categories }
}

// WithTaskIDs narrows the run to specific task IDs.
func WithTaskIDs(ids []string) Option {
	return func(c *RunConfig) { c.taskIDs = ids }
}

// WithLimit caps the number of tasks run; zero means no cap.
func WithLimit(n int) Option {
	return func(c *RunConfig) { c.limit = n }
}

// WithAgentURL points the run at an agent server.
func WithAgentURL(url string) Option {
	return func(c *RunConfig) { c.agentURL = url }
}

// WithTimeout bounds each agent round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *RunConfig) { c.timeout = d }
}

// WithAutoApprove controls automatic confirmation handling.
func WithAutoApprove(enabled bool) Option {
	return func(c *RunConfig) { c.autoApprove = enabled }
}

// WithResetPerTask controls whether the store is reset before every task.
// On by default; disabling it makes tasks order-dependent and is only
// appropriate for quick local iteration.
func WithResetPerTask(enabled bool) Option {
	return func(c *RunConfig) { c.resetPerTask = enabled }
}

// WithBaselinePath sets the baseline CSV location.
func WithBaselinePath(path string) Option {
	return func(c *RunConfig) { c.baselinePath = path }
}

// WithStore sets the isolated store connection settings.
func WithStore(store fixture.Config) Option {
	return func(c *RunConfig) { c.store = store }
}

// WithOutputPath sets where the JSON results document is written; empty
// disables the artifact.
func WithOutputPath(path string) Option {
	return func(c *RunConfig) { c.outputPath = path }
}

// WithVerbose enables debug logging.
func WithVerbose(enabled bool) Option {
	return func(c *RunConfig) { c.verbose = enabled }
}

// WithQuiet suppresses per-task progress output.
func WithQuiet(enabled bool) Option {
	return func(c *RunConfig) { c.quiet = enabled }
}

func (c *RunConfig) TasksDir() string              { return c.tasksDir }
func (c *RunConfig) TaskFile() string              { return c.taskFile }
func (c *RunConfig) Categories() []models.Category { return c.categories }
func (c *RunConfig) TaskIDs() []string             { return c.taskIDs }
func (c *RunConfig) Limit() int                    { return c.limit }
func (c *RunConfig) AgentURL() string              { return c.agentURL }
func (c *RunConfig) Timeout() time.Duration        { return c.timeout }
func (c *RunConfig) AutoApprove() bool             { return c.autoApprove }
func (c *RunConfig) ResetPerTask() bool            { return c.resetPerTask }
func (c *RunConfig) BaselinePath() string          { return c.baselinePath }
func (c *RunConfig) Store() fixture.Config         { return c.store }
func (c *RunConfig) OutputPath() string            { return c.outputPath }
func (c *RunConfig) Verbose() bool                 { return c.verbose }
func (c *RunConfig) Quiet() bool                   { return c.quiet }
