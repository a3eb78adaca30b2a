package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"proctor/internal/agent"
	"proctor/internal/config"
	"proctor/internal/fixture"
	"proctor/internal/models"
	"proctor/internal/orchestration"
	"proctor/internal/tasks"
	"proctor/internal/verify"
)

var (
	runSpecPath  string
	tasksDir     string
	taskFilePath string
	categoryArgs []string
	taskIDs      []string
	limit        int
	agentURL     string
	timeoutSec   int
	baselinePath string
	outputPath   string
	noReset      bool
	noApprove    bool
	quiet        bool
	verbose      bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run evaluation tasks against the agent",
		Long: `Run evaluation tasks against the agent and report the results.

By default every task file in the tasks directory runs, with the database
reset to baseline before each task. Use --category, --task, --file, or
--limit to narrow the run.`,
		Args: cobra.NoArgs,
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&runSpecPath, "spec", "", "Run-spec YAML file (flags override file settings)")
	cmd.Flags().StringVar(&tasksDir, "tasks-dir", "", "Directory containing task JSON files")
	cmd.Flags().StringVarP(&taskFilePath, "file", "f", "", "Run tasks from a single file instead of the directory")
	cmd.Flags().StringArrayVarP(&categoryArgs, "category", "c", nil, "Run tasks from a specific category (can be repeated)")
	cmd.Flags().StringArrayVarP(&taskIDs, "task", "t", nil, "Run specific task IDs (can be repeated)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Cap the number of tasks run")
	cmd.Flags().StringVar(&agentURL, "agent-url", "", "Base URL of the agent server")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Per-request timeout in seconds")
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "Baseline CSV path")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the full results document to a JSON file")
	cmd.Flags().BoolVar(&noReset, "no-db-reset", false, "Skip the per-task database reset (tasks become order-dependent)")
	cmd.Flags().BoolVar(&noApprove, "no-auto-approve", false, "Do not auto-approve confirmation pauses")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the final summary")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose per-task output")

	return cmd
}

func buildRunConfig() (*config.RunConfig, error) {
	var opts []config.Option

	if runSpecPath != "" {
		spec, err := config.LoadRunSpec(runSpecPath)
		if err != nil {
			return nil, err
		}
		specOpts, err := spec.Options()
		if err != nil {
			return nil, err
		}
		opts = append(opts, specOpts...)
	}

	if tasksDir != "" {
		opts = append(opts, config.WithTasksDir(tasksDir))
	}
	if taskFilePath != "" {
		opts = append(opts, config.WithTaskFile(taskFilePath))
	}
	if len(categoryArgs) > 0 {
		categories := make([]models.Category, 0, len(categoryArgs))
		for _, raw := range categoryArgs {
			c, err := models.ParseCategory(raw)
			if err != nil {
				return nil, err
			}
			categories = append(categories, c)
		}
		opts = append(opts, config.WithCategories(categories))
	}
	if len(taskIDs) > 0 {
		opts = append(opts, config.WithTaskIDs(taskIDs))
	}
	if limit > 0 {
		opts = append(opts, config.WithLimit(limit))
	}
	if agentURL != "" {
		opts = append(opts, config.WithAgentURL(agentURL))
	}
	if timeoutSec > 0 {
		opts = append(opts, config.WithTimeout(time.Duration(timeoutSec)*time.Second))
	}
	if baselinePath != "" {
		opts = append(opts, config.WithBaselinePath(baselinePath))
	}
	if outputPath != "" {
		opts = append(opts, config.WithOutputPath(outputPath))
	}
	if noReset {
		opts = append(opts, config.WithResetPerTask(false))
	}
	if noApprove {
		opts = append(opts, config.WithAutoApprove(false))
	}
	opts = append(opts, config.WithQuiet(quiet), config.WithVerbose(verbose))

	return config.NewRunConfig(opts...), nil
}

func loadRunTasks(cfg *config.RunConfig) ([]models.Task, error) {
	var (
		taskList []models.Task
		err      error
	)
	if cfg.TaskFile() != "" {
		taskList, err = tasks.LoadFile(cfg.TaskFile())
	} else {
		taskList, err = tasks.LoadDir(cfg.TasksDir(), cfg.Categories())
	}
	if err != nil {
		return nil, err
	}

	taskList, err = tasks.Filter(taskList, cfg.TaskIDs())
	if err != nil {
		return nil, err
	}
	return orchestration.Limit(taskList, cfg.Limit()), nil
}

func runCommandE(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := buildRunConfig()
	if err != nil {
		return err
	}

	taskList, err := loadRunTasks(cfg)
	if err != nil {
		return err
	}
	if len(taskList) == 0 {
		return fmt.Errorf("no tasks matched the given filters")
	}

	store, err := connectStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	engine := agent.NewClient(cfg.AgentURL(),
		agent.WithTimeout(cfg.Timeout()),
		agent.WithAutoApprove(cfg.AutoApprove()),
	)

	var storeReader verify.StoreReader
	var resetter orchestration.StoreResetter
	if store != nil {
		storeReader = store
		resetter = store
	}

	runner := orchestration.NewRunner(cfg, engine, resetter, verify.New(storeReader))

	reporter := newReporter(os.Stdout, cfg.Quiet(), cfg.Verbose())
	runner.OnProgress(reporter.HandleProgress)

	summary, err := runner.Run(ctx, taskList)
	if summary != nil {
		reporter.PrintSummary(summary)
		if cfg.OutputPath() != "" {
			if writeErr := writeResults(cfg.OutputPath(), summary); writeErr != nil {
				return writeErr
			}
			fmt.Printf("Results written to %s\n", cfg.OutputPath())
		}
	}
	return err
}

// connectStore opens the fixture store and loads the baseline. Runs that
// skip resets and carry no store assertions work without a database, so a
// connection failure is only fatal when the store is actually needed.
func connectStore(ctx context.Context, cfg *config.RunConfig) (*fixture.Store, error) {
	store, err := fixture.Connect(ctx, cfg.Store())
	if err != nil {
		if !cfg.ResetPerTask() {
			fmt.Fprintf(os.Stderr, "warning: store unavailable, db_state checks will error: %v\n", err)
			return nil, nil
		}
		return nil, err
	}

	if err := store.LoadBaseline(cfg.BaselinePath()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func writeResults(path string, summary *models.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results to %s: %w", path, err)
	}
	return nil
}
