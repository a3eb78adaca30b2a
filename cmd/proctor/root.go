package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proctor",
		Short: "Proctor - end-to-end evaluation harness for the customer service agent",
		Long: `Proctor runs evaluation tasks against a customer service agent and
verifies the outcomes: what the agent said, which tools it called, and what
state it left in the database.

Each task runs against a database reset to a known baseline, so results are
reproducible and order-independent.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newTasksCommand())
	cmd.AddCommand(newDBCommand())

	return cmd
}

func execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}
