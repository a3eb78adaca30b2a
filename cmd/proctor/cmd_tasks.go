package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"proctor/internal/models"
	"proctor/internal/tasks"
)

func newTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect evaluation tasks",
	}
	cmd.AddCommand(newTasksListCommand())
	return cmd
}

func newTasksListCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks grouped by category file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := tasks.ListFiles(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no task files in %s", dir)
			}

			heading := color.New(color.Bold, color.FgCyan)
			total := 0
			for _, file := range files {
				loaded, err := tasks.LoadFile(file)
				if err != nil {
					return err
				}
				stem := strings.TrimSuffix(filepath.Base(file), ".json")
				heading.Printf("\n%s (%d tasks)\n", stem, len(loaded))
				for _, task := range loaded {
					marker := " "
					if task.Turns == models.TurnsMulti {
						marker = "*"
					}
					fmt.Printf("  %s %-24s %s\n", marker, task.ID, task.Name)
				}
				total += len(loaded)
			}

			fmt.Printf("\n%d tasks total (* = multi-turn)\n", total)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "tasks-dir", "tasks", "Directory containing task JSON files")
	return cmd
}
