// Package tasks loads evaluation task files. A task file is a JSON
// document holding a list of tasks; files are grouped by category, one
// category per file, named after the category stem.
package tasks

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"proctor/internal/models"
)

type taskFile struct {
	Tasks []models.Task `json:"tasks"`
}

// LoadFile loads every task in one file. Any malformed or invalid task
// fails the whole load; a typo in a task file should stop the run, not
// silently shrink it.
func LoadFile(path string) ([]models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tasks: reading %s: %w", path, err)
	}

	// Schema validation first, so error messages point at the offending
	// location instead of a decode type error.
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("tasks: parsing %s: %w", path, err)
	}
	if violations := validateDocument(instance); len(violations) > 0 {
		return nil, fmt.Errorf("tasks: %s is not a valid task file:\n  %s", path, strings.Join(violations, "\n  "))
	}

	var file taskFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("tasks: decoding %s: %w", path, err)
	}

	for i := range file.Tasks {
		if err := file.Tasks[i].Validate(); err != nil {
			return nil, fmt.Errorf("tasks: %s: %w", path, err)
		}
	}

	slog.Info("loaded tasks", "path", path, "count", len(file.Tasks))
	return file.Tasks, nil
}

// LoadDir loads every task file in a directory, optionally filtered to the
// files whose stem names one of the given categories. Files load in sorted
// order so task order is stable across runs.
func LoadDir(dir string, categories []models.Category) ([]models.Task, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}

	if len(categories) > 0 {
		wanted := make(map[string]bool, len(categories))
		for _, c := range categories {
			wanted[strings.ToLower(string(c))] = true
		}
		filtered := files[:0]
		for _, f := range files {
			if wanted[stem(f)] {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	var all []models.Task
	for _, f := range files {
		loaded, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		all = append(all, loaded...)
	}

	slog.Info("loaded task directory", "dir", dir, "files", len(files), "tasks", len(all))
	return all, nil
}

// ListFiles returns the task files in a directory, sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("tasks: reading directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Filter narrows a task list to the given IDs. Unknown IDs are an error so
// a mistyped --task never silently runs nothing.
func Filter(all []models.Task, ids []string) ([]models.Task, error) {
	if len(ids) == 0 {
		return all, nil
	}

	byID := make(map[string]models.Task, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}

	selected := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("tasks: no task with id %q", id)
		}
		selected = append(selected, t)
	}
	return selected, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
