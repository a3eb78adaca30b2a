package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"proctor/internal/fixture"
	"proctor/internal/models"
)

// RunSpec is the YAML shape of a run-spec file. Every field is optional;
// unset fields keep their defaults, and flags override the file.
type RunSpec struct {
	TasksDir     string         `yaml:"tasks_dir"`
	Categories   []string       `yaml:"categories"`
	AgentURL     string         `yaml:"agent_url"`
	TimeoutSec   int            `yaml:"timeout_sec"`
	AutoApprove  *bool          `yaml:"auto_approve"`
	ResetPerTask *bool          `yaml:"reset_per_task"`
	BaselinePath string         `yaml:"baseline_path"`
	Store        fixture.Config `yaml:"store"`
	OutputPath   string         `yaml:"output_path"`
}

// LoadRunSpec reads and decodes a run-spec file.
func LoadRunSpec(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading run spec %s: %w", path, err)
	}

	var spec RunSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("config: parsing run spec %s: %w", path, err)
	}
	return &spec, nil
}

// Options converts a run spec into construction options, validating the
// category names it carries.
func (s *RunSpec) Options() ([]Option, error) {
	var opts []Option

	if s.TasksDir != "" {
		opts = append(opts, WithTasksDir(s.TasksDir))
	}
	if len(s.Categories) > 0 {
		categories := make([]models.Category, 0, len(s.Categories))
		for _, raw := range s.Categories {
			c, err := models.ParseCategory(raw)
			if err != nil {
				return nil, fmt.Errorf("config: %w", err)
			}
			categories = append(categories, c)
		}
		opts = append(opts, WithCategories(categories))
	}
	if s.AgentURL != "" {
		opts = append(opts, WithAgentURL(s.AgentURL))
	}
	if s.TimeoutSec > 0 {
		opts = append(opts, WithTimeout(time.Duration(s.TimeoutSec)*time.Second))
	}
	if s.AutoApprove != nil {
		opts = append(opts, WithAutoApprove(*s.AutoApprove))
	}
	if s.ResetPerTask != nil {
		opts = append(opts, WithResetPerTask(*s.ResetPerTask))
	}
	if s.BaselinePath != "" {
		opts = append(opts, WithBaselinePath(s.BaselinePath))
	}
	if s.Store != (fixture.Config{}) {
		opts = append(opts, WithStore(s.Store))
	}
	if s.OutputPath != "" {
		opts = append(opts, WithOutputPath(s.OutputPath))
	}

	return opts, nil
}
