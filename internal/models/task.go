package models

import (
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Category identifies the user-goal scenario a task exercises.
type Category string

const (
	CategoryOrderStatus  Category = "order_status"
	CategoryReturnStatus Category = "return_status"
	CategoryReturnInit   Category = "return_init"
	CategoryProductQA    Category = "product_qa"
	CategoryOutOfScope   Category = "out_of_scope"
)

// Categories lists every valid category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryOrderStatus,
		CategoryReturnStatus,
		CategoryReturnInit,
		CategoryProductQA,
		CategoryOutOfScope,
	}
}

// ParseCategory converts a string into a Category. An unknown value is a
// data-integrity error: tasks filed under a made-up category would silently
// run (and report) in the wrong bucket, so we refuse to guess.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown task category %q", s)
}

// UnmarshalJSON enforces the closed category set at decode time.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Turns describes whether a task is a single prompt or a scripted conversation.
type Turns string

const (
	TurnsSingle Turns = "single"
	TurnsMulti  Turns = "multi"
)

// OrderKey locates the record a store-state check runs against.
type OrderKey struct {
	CustomerID string
	OrderID    int64
}

// groundTruthFields is the typed subset of ground-truth data the harness
// itself consumes. Everything else rides along untyped for reporting.
type groundTruthFields struct {
	OrderID  int64  `mapstructure:"order_id"`
	Scenario string `mapstructure:"scenario"`
}

// Task is one scripted evaluation scenario: a prompt (or prompt sequence),
// ground truth captured at authoring time, and the criteria the outcome is
// verified against. Tasks are immutable after loading.
type Task struct {
	// Identity
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`

	// Test setup
	UserID          string   `json:"user_id"`
	Prompt          string   `json:"prompt"`
	Turns           Turns    `json:"turns,omitempty"`
	FollowupPrompts []string `json:"followup_prompts,omitempty"`

	// Ground truth, populated from the data store at authoring time.
	GroundTruth map[string]any `json:"ground_truth,omitempty"`

	// Programmatic verification criteria. A nil/empty criterion means
	// "not checked", never "must be empty".
	ResponseMustContain    []string                  `json:"response_must_contain,omitempty"`
	ResponseMustNotContain []string                  `json:"response_must_not_contain,omitempty"`
	ResponsePattern        string                    `json:"response_pattern,omitempty"`
	ToolMustBeCalled       []string                  `json:"tool_must_be_called,omitempty"`
	ToolMustNotBeCalled    []string                  `json:"tool_must_not_be_called,omitempty"`
	ExpectedToolArgs       map[string]map[string]any `json:"expected_tool_args,omitempty"`
	ExpectedStoreState     map[string]any            `json:"expected_db_state,omitempty"`

	// Judge configuration for tasks needing qualitative assessment.
	UseJudge      bool   `json:"use_llm_judge,omitempty"`
	JudgeContext  string `json:"judge_context,omitempty"`
	JudgeCriteria string `json:"judge_criteria,omitempty"`
}

// Scenario returns the free-form scenario label from ground truth, if any.
func (t *Task) Scenario() string {
	gt, err := t.decodeGroundTruth()
	if err != nil {
		return ""
	}
	return gt.Scenario
}

// StoreKey derives the record key for store-state verification from ground
// truth. The customer ID is the acting user; the order ID must be present in
// ground truth for any task that requests a store check.
func (t *Task) StoreKey() (OrderKey, error) {
	gt, err := t.decodeGroundTruth()
	if err != nil {
		return OrderKey{}, fmt.Errorf("task %s: decoding ground truth: %w", t.ID, err)
	}
	if gt.OrderID == 0 {
		return OrderKey{}, fmt.Errorf("task %s: ground truth has no order_id", t.ID)
	}
	return OrderKey{CustomerID: t.UserID, OrderID: gt.OrderID}, nil
}

func (t *Task) decodeGroundTruth() (groundTruthFields, error) {
	var gt groundTruthFields
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &gt,
		WeaklyTypedInput: true, // order_id appears as both number and string in task files
	})
	if err != nil {
		return gt, err
	}
	if err := decoder.Decode(t.GroundTruth); err != nil {
		return gt, err
	}
	return gt, nil
}

// Prompts returns the full prompt sequence: the initial prompt followed by
// any follow-ups.
func (t *Task) Prompts() []string {
	return append([]string{t.Prompt}, t.FollowupPrompts...)
}

// Validate checks structural invariants. It is called once at load time;
// a task that fails validation never reaches the runner.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task has no id")
	}
	if t.Name == "" {
		return fmt.Errorf("task %s has no name", t.ID)
	}
	if _, err := ParseCategory(string(t.Category)); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	if t.UserID == "" {
		return fmt.Errorf("task %s has no user_id", t.ID)
	}
	if t.Prompt == "" {
		return fmt.Errorf("task %s has no prompt", t.ID)
	}

	switch t.Turns {
	case "", TurnsSingle:
	case TurnsMulti:
		if len(t.FollowupPrompts) == 0 {
			return fmt.Errorf("task %s: turns is %q but no followup_prompts given", t.ID, TurnsMulti)
		}
	default:
		return fmt.Errorf("task %s: invalid turns value %q", t.ID, t.Turns)
	}

	if len(t.ExpectedStoreState) > 0 {
		if _, err := t.StoreKey(); err != nil {
			return fmt.Errorf("store verification requested: %w", err)
		}
	}

	return nil
}
