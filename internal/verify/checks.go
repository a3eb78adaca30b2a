// Package verify implements the response verification engine: a set of
// independent, composable checks run against one task outcome. Each check
// produces a VerificationResult with diagnostic detail and never mutates the
// outcome or the store.
package verify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"proctor/internal/models"
)

// ResponseContains checks that the response contains every expected value.
// Matching is case-insensitive unless caseSensitive is set. An empty value
// list always passes.
func ResponseContains(response string, values []string, caseSensitive bool) models.VerificationResult {
	found, missing := partitionByPresence(response, values, caseSensitive)

	result := models.VerificationResult{
		Name:   "response_contains",
		Passed: len(missing) == 0,
		Details: map[string]any{
			"found":          found,
			"missing":        missing,
			"total_expected": len(values),
		},
	}
	if !result.Passed {
		result.Error = fmt.Sprintf("missing expected values: %s", strings.Join(missing, ", "))
	}
	return result
}

// ResponseNotContains checks that the response contains none of the
// forbidden values.
func ResponseNotContains(response string, values []string, caseSensitive bool) models.VerificationResult {
	forbiddenFound, _ := partitionByPresence(response, values, caseSensitive)

	result := models.VerificationResult{
		Name:   "response_not_contains",
		Passed: len(forbiddenFound) == 0,
		Details: map[string]any{
			"forbidden_found": forbiddenFound,
			"total_checked":   len(values),
		},
	}
	if !result.Passed {
		result.Error = fmt.Sprintf("found forbidden values: %s", strings.Join(forbiddenFound, ", "))
	}
	return result
}

func partitionByPresence(response string, values []string, caseSensitive bool) (present, absent []string) {
	haystack := response
	if !caseSensitive {
		haystack = strings.ToLower(response)
	}

	present = []string{}
	absent = []string{}
	for _, v := range values {
		needle := v
		if !caseSensitive {
			needle = strings.ToLower(v)
		}
		if strings.Contains(haystack, needle) {
			present = append(present, v)
		} else {
			absent = append(absent, v)
		}
	}
	return present, absent
}

// ResponseMatchesPattern checks the response against a regular expression
// using search (not full-match) semantics, case-insensitive by default.
// An invalid pattern is itself a failed check, not a crash.
func ResponseMatchesPattern(response, pattern string) models.VerificationResult {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return models.VerificationResult{
			Name:    "response_matches_pattern",
			Passed:  false,
			Details: map[string]any{"pattern": pattern},
			Error:   fmt.Sprintf("invalid pattern: %v", err),
		}
	}

	// A nil index means no match; a zero-width match is still a match.
	loc := re.FindStringIndex(response)
	matched := ""
	if loc != nil {
		matched = response[loc[0]:loc[1]]
	}
	result := models.VerificationResult{
		Name:   "response_matches_pattern",
		Passed: loc != nil,
		Details: map[string]any{
			"pattern": pattern,
			"matched": matched,
		},
	}
	if !result.Passed {
		result.Error = fmt.Sprintf("pattern %q not found in response", pattern)
	}
	return result
}

// ToolsCalled checks that every required tool appears in the outcome's
// deduplicated tool set.
func ToolsCalled(toolNames []string, required []string) models.VerificationResult {
	called := toolSet(toolNames)

	found := []string{}
	missing := []string{}
	for _, tool := range required {
		if called[tool] {
			found = append(found, tool)
		} else {
			missing = append(missing, tool)
		}
	}

	result := models.VerificationResult{
		Name:   "tools_called",
		Passed: len(missing) == 0,
		Details: map[string]any{
			"required":         required,
			"found":            found,
			"missing":          missing,
			"all_tools_called": toolNames,
		},
	}
	if !result.Passed {
		result.Error = fmt.Sprintf("missing required tools: %s", strings.Join(missing, ", "))
	}
	return result
}

// ToolsNotCalled checks that none of the forbidden tools appear in the
// outcome's deduplicated tool set.
func ToolsNotCalled(toolNames []string, forbidden []string) models.VerificationResult {
	called := toolSet(toolNames)

	forbiddenCalled := []string{}
	for _, tool := range forbidden {
		if called[tool] {
			forbiddenCalled = append(forbiddenCalled, tool)
		}
	}

	result := models.VerificationResult{
		Name:   "tools_not_called",
		Passed: len(forbiddenCalled) == 0,
		Details: map[string]any{
			"forbidden":        forbidden,
			"forbidden_called": forbiddenCalled,
			"all_tools_called": toolNames,
		},
	}
	if !result.Passed {
		result.Error = fmt.Sprintf("forbidden tools were called: %s", strings.Join(forbiddenCalled, ", "))
	}
	return result
}

// ToolCalled checks that one specific tool was called.
func ToolCalled(toolNames []string, tool string) models.VerificationResult {
	result := ToolsCalled(toolNames, []string{tool})
	result.Name = "tool_called_" + tool
	if !result.Passed {
		result.Error = fmt.Sprintf("required tool %q was not called", tool)
	}
	return result
}

// ToolNotCalled checks that one specific tool was not called. This is what
// separates "check my return status" (must not call update_return) from
// "start a return" (must call it).
func ToolNotCalled(toolNames []string, tool string) models.VerificationResult {
	result := ToolsNotCalled(toolNames, []string{tool})
	result.Name = "tool_not_called_" + tool
	if !result.Passed {
		result.Error = fmt.Sprintf("forbidden tool %q was called", tool)
	}
	return result
}

func toolSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// ToolCallArgs locates the last call to the named tool and compares the
// expected argument subset field-by-field. A missing tool call is a distinct
// failure from an argument mismatch.
func ToolCallArgs(toolCalls []models.ToolCall, tool string, expected map[string]any) models.VerificationResult {
	name := "tool_args_" + tool

	var call *models.ToolCall
	for i := len(toolCalls) - 1; i >= 0; i-- {
		if toolCalls[i].Name == tool {
			call = &toolCalls[i]
			break
		}
	}

	if call == nil {
		return models.VerificationResult{
			Name:   name,
			Passed: false,
			Details: map[string]any{
				"tool_name":     tool,
				"expected_args": expected,
			},
			Error: fmt.Sprintf("tool %q was not called", tool),
		}
	}

	mismatches := map[string]any{}
	for key, want := range expected {
		got, ok := call.Arguments[key]
		if !ok || !looselyEqual(want, got) {
			mismatches[key] = map[string]any{"expected": want, "actual": got}
		}
	}

	result := models.VerificationResult{
		Name:   name,
		Passed: len(mismatches) == 0,
		Details: map[string]any{
			"tool_name":     tool,
			"expected_args": expected,
			"actual_args":   call.Arguments,
			"mismatches":    mismatches,
		},
	}
	if !result.Passed {
		fields := make([]string, 0, len(mismatches))
		for f := range mismatches {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		result.Error = fmt.Sprintf("tool %q argument mismatches: %s", tool, strings.Join(fields, ", "))
	}
	return result
}

// looselyEqual compares an expected value against an observed one. Strings
// compare case-insensitively; numbers compare by value regardless of the
// concrete type JSON decoding produced.
func looselyEqual(want, got any) bool {
	if ws, ok := want.(string); ok {
		if gs, ok := got.(string); ok {
			return strings.EqualFold(ws, gs)
		}
		return false
	}

	if wf, ok := asFloat(want); ok {
		if gf, ok := asFloat(got); ok {
			return wf == gf
		}
		return false
	}

	return want == got
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
