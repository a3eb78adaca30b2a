package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var errPrinter = message.NewPrinter(language.English)

// taskFileSchema is the compiled schema for task files; compiled once at
// package init since the schema is embedded and cannot change at runtime.
var taskFileSchema *jsonschema.Schema

const taskFileSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tasks"],
  "properties": {
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "category", "user_id", "prompt"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "category": {
            "enum": ["order_status", "return_status", "return_init", "product_qa", "out_of_scope"]
          },
          "user_id": {"type": "string", "minLength": 1},
          "prompt": {"type": "string", "minLength": 1},
          "turns": {"enum": ["single", "multi"]},
          "followup_prompts": {"type": "array", "items": {"type": "string"}},
          "ground_truth": {"type": "object"},
          "response_must_contain": {"type": "array", "items": {"type": "string"}},
          "response_must_not_contain": {"type": "array", "items": {"type": "string"}},
          "response_pattern": {"type": "string"},
          "tool_must_be_called": {"type": "array", "items": {"type": "string"}},
          "tool_must_not_be_called": {"type": "array", "items": {"type": "string"}},
          "expected_tool_args": {
            "type": "object",
            "additionalProperties": {"type": "object"}
          },
          "expected_db_state": {"type": "object"},
          "use_llm_judge": {"type": "boolean"},
          "judge_context": {"type": "string"},
          "judge_criteria": {"type": "string"}
        }
      }
    }
  }
}`

func init() {
	var doc any
	if err := json.Unmarshal([]byte(taskFileSchemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("parsing embedded task schema: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tasks.schema.json", doc); err != nil {
		panic(fmt.Sprintf("adding task schema resource: %v", err))
	}

	schema, err := compiler.Compile("tasks.schema.json")
	if err != nil {
		panic(fmt.Sprintf("compiling task schema: %v", err))
	}
	taskFileSchema = schema
}

// validateDocument checks a decoded task file against the schema and
// returns every violation, one message per offending location.
func validateDocument(instance any) []string {
	err := taskFileSchema.Validate(instance)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}

	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(errPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
