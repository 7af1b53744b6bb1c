package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/taskgraph/taskgraph/internal/llm"
	"github.com/taskgraph/taskgraph/internal/models"
)

// PlanSchema is the JSON Schema a model-generated plan must satisfy before
// the structural Validate pass runs: a non-empty array of non-empty arrays
// of sub-task objects (spec §4.6 step 3).
const PlanSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "array",
    "minItems": 1,
    "items": {
      "type": "object",
      "required": ["assigned_agent_role", "tool_name", "sub_task_input", "narrative_step"],
      "properties": {
        "assigned_agent_role": {"type": "string", "minLength": 1},
        "tool_name": {"type": "string", "minLength": 1},
        "sub_task_input": {"type": "object"},
        "narrative_step": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// stripCodeFences removes a single leading/trailing markdown code fence from
// a model response, returning the inner content unchanged if none is found.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := codeFencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// compiledPlanSchema is built once; a malformed constant here is a build-time
// programming error, not a runtime condition.
var compiledPlanSchema = mustCompileSchema(PlanSchema)

func mustCompileSchema(schemaJSON string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("planner: invalid embedded schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("plan-schema.json", doc); err != nil {
		panic(fmt.Sprintf("planner: add schema resource: %v", err))
	}
	schema, err := c.Compile("plan-schema.json")
	if err != nil {
		panic(fmt.Sprintf("planner: compile schema: %v", err))
	}
	return schema
}

// ModelPromptInputs carries everything the planning prompt template needs
// beyond the user task string itself (spec §4.6 step 2).
type ModelPromptInputs struct {
	UserTaskString          string
	KnownAgentRoles         []string
	KnownToolsByRole        map[string][]string
	MemoryContextForPlanning string
	CurrentWorkingContext   string
	IsRevision              bool
	RevisionAttempt         int
	LastExecutionContext    string
	StructuredFailedStepInfo *models.FailedStepDetail
	PreviousPlan            *models.Plan
	LatestKeyFindings       []models.KeyFinding
	LatestErrorsEncountered []models.ErrorRecord
}

// BuildPlanningPrompt renders the planning prompt sent to the language
// model, including the prior failure context on a revision attempt.
func BuildPlanningPrompt(in ModelPromptInputs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User task: %s\n\n", in.UserTaskString)
	fmt.Fprintf(&b, "Known agent roles: %v\n", in.KnownAgentRoles)
	fmt.Fprintf(&b, "Known tools by role: %v\n\n", in.KnownToolsByRole)
	if in.MemoryContextForPlanning != "" {
		fmt.Fprintf(&b, "Context:\n%s\n\n", in.MemoryContextForPlanning)
	}
	if in.CurrentWorkingContext != "" {
		fmt.Fprintf(&b, "Current working context:\n%s\n\n", in.CurrentWorkingContext)
	}
	if in.IsRevision {
		fmt.Fprintf(&b, "This is revision attempt %d. The previous plan failed.\n", in.RevisionAttempt)
		if in.StructuredFailedStepInfo != nil {
			fmt.Fprintf(&b, "Failed step: %s (%s/%s): %s\n", in.StructuredFailedStepInfo.NarrativeStep,
				in.StructuredFailedStepInfo.ToolName, in.StructuredFailedStepInfo.ErrorKind, in.StructuredFailedStepInfo.ErrorMessage)
		}
		if in.LastExecutionContext != "" {
			fmt.Fprintf(&b, "Prior execution context:\n%s\n\n", in.LastExecutionContext)
		}
	}
	b.WriteString("Respond with a JSON array of stages, each an array of sub-task objects ")
	b.WriteString("with assigned_agent_role, tool_name, sub_task_input, and narrative_step.\n")
	return b.String()
}

// GenerateModelPlan calls the adapter, strips code fences, validates the
// response against PlanSchema and the structural invariants, and returns a
// parsed Plan with source="model" (spec §4.6 steps 2-4).
func GenerateModelPlan(ctx context.Context, adapter llm.Adapter, in ModelPromptInputs, params llm.Params) (models.Plan, string, error) {
	prompt := BuildPlanningPrompt(in)
	raw, err := adapter.GenerateText(ctx, prompt, params)
	if err != nil {
		return models.Plan{}, "", fmt.Errorf("planner: model call failed: %w", err)
	}

	stripped := stripCodeFences(raw)

	var stagesDoc any
	if err := json.Unmarshal([]byte(stripped), &stagesDoc); err != nil {
		return models.Plan{}, raw, fmt.Errorf("planner: response is not valid JSON: %w", err)
	}
	if err := compiledPlanSchema.Validate(stagesDoc); err != nil {
		return models.Plan{}, raw, fmt.Errorf("planner: response failed schema validation: %w", err)
	}

	var stages []models.Stage
	if err := json.Unmarshal([]byte(stripped), &stages); err != nil {
		return models.Plan{}, raw, fmt.Errorf("planner: response did not decode into stages: %w", err)
	}

	plan := models.Plan{Stages: stages, Source: models.PlanSourceModel}
	if err := plan.Validate(in.KnownAgentRoles, in.KnownToolsByRole); err != nil {
		return models.Plan{}, raw, fmt.Errorf("planner: %w", err)
	}
	return plan, raw, nil
}
