package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskgraph/taskgraph/internal/llm"
)

var knownRoles = []string{"researcher", "writer"}
var knownTools = map[string][]string{
	"researcher": {"search"},
	"writer":     {"draft"},
}

func TestMatchTemplates_SubstitutesCapturedGroups(t *testing.T) {
	tmpl := Template{
		Name:    "summarize-url",
		Pattern: MustPattern(`^summarize (?P<url>\S+)$`),
		Stages: []Stage{
			{
				{AssignedAgentRole: "researcher", ToolName: "search", NarrativeStep: "fetch {{url}}", SubTaskInput: map[string]any{"url": "{{url}}"}},
			},
		},
	}

	plan, ok := MatchTemplates([]Template{tmpl}, "summarize https://example.com/doc")
	require.True(t, ok)
	require.Len(t, plan.Stages, 1)
	require.Equal(t, "fetch https://example.com/doc", plan.Stages[0][0].NarrativeStep)
	require.Equal(t, "https://example.com/doc", plan.Stages[0][0].SubTaskInput["url"])
	require.Equal(t, "template", string(plan.Source))
}

func TestMatchTemplates_NoMatchReturnsFalse(t *testing.T) {
	tmpl := Template{Name: "x", Pattern: MustPattern(`^nope$`)}
	_, ok := MatchTemplates([]Template{tmpl}, "something else entirely")
	require.False(t, ok)
}

func TestStripCodeFences_RemovesJSONFence(t *testing.T) {
	raw := "```json\n[[{\"a\":1}]]\n```"
	require.Equal(t, `[[{"a":1}]]`, stripCodeFences(raw))
}

func TestStripCodeFences_PassesThroughPlainJSON(t *testing.T) {
	raw := `[[{"a":1}]]`
	require.Equal(t, raw, stripCodeFences(raw))
}

func TestGenerateModelPlan_ValidatesSchemaAndStructure(t *testing.T) {
	adapter := llm.NewFakeAdapter(`[[{"assigned_agent_role":"researcher","tool_name":"search","sub_task_input":{},"narrative_step":"do it"}]]`)
	plan, _, err := GenerateModelPlan(context.Background(), adapter, ModelPromptInputs{
		UserTaskString:   "anything",
		KnownAgentRoles:  knownRoles,
		KnownToolsByRole: knownTools,
	}, llm.Params{})
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1)
	require.Equal(t, "researcher", plan.Stages[0][0].AssignedAgentRole)
}

func TestGenerateModelPlan_RejectsUnknownRole(t *testing.T) {
	adapter := llm.NewFakeAdapter(`[[{"assigned_agent_role":"unknown","tool_name":"search","sub_task_input":{},"narrative_step":"do it"}]]`)
	_, _, err := GenerateModelPlan(context.Background(), adapter, ModelPromptInputs{
		UserTaskString:   "anything",
		KnownAgentRoles:  knownRoles,
		KnownToolsByRole: knownTools,
	}, llm.Params{})
	require.Error(t, err)
}

func TestGenerateModelPlan_RejectsEmptyStage(t *testing.T) {
	adapter := llm.NewFakeAdapter(`[[]]`)
	_, _, err := GenerateModelPlan(context.Background(), adapter, ModelPromptInputs{
		UserTaskString:   "anything",
		KnownAgentRoles:  knownRoles,
		KnownToolsByRole: knownTools,
	}, llm.Params{})
	require.Error(t, err)
}

func TestManager_Plan_PrefersTemplateOverModel(t *testing.T) {
	tmpl := Template{
		Name:    "greet",
		Pattern: MustPattern(`^hello$`),
		Stages: []Stage{
			{{AssignedAgentRole: "writer", ToolName: "draft", NarrativeStep: "say hi", SubTaskInput: map[string]any{}}},
		},
	}
	mgr := New([]Template{tmpl})
	adapter := llm.NewFakeAdapter("should not be called")

	result := mgr.Plan(context.Background(), adapter, ModelPromptInputs{
		UserTaskString:   "hello",
		KnownAgentRoles:  knownRoles,
		KnownToolsByRole: knownTools,
	})
	require.True(t, result.Success)
	require.Equal(t, 0, adapter.Calls)
}
