package models

import "testing"

func TestSubTaskDefinition_Validate(t *testing.T) {
	roles := []string{"ResearchAgent", "UtilityAgent"}
	tools := map[string][]string{
		"ResearchAgent": {"WebSearchTool"},
		"UtilityAgent":  {"CalculatorTool"},
	}

	def := SubTaskDefinition{
		AssignedAgentRole: "ResearchAgent",
		ToolName:          "WebSearchTool",
		SubTaskInput:      map[string]any{"query": "weather in London"},
		NarrativeStep:     "search the weather",
	}
	if err := def.Validate(roles, tools); err != nil {
		t.Errorf("expected valid definition, got: %v", err)
	}
}

func TestSubTaskDefinition_Validate_UnknownRole(t *testing.T) {
	def := SubTaskDefinition{
		AssignedAgentRole: "GhostAgent",
		ToolName:          "WebSearchTool",
		SubTaskInput:      map[string]any{},
		NarrativeStep:     "search",
	}
	if err := def.Validate([]string{"ResearchAgent"}, map[string][]string{}); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestSubTaskDefinition_Validate_ToolNotInRole(t *testing.T) {
	def := SubTaskDefinition{
		AssignedAgentRole: "ResearchAgent",
		ToolName:          "CalculatorTool",
		SubTaskInput:      map[string]any{},
		NarrativeStep:     "search",
	}
	tools := map[string][]string{"ResearchAgent": {"WebSearchTool"}}
	if err := def.Validate([]string{"ResearchAgent"}, tools); err == nil {
		t.Error("expected error for tool not in role's tool set")
	}
}

func TestSubTaskDefinition_Validate_EmptyNarrative(t *testing.T) {
	def := SubTaskDefinition{
		AssignedAgentRole: "ResearchAgent",
		ToolName:          "WebSearchTool",
		SubTaskInput:      map[string]any{},
	}
	tools := map[string][]string{"ResearchAgent": {"WebSearchTool"}}
	if err := def.Validate([]string{"ResearchAgent"}, tools); err == nil {
		t.Error("expected error for empty narrative_step")
	}
}

func TestSubTaskDefinition_Validate_NilInput(t *testing.T) {
	def := SubTaskDefinition{
		AssignedAgentRole: "ResearchAgent",
		ToolName:          "WebSearchTool",
		NarrativeStep:     "search",
	}
	tools := map[string][]string{"ResearchAgent": {"WebSearchTool"}}
	if err := def.Validate([]string{"ResearchAgent"}, tools); err == nil {
		t.Error("expected error for nil sub_task_input")
	}
}
