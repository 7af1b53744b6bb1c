package models

import "testing"

func validRoles() ([]string, map[string][]string) {
	return []string{"ResearchAgent", "UtilityAgent"},
		map[string][]string{
			"ResearchAgent": {"WebSearchTool"},
			"UtilityAgent":  {"CalculatorTool"},
		}
}

func TestPlan_Validate_TwoStages(t *testing.T) {
	roles, tools := validRoles()
	plan := Plan{
		Source: PlanSourceModel,
		Stages: []Stage{
			{{AssignedAgentRole: "ResearchAgent", ToolName: "WebSearchTool", SubTaskInput: map[string]any{"query": "x"}, NarrativeStep: "search"}},
			{{AssignedAgentRole: "UtilityAgent", ToolName: "CalculatorTool", SubTaskInput: map[string]any{"expression": "2+2"}, NarrativeStep: "compute"}},
		},
	}
	if err := plan.Validate(roles, tools); err != nil {
		t.Errorf("expected valid plan, got: %v", err)
	}
}

func TestPlan_Validate_EmptyStages(t *testing.T) {
	roles, tools := validRoles()
	plan := Plan{Source: PlanSourceModel}
	if err := plan.Validate(roles, tools); err == nil {
		t.Error("expected error for plan with no stages")
	}
}

func TestPlan_Validate_EmptyStage(t *testing.T) {
	roles, tools := validRoles()
	plan := Plan{Source: PlanSourceModel, Stages: []Stage{{}}}
	if err := plan.Validate(roles, tools); err == nil {
		t.Error("expected error for stage with no sub-tasks")
	}
}

func TestPlan_Validate_ReportsStageAndTaskIndex(t *testing.T) {
	roles, tools := validRoles()
	plan := Plan{
		Source: PlanSourceModel,
		Stages: []Stage{
			{{AssignedAgentRole: "ResearchAgent", ToolName: "WebSearchTool", SubTaskInput: map[string]any{}, NarrativeStep: "ok"}},
			{{AssignedAgentRole: "GhostAgent", ToolName: "Nope", SubTaskInput: map[string]any{}, NarrativeStep: "bad"}},
		},
	}
	err := plan.Validate(roles, tools)
	if err == nil {
		t.Fatal("expected error")
	}
	pve, ok := err.(*PlanValidationError)
	if !ok {
		t.Fatalf("expected *PlanValidationError, got %T", err)
	}
	if pve.StageIndex != 1 || pve.TaskIndex != 0 {
		t.Errorf("expected stage 1 task 0, got stage %d task %d", pve.StageIndex, pve.TaskIndex)
	}
}
