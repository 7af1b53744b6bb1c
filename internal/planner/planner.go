// Package planner implements the Plan Manager: template matching first,
// then model-generated plans validated against the known capabilities set.
package planner

import (
	"context"

	"github.com/taskgraph/taskgraph/internal/llm"
	"github.com/taskgraph/taskgraph/internal/models"
)

// Result is what the Plan Manager returns to the Orchestrator (spec §4.6
// step 4).
type Result struct {
	Success     bool
	Plan        models.Plan
	Source      models.PlanSource
	RawResponse string
	Message     string
}

// Manager holds the configured template table and default model params
// used whenever a user task doesn't match any template.
type Manager struct {
	Templates   []Template
	ModelParams llm.Params
}

// New builds a Manager from a template table; ModelParams can be set on the
// returned value before first use.
func New(templates []Template) *Manager {
	return &Manager{Templates: templates}
}

// Plan produces a validated plan for one user task, trying template match
// before falling back to a model-generated plan (spec §4.6).
func (m *Manager) Plan(ctx context.Context, adapter llm.Adapter, in ModelPromptInputs) Result {
	if plan, ok := MatchTemplates(m.Templates, in.UserTaskString); ok {
		if err := plan.Validate(in.KnownAgentRoles, in.KnownToolsByRole); err != nil {
			return Result{Success: false, Message: err.Error()}
		}
		return Result{Success: true, Plan: plan, Source: models.PlanSourceTemplate}
	}

	plan, raw, err := GenerateModelPlan(ctx, adapter, in, m.ModelParams)
	if err != nil {
		return Result{Success: false, Message: err.Error(), RawResponse: raw}
	}
	return Result{Success: true, Plan: plan, Source: models.PlanSourceModel, RawResponse: raw}
}
