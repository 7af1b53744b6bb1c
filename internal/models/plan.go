package models

import "errors"

// PlanSource records how a plan came to be.
type PlanSource string

const (
	PlanSourceTemplate PlanSource = "template"
	PlanSourceModel    PlanSource = "model"
)

// Stage is an unordered set (size >= 1) of sub-tasks dispatched in parallel.
// Stages themselves are strictly sequential within a Plan.
type Stage []SubTaskDefinition

// Plan is the ordered sequence of Stages the Plan Executor consumes. The
// array-of-arrays shape is canonical; a flat single-stage plan is simply a
// Plan of length one.
type Plan struct {
	Stages []Stage    `json:"stages"`
	Source PlanSource `json:"source"`
}

// Validate enforces the Plan Manager's schema invariants (spec §4.6 step 3):
// a non-empty array of non-empty arrays of well-formed sub-task definitions.
func (p Plan) Validate(knownAgentRoles []string, knownToolsByRole map[string][]string) error {
	if len(p.Stages) == 0 {
		return &PlanValidationError{Reason: "plan must have at least one stage", StageIndex: -1, TaskIndex: -1}
	}
	for si, stage := range p.Stages {
		if len(stage) == 0 {
			return &PlanValidationError{Reason: "stage must have at least one sub-task", StageIndex: si}
		}
		for ti, def := range stage {
			if err := def.Validate(knownAgentRoles, knownToolsByRole); err != nil {
				var pve *PlanValidationError
				if errors.As(err, &pve) {
					pve.StageIndex = si
					pve.TaskIndex = ti
				}
				return err
			}
		}
	}
	return nil
}
