package models

// SubTaskStatus is the terminal status of a dispatched sub-task.
type SubTaskStatus string

const (
	SubTaskCompleted SubTaskStatus = "COMPLETED"
	SubTaskFailed    SubTaskStatus = "FAILED"
)

// SubTaskDefinition is one unit of work inside a Stage. assigned_agent_role
// must appear in the configured capabilities set; tool_name must appear in
// that role's tool set. sub_task_input is opaque to the executor.
type SubTaskDefinition struct {
	AssignedAgentRole string         `json:"assigned_agent_role"`
	ToolName          string         `json:"tool_name"`
	SubTaskInput      map[string]any `json:"sub_task_input"`
	NarrativeStep     string         `json:"narrative_step"`
}

// Validate checks the structural requirements a Plan Manager must enforce
// on every sub-task definition before returning a plan (spec §4.6 step 3).
func (d SubTaskDefinition) Validate(knownAgentRoles []string, knownToolsByRole map[string][]string) error {
	if d.AssignedAgentRole == "" || !contains(knownAgentRoles, d.AssignedAgentRole) {
		return &PlanValidationError{Reason: "assigned_agent_role not in known roles: " + d.AssignedAgentRole}
	}
	tools := knownToolsByRole[d.AssignedAgentRole]
	if d.ToolName == "" || !contains(tools, d.ToolName) {
		return &PlanValidationError{Reason: "tool_name not in role's tool set: " + d.ToolName}
	}
	if d.SubTaskInput == nil {
		return &PlanValidationError{Reason: "sub_task_input must be an object"}
	}
	if d.NarrativeStep == "" {
		return &PlanValidationError{Reason: "narrative_step must be non-empty"}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// SubTaskMessage is what the Plan Executor enqueues on the sub-task channel:
// a SubTaskDefinition addressed to one dispatch.
type SubTaskMessage struct {
	SubTaskDefinition
	SubTaskID    string `json:"sub_task_id"`
	ParentTaskID string `json:"parent_task_id"`
}

// SubTaskResult is what a worker sends back on the results channel.
// ResultData is opaque on success; ErrorDetails is populated on failure.
type SubTaskResult struct {
	SubTaskID    string         `json:"sub_task_id"`
	Status       SubTaskStatus  `json:"status"`
	ResultData   map[string]any `json:"result_data,omitempty"`
	ErrorDetails string         `json:"error_details,omitempty"`
}

// StepOutcome is a SubTaskResult merged back with the definition that
// produced it, recorded in dispatch order inside the execution context.
type StepOutcome struct {
	SubTaskDefinition
	SubTaskID         string         `json:"sub_task_id"`
	Status            SubTaskStatus  `json:"status"`
	ProcessedResult   map[string]any `json:"processed_result_data,omitempty"`
	ErrorDetails      string         `json:"error_details,omitempty"`
	StageIndex        int            `json:"stage_index"`
	DispatchIndex     int            `json:"dispatch_index_within_stage"`
	TimedOut          bool           `json:"timed_out,omitempty"`
}
