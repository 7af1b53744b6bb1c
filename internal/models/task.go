package models

import "time"

// Mode selects one of the four orchestrator execution branches (spec §4.7).
type Mode string

const (
	ModePlanOnly           Mode = "PLAN_ONLY"
	ModeExecuteFullPlan    Mode = "EXECUTE_FULL_PLAN"
	ModeExecutePlannedTask Mode = "EXECUTE_PLANNED_TASK"
	ModeSynthesizeOnly     Mode = "SYNTHESIZE_ONLY"
)

// Status is one of the terminal or intermediate statuses a Task can hold.
type Status string

const (
	StatusPlanGenerated   Status = "PLAN_GENERATED"
	StatusCompleted       Status = "COMPLETED"
	StatusFailedPlanning  Status = "FAILED_PLANNING"
	StatusFailedExecution Status = "FAILED_EXECUTION"
	StatusCriticalError   Status = "CRITICAL_ERROR"
)

// UploadedFile is one caller-supplied attachment. Name is sanitized to a
// base name with no path components before it is persisted.
type UploadedFile struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// Task is the root aggregate, keyed by ParentTaskID. It mirrors exactly what
// is persisted in task_state.json (spec §3, §6).
type Task struct {
	ParentTaskID     string                `json:"parent_task_id"`
	UserTaskString   string                `json:"user_task_string"`
	Mode             Mode                  `json:"mode"`
	Status           Status                `json:"status"`
	Plan             *Plan                 `json:"plan,omitempty"`
	ExecutionContext []StepOutcome         `json:"execution_context,omitempty"`
	FinalAnswer      *string               `json:"final_answer,omitempty"`
	ErrorSummary     *ErrorSummary         `json:"error_summary,omitempty"`
	CWC              CurrentWorkingContext `json:"cwc"`
	RevisionAttempt  int                   `json:"revision_attempt"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// IsTerminal reports whether Status represents a completed invocation, one
// that will not transition further without a new handleUserTask call.
func (t Task) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailedPlanning, StatusFailedExecution, StatusCriticalError:
		return true
	default:
		return false
	}
}

// HandleUserTaskResult is the structured response every invocation returns
// (spec §6).
type HandleUserTaskResult struct {
	Success               bool                  `json:"success"`
	Message               string                `json:"message"`
	OriginalTask          string                `json:"originalTask"`
	Plan                  *Plan                 `json:"plan,omitempty"`
	ExecutedPlan          *Plan                 `json:"executedPlan,omitempty"`
	FinalAnswer           *string               `json:"finalAnswer,omitempty"`
	CurrentWorkingContext CurrentWorkingContext `json:"currentWorkingContext"`
	ErrorSummary          *ErrorSummary         `json:"errorSummary,omitempty"`
}
