package models

// WorkingContextUpdates is the `updatesForWorkingContext` the Plan Executor
// emits alongside the execution context: the new key findings and errors
// derived from this run's step outcomes (spec §4.5 step 2).
type WorkingContextUpdates struct {
	KeyFindings       []KeyFinding  `json:"keyFindings"`
	ErrorsEncountered []ErrorRecord `json:"errorsEncountered"`
}

// ExecutionResult is everything the Plan Executor returns to the
// Orchestrator after consuming one plan (spec §4.5 step "Emit").
type ExecutionResult struct {
	ExecutionContext         []StepOutcome         `json:"executionContext"`
	JournalEntries           []JournalEntry        `json:"journalEntries"`
	UpdatesForWorkingContext WorkingContextUpdates  `json:"updatesForWorkingContext"`
	FinalAnswer              *string               `json:"finalAnswer,omitempty"`
	FinalAnswerSynthesized   bool                  `json:"finalAnswerSynthesized"`
	Success                  bool                  `json:"success"`
	FailedStepDetails        *FailedStepDetail     `json:"failedStepDetails,omitempty"`
}

// NewExecutionResult derives the WorkingContextUpdates from a slice of step
// outcomes, the way the executor bundles findings/errors for the caller.
// Mirrors the teacher's calculateMetricsFromResults consolidation pattern,
// adapted from numeric metrics to append-only finding/error extraction.
func NewExecutionResult(outcomes []StepOutcome, journal []JournalEntry) ExecutionResult {
	result := ExecutionResult{
		ExecutionContext: outcomes,
		JournalEntries:   journal,
		Success:          true,
	}
	for _, o := range outcomes {
		if o.Status == SubTaskFailed {
			result.Success = false
			if result.FailedStepDetails == nil {
				kind := ErrSubTaskFailed
				if o.TimedOut {
					kind = ErrSubTaskTimeout
				}
				result.FailedStepDetails = &FailedStepDetail{
					StageIndex:    o.StageIndex,
					DispatchIndex: o.DispatchIndex,
					SubTaskID:     o.SubTaskID,
					NarrativeStep: o.NarrativeStep,
					ToolName:      o.ToolName,
					ErrorKind:     kind,
					ErrorMessage:  o.ErrorDetails,
				}
			}
			result.UpdatesForWorkingContext.ErrorsEncountered = append(
				result.UpdatesForWorkingContext.ErrorsEncountered,
				ErrorRecord{
					ErrorID:             o.SubTaskID,
					SourceStepNarrative: o.NarrativeStep,
					SourceToolName:      o.ToolName,
					ErrorMessage:        o.ErrorDetails,
				},
			)
			continue
		}
		result.UpdatesForWorkingContext.KeyFindings = append(
			result.UpdatesForWorkingContext.KeyFindings,
			KeyFinding{
				ID:                  o.SubTaskID,
				SourceStepNarrative: o.NarrativeStep,
				SourceToolName:      o.ToolName,
				Data:                KeyFindingData{Kind: KeyFindingInline, Content: o.ProcessedResult},
			},
		)
	}
	return result
}
