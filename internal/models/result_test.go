package models

import "testing"

func TestNewExecutionResult_AllSucceeded(t *testing.T) {
	outcomes := []StepOutcome{
		{SubTaskDefinition: SubTaskDefinition{ToolName: "WebSearchTool", NarrativeStep: "search"}, SubTaskID: "s1", Status: SubTaskCompleted, ProcessedResult: map[string]any{"temp": "15C"}},
		{SubTaskDefinition: SubTaskDefinition{ToolName: "CalculatorTool", NarrativeStep: "compute"}, SubTaskID: "s2", Status: SubTaskCompleted, ProcessedResult: map[string]any{"result": 4}},
	}
	result := NewExecutionResult(outcomes, nil)
	if !result.Success {
		t.Error("expected success")
	}
	if result.FailedStepDetails != nil {
		t.Error("expected no failed step details")
	}
	if len(result.UpdatesForWorkingContext.KeyFindings) != 2 {
		t.Errorf("expected 2 key findings, got %d", len(result.UpdatesForWorkingContext.KeyFindings))
	}
	if len(result.UpdatesForWorkingContext.ErrorsEncountered) != 0 {
		t.Error("expected no errors encountered")
	}
}

func TestNewExecutionResult_FirstFailureWins(t *testing.T) {
	outcomes := []StepOutcome{
		{SubTaskDefinition: SubTaskDefinition{ToolName: "WebSearchTool", NarrativeStep: "search"}, SubTaskID: "s1", Status: SubTaskCompleted},
		{SubTaskDefinition: SubTaskDefinition{ToolName: "CalculatorTool", NarrativeStep: "compute"}, SubTaskID: "s2", Status: SubTaskFailed, ErrorDetails: "division by zero", StageIndex: 1, DispatchIndex: 0},
		{SubTaskDefinition: SubTaskDefinition{ToolName: "CalculatorTool", NarrativeStep: "compute again"}, SubTaskID: "s3", Status: SubTaskFailed, ErrorDetails: "also failed", StageIndex: 1, DispatchIndex: 1},
	}
	result := NewExecutionResult(outcomes, nil)
	if result.Success {
		t.Error("expected failure")
	}
	if result.FailedStepDetails == nil {
		t.Fatal("expected failed step details")
	}
	if result.FailedStepDetails.SubTaskID != "s2" {
		t.Errorf("expected first failure (s2) to be recorded, got %s", result.FailedStepDetails.SubTaskID)
	}
	if len(result.UpdatesForWorkingContext.ErrorsEncountered) != 2 {
		t.Errorf("expected 2 error records, got %d", len(result.UpdatesForWorkingContext.ErrorsEncountered))
	}
}

func TestNewExecutionResult_TimeoutGetsDistinctErrorKind(t *testing.T) {
	outcomes := []StepOutcome{
		{SubTaskDefinition: SubTaskDefinition{ToolName: "SlowTool", NarrativeStep: "wait"}, SubTaskID: "s1", Status: SubTaskFailed, ErrorDetails: "sub-task s1 timed out after 2m0s", TimedOut: true},
	}
	result := NewExecutionResult(outcomes, nil)
	if result.FailedStepDetails == nil {
		t.Fatal("expected failed step details")
	}
	if result.FailedStepDetails.ErrorKind != ErrSubTaskTimeout {
		t.Errorf("expected ErrSubTaskTimeout, got %s", result.FailedStepDetails.ErrorKind)
	}
}
