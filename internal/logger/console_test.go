package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskgraph/taskgraph/internal/models"
)

func TestLogStageStart_WritesSubTaskCount(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	l.LogStageStart(2, 3)
	require.Contains(t, buf.String(), "stage 2")
	require.Contains(t, buf.String(), "3 sub-tasks")
}

func TestLogStepOutcome_IncludesErrorDetailsOnFailure(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "debug")
	l.LogStepOutcome(models.StepOutcome{
		SubTaskDefinition: models.SubTaskDefinition{
			AssignedAgentRole: "researcher",
			ToolName:          "search",
			NarrativeStep:     "look up pricing",
		},
		Status:       models.SubTaskFailed,
		ErrorDetails: "timeout",
	})
	out := buf.String()
	require.Contains(t, out, "researcher")
	require.Contains(t, out, "timeout")
}

func TestLogStepOutcome_SuppressedBelowDebugThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	l.LogStepOutcome(models.StepOutcome{Status: models.SubTaskCompleted})
	require.Empty(t, buf.String())
}

func TestLogJournalEntry_ErrorEventsAlwaysPassFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "error")
	l.LogJournalEntry("task-1", models.JournalEntry{Event: models.EventCriticalError, Detail: "boom"})
	require.Contains(t, buf.String(), "boom")

	buf.Reset()
	l.LogJournalEntry("task-1", models.JournalEntry{Event: models.EventPlanningStarted, Detail: "ignored"})
	require.Empty(t, buf.String())
}

func TestNormalizeLevel_DefaultsToInfoForUnknownStrings(t *testing.T) {
	require.Equal(t, levelInfo, normalizeLevel("bogus"))
	require.Equal(t, levelDebug, normalizeLevel("DEBUG"))
}

func TestIsTerminal_NonStdStreamsAreNeverColored(t *testing.T) {
	var buf bytes.Buffer
	require.False(t, isTerminal(&buf))
	l := NewConsoleLogger(&buf, "info")
	require.False(t, l.colorOutput)
}

func TestLogStageStart_PlainOutputHasNoEscapeCodes(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	l.LogStageStart(0, 1)
	require.False(t, strings.Contains(buf.String(), "\x1b["))
}

func TestLogTaskSummary_PlainOutputReportsOutcomeAndPlan(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	answer := "42"
	l.LogTaskSummary("task-1", models.HandleUserTaskResult{
		Success: true,
		Message: "execution complete",
		Plan:    &models.Plan{Stages: []models.Stage{{}, {}}},
		FinalAnswer: &answer,
	})
	out := buf.String()
	require.Contains(t, out, "task-1 succeeded")
	require.Contains(t, out, "execution complete")
	require.Contains(t, out, "plan: 2 stage(s)")
	require.Contains(t, out, "final answer produced")
	require.False(t, strings.Contains(out, "\x1b["))
}

func TestLogTaskSummary_FailureReportsReason(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	l.LogTaskSummary("task-2", models.HandleUserTaskResult{
		Success:      false,
		ErrorSummary: &models.ErrorSummary{Reason: "all sub-tasks failed"},
	})
	out := buf.String()
	require.Contains(t, out, "task-2 failed")
	require.Contains(t, out, "all sub-tasks failed")
}

func TestLogTaskSummary_SuppressedBelowInfoThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "error")
	l.LogTaskSummary("task-3", models.HandleUserTaskResult{Success: true})
	require.Empty(t, buf.String())
}
