package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskgraph/taskgraph/internal/models"
)

func TestNewRootCommand_RegistersFlatTopLevelSubcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.ElementsMatch(t, []string{"run", "plan", "resume", "synthesize", "validate", "inspect", "list"}, names)

	for _, c := range root.Commands() {
		require.Empty(t, c.Commands(), "subcommand %q should not itself carry nested subcommands", c.Name())
	}
}

func TestNewRunCommand_HasTemplatesAndCapabilitiesFlags(t *testing.T) {
	var cfgPath, envPath string
	cmd := newRunCommand(&cfgPath, &envPath)
	require.NotNil(t, cmd.Flags().Lookup("templates"))
	require.NotNil(t, cmd.Flags().Lookup("capabilities"))
	require.NotNil(t, cmd.Flags().Lookup("task-id"))
}

func TestNewPlanCommand_HasTemplatesFlag(t *testing.T) {
	var cfgPath, envPath string
	cmd := newPlanCommand(&cfgPath, &envPath)
	require.NotNil(t, cmd.Flags().Lookup("templates"))
}

func TestNewResumeCommand_TakesExactlyOneArg(t *testing.T) {
	var cfgPath, envPath string
	cmd := newResumeCommand(&cfgPath, &envPath)
	require.NoError(t, cmd.Args(cmd, []string{"task-123"}))
	require.Error(t, cmd.Args(cmd, []string{}))
	require.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}

func TestNewListCommand_HasStatusAndRebuildFlags(t *testing.T) {
	var cfgPath, envPath string
	cmd := newListCommand(&cfgPath, &envPath)
	require.NotNil(t, cmd.Flags().Lookup("status"))
	require.NotNil(t, cmd.Flags().Lookup("rebuild"))
}

func TestNewValidateCommand_HasOptionalTemplatesFlag(t *testing.T) {
	cmd := newValidateCommand()
	require.NotNil(t, cmd.Flags().Lookup("templates"))
	require.NoError(t, cmd.Args(cmd, []string{"capabilities.json"}))
}

func TestPrintResult_SuccessWithPlanAndFinalAnswer(t *testing.T) {
	answer := "final answer text"
	result := models.HandleUserTaskResult{
		Success: true,
		Message: "execution complete",
		Plan: &models.Plan{
			Stages: []models.Stage{{{AssignedAgentRole: "researcher", ToolName: "web_search", NarrativeStep: "look something up"}}},
		},
		FinalAnswer: &answer,
	}

	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)

	err := printResult(root, "task-1", result)
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "task task-1: execution complete")
	require.Contains(t, out, answer)
	require.Contains(t, out, "plan:")
}

func TestPrintResult_FailureReturnsErrorFromSummary(t *testing.T) {
	result := models.HandleUserTaskResult{
		Success:      false,
		ErrorSummary: &models.ErrorSummary{Reason: "all sub-tasks failed"},
	}

	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)

	err := printResult(root, "task-2", result)
	require.Error(t, err)
	require.Contains(t, err.Error(), "all sub-tasks failed")
	require.Contains(t, buf.String(), "task task-2 failed: all sub-tasks failed")
}

func TestPrintResult_FailureWithoutSummaryUsesDefaultReason(t *testing.T) {
	result := models.HandleUserTaskResult{Success: false}

	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)

	err := printResult(root, "task-3", result)
	require.Error(t, err)
	require.Contains(t, buf.String(), "unknown failure")
}

func TestCountArg_ParsesSecondFieldOrFallsBack(t *testing.T) {
	require.Equal(t, 5, countArg([]string{"findings", "5"}, 10))
	require.Equal(t, 10, countArg([]string{"findings"}, 10))
	require.Equal(t, 10, countArg([]string{"findings", "not-a-number"}, 10))
	require.Equal(t, 10, countArg([]string{"findings", "-3"}, 10))
}
