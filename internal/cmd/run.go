package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskgraph/taskgraph/internal/models"
	"github.com/taskgraph/taskgraph/internal/orchestrator"
)

func newRunCommand(configPath, envPath *string) *cobra.Command {
	var capabilitiesPath, templatesDir string
	var parentTaskID string

	cmd := &cobra.Command{
		Use:   "run <task description...>",
		Short: "Plan and fully execute a new task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildAppWithTemplates(*configPath, *envPath, capabilitiesPath, templatesDir)
			if err != nil {
				return err
			}
			defer a.Close()

			if parentTaskID == "" {
				parentTaskID = uuid.NewString()
			}

			result := a.orch.HandleUserTask(context.Background(), orchestrator.Request{
				UserTaskString: strings.Join(args, " "),
				ParentTaskID:   parentTaskID,
				Mode:           models.ModeExecuteFullPlan,
			})
			a.cons.LogTaskSummary(parentTaskID, result)
			return printResult(c, parentTaskID, result)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&capabilitiesPath, "capabilities", "capabilities.json", "path to the agent/tool capabilities file")
	cmd.Flags().StringVar(&templatesDir, "templates", "", "directory of plan template JSON files")
	cmd.Flags().StringVar(&parentTaskID, "task-id", "", "parent task id (generated if omitted)")
	return cmd
}

func newPlanCommand(configPath, envPath *string) *cobra.Command {
	var capabilitiesPath, templatesDir, parentTaskID string

	cmd := &cobra.Command{
		Use:   "plan <task description...>",
		Short: "Produce a plan without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildAppWithTemplates(*configPath, *envPath, capabilitiesPath, templatesDir)
			if err != nil {
				return err
			}
			defer a.Close()

			if parentTaskID == "" {
				parentTaskID = uuid.NewString()
			}

			result := a.orch.HandleUserTask(context.Background(), orchestrator.Request{
				UserTaskString: strings.Join(args, " "),
				ParentTaskID:   parentTaskID,
				Mode:           models.ModePlanOnly,
			})
			a.cons.LogTaskSummary(parentTaskID, result)
			return printResult(c, parentTaskID, result)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&capabilitiesPath, "capabilities", "capabilities.json", "path to the agent/tool capabilities file")
	cmd.Flags().StringVar(&templatesDir, "templates", "", "directory of plan template JSON files")
	cmd.Flags().StringVar(&parentTaskID, "task-id", "", "parent task id (generated if omitted)")
	return cmd
}

func newResumeCommand(configPath, envPath *string) *cobra.Command {
	var capabilitiesPath string

	cmd := &cobra.Command{
		Use:   "resume <parent-task-id>",
		Short: "Execute a previously generated plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp(*configPath, *envPath, capabilitiesPath)
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.orch.HandleUserTask(context.Background(), orchestrator.Request{
				ParentTaskID: args[0],
				TaskToLoad:   args[0],
				Mode:         models.ModeExecutePlannedTask,
			})
			a.cons.LogTaskSummary(args[0], result)
			return printResult(c, args[0], result)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&capabilitiesPath, "capabilities", "capabilities.json", "path to the agent/tool capabilities file")
	return cmd
}

func newSynthesizeCommand(configPath, envPath *string) *cobra.Command {
	var capabilitiesPath string

	cmd := &cobra.Command{
		Use:   "synthesize <parent-task-id>",
		Short: "Synthesize a final answer from an already-executed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp(*configPath, *envPath, capabilitiesPath)
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.orch.HandleUserTask(context.Background(), orchestrator.Request{
				ParentTaskID: args[0],
				TaskToLoad:   args[0],
				Mode:         models.ModeSynthesizeOnly,
			})
			a.cons.LogTaskSummary(args[0], result)
			return printResult(c, args[0], result)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&capabilitiesPath, "capabilities", "capabilities.json", "path to the agent/tool capabilities file")
	return cmd
}

func printResult(c *cobra.Command, parentTaskID string, result models.HandleUserTaskResult) error {
	out := c.OutOrStdout()
	if !result.Success {
		reason := "unknown failure"
		if result.ErrorSummary != nil {
			reason = result.ErrorSummary.Reason
		}
		fmt.Fprintf(out, "task %s failed: %s\n", parentTaskID, reason)
		return fmt.Errorf("%s", reason)
	}

	fmt.Fprintf(out, "task %s: %s\n", parentTaskID, result.Message)
	if result.FinalAnswer != nil {
		fmt.Fprintf(out, "\n%s\n", *result.FinalAnswer)
	}
	if result.Plan != nil {
		data, _ := json.MarshalIndent(result.Plan, "", "  ")
		fmt.Fprintf(out, "\nplan:\n%s\n", data)
	}
	return nil
}
