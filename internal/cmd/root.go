// Package cmd assembles the taskgraph CLI's cobra command tree, wiring
// configuration, the language-model adapter, the dispatch channels, and the
// orchestrator into each subcommand.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand builds the root taskgraph command with all subcommands
// attached.
func NewRootCommand() *cobra.Command {
	var configPath, envPath string

	root := &cobra.Command{
		Use:     "taskgraph",
		Short:   "Multi-agent task orchestration engine",
		Version: Version,
		Long: `taskgraph plans, executes, and synthesizes answers for user tasks by
dispatching sub-tasks to worker agents over in-process channels and
persisting a durable filesystem memory bank per task.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "taskgraph.yaml", "path to config YAML")
	root.PersistentFlags().StringVar(&envPath, "env-file", ".env", "path to .env overrides")

	root.AddCommand(newRunCommand(&configPath, &envPath))
	root.AddCommand(newPlanCommand(&configPath, &envPath))
	root.AddCommand(newResumeCommand(&configPath, &envPath))
	root.AddCommand(newSynthesizeCommand(&configPath, &envPath))
	root.AddCommand(newValidateCommand())
	root.AddCommand(newInspectCommand(&configPath, &envPath))
	root.AddCommand(newListCommand(&configPath, &envPath))

	return root
}
