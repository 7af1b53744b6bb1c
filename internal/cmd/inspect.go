package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/taskgraph/taskgraph/internal/config"
	"github.com/taskgraph/taskgraph/internal/memory"
)

func newInspectCommand(configPath, envPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <parent-task-id>",
		Short: "Interactively browse a task's memory bank (read-only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, *envPath)
			if err != nil {
				return err
			}
			store := memory.New(filepath.Join(cfg.Orchestrator.BaseDir, args[0]))
			return runInspectREPL(store, args[0], c.OutOrStdout())
		},
		SilenceUsage: true,
	}
	return cmd
}

const inspectHelp = `commands:
  findings [n]   show the latest n key findings (default 10)
  errors [n]     show the latest n errors encountered (default 10)
  cwc            show the current working context
  history [n]    show the latest n chat turns (default 10)
  help           show this message
  exit           leave the REPL
`

// runInspectREPL drives a read-only command loop over a task's memory
// bank. It never calls any Store method that mutates files on disk.
func runInspectREPL(store *memory.Store, parentTaskID string, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      fmt.Sprintf("taskgraph(%s)> ", parentTaskID),
		HistoryFile: "",
	})
	if err != nil {
		return fmt.Errorf("inspect: init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(out, inspectHelp)

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(out, inspectHelp)
		case "findings":
			n := countArg(fields, 10)
			findings, err := store.GetLatestKeyFindings(n)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			for _, f := range findings {
				fmt.Fprintf(out, "- [%s] %s (%s)\n", f.ID, f.SourceStepNarrative, f.SourceToolName)
			}
		case "errors":
			n := countArg(fields, 10)
			errs, err := store.GetLatestErrorsEncountered(n)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			for _, e := range errs {
				fmt.Fprintf(out, "- [%s] %s: %s\n", e.ErrorID, e.SourceStepNarrative, e.ErrorMessage)
			}
		case "cwc":
			cwc, err := store.LoadCWC()
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "progress: %s\nnext objective: %s\n", cwc.SummaryOfProgress, cwc.NextObjective)
		case "history":
			n := countArg(fields, 10)
			turns, err := store.GetLatestChatHistory(n)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			for _, t := range turns {
				fmt.Fprintf(out, "[%s] %s\n", t.Role, t.Content)
			}
		default:
			fmt.Fprintf(out, "unknown command %q; type help\n", fields[0])
		}
	}
}

func countArg(fields []string, fallback int) int {
	if len(fields) < 2 {
		return fallback
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
