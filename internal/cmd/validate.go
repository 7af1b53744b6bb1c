package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskgraph/taskgraph/internal/capabilities"
	"github.com/taskgraph/taskgraph/internal/planner"
)

func newValidateCommand() *cobra.Command {
	var templatesDir string

	cmd := &cobra.Command{
		Use:   "validate <capabilities.json>",
		Short: "Validate a capabilities file and, optionally, a plan-template directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			if err := capabilities.Validate(data); err != nil {
				fmt.Fprintf(out, "✗ %s failed schema validation: %v\n", args[0], err)
				return err
			}

			reg, err := capabilities.Parse(data, args[0])
			if err != nil {
				fmt.Fprintf(out, "✗ %s: %v\n", args[0], err)
				return err
			}
			fmt.Fprintf(out, "✓ %s is valid: %d role(s)\n", args[0], len(reg.KnownAgentRoles()))

			if templatesDir == "" {
				return nil
			}

			count, err := planner.ValidateTemplateDirectory(templatesDir)
			if err != nil {
				fmt.Fprintf(out, "✗ %s failed validation: %v\n", templatesDir, err)
				return err
			}
			fmt.Fprintf(out, "✓ %s is valid: %d template(s)\n", templatesDir, count)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&templatesDir, "templates", "", "directory of plan template JSON files to validate alongside the capabilities file")
	return cmd
}
