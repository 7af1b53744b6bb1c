package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskgraph/taskgraph/internal/config"
	"github.com/taskgraph/taskgraph/internal/models"
	"github.com/taskgraph/taskgraph/internal/taskindex"
)

func newListCommand(configPath, envPath *string) *cobra.Command {
	var status string
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks known to the catalog, optionally filtered by status",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, *envPath)
			if err != nil {
				return err
			}
			if cfg.Orchestrator.CatalogDBPath == "" {
				return fmt.Errorf("list: orchestrator.catalog_db_path is not configured")
			}

			store, err := taskindex.Open(cfg.Orchestrator.CatalogDBPath)
			if err != nil {
				return fmt.Errorf("list: open catalog: %w", err)
			}
			defer store.Close()

			if rebuild {
				n, err := store.Rebuild(context.Background(), cfg.Orchestrator.BaseDir)
				if err != nil {
					return fmt.Errorf("list: rebuild catalog: %w", err)
				}
				fmt.Fprintf(c.OutOrStdout(), "rebuilt catalog from %d task(s)\n", n)
			}

			rows, err := store.List(context.Background(), models.Status(status))
			if err != nil {
				return fmt.Errorf("list: query catalog: %w", err)
			}
			for _, r := range rows {
				fmt.Fprintf(c.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", r.ParentTaskID, r.Mode, r.Status, r.UpdatedAt, r.TaskDir)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by task status (e.g. COMPLETED, FAILED_EXECUTION)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild the catalog from on-disk task state before listing")
	return cmd
}
