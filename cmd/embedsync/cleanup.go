package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/embedsync/embedsync/internal/vecstore"
)

func init() {
	rootCmd.AddCommand(newCleanupCmd())
}

func newCleanupCmd() *cobra.Command {
	var yes bool
	var dropState bool

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every row from the vector table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			if !yes {
				return fmt.Errorf("refusing to purge table %q without --yes", cfg.Table)
			}

			store, err := vecstore.New(ctx, &vecstore.Config{
				DSN:        cfg.DatabaseURL,
				Table:      cfg.Table,
				Dimensions: cfg.Dimensions,
			})
			if err != nil {
				return fmt.Errorf("connect vector store: %w", err)
			}
			defer store.Close()

			count, err := store.Count(ctx)
			if err != nil {
				return err
			}
			if count == 0 {
				slog.Info("table already empty", "table", cfg.Table)
			} else {
				removed, err := store.Purge(ctx)
				if err != nil {
					return err
				}
				slog.Info("purged table", "table", cfg.Table, "rows", removed)
			}

			// the journal must go with the remote rows, or the next sync
			// would treat every document as already indexed
			if dropState {
				if err := os.Remove(cfg.StateDB); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove journal: %w", err)
				}
				slog.Info("removed local journal", "path", cfg.StateDB)
			}
			return nil
		},
	}

	cleanupCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the purge")
	cleanupCmd.Flags().BoolVar(&dropState, "state", true, "Also remove the local index journal")

	return cleanupCmd
}
