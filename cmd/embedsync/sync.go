package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single synchronization pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			app, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.engine.RunOnce(cmd.Context())
		},
	}
}
