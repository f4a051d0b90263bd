package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/embedsync/embedsync/internal/embed"
	"github.com/embedsync/embedsync/internal/vecstore"
)

func init() {
	rootCmd.AddCommand(newSearchCmd())
}

func newSearchCmd() *cobra.Command {
	var limit int
	var threshold float64

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a similarity search against the vector table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			store, err := vecstore.New(ctx, &vecstore.Config{
				DSN:        cfg.DatabaseURL,
				Table:      cfg.Table,
				Dimensions: cfg.Dimensions,
			})
			if err != nil {
				return fmt.Errorf("connect vector store: %w", err)
			}
			defer store.Close()

			embedder := embed.New(&embed.Config{
				BaseURL:    cfg.BaseURL,
				APIKey:     cfg.APIKey,
				Model:      cfg.Model,
				Dimensions: cfg.Dimensions,
			})

			vectors, err := embedder.Embed(ctx, []string{args[0]})
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}

			matches, err := store.Match(ctx, vectors[0], threshold, limit)
			if err != nil {
				return err
			}

			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matches")
				return nil
			}

			for _, m := range matches {
				path, _ := m.Metadata["path"].(string)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green(fmt.Sprintf("%.3f", m.Similarity)), cyan(path))
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", snippet(m.Content, 160))
			}
			return nil
		},
	}

	searchCmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")
	searchCmd.Flags().Float64VarP(&threshold, "threshold", "T", 0.3, "Minimum cosine similarity")

	return searchCmd
}

func snippet(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
