package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/embedsync/embedsync/internal/config"
	"github.com/embedsync/embedsync/internal/utils"
	"github.com/embedsync/embedsync/internal/version"
)

var (
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

var (
	flagDebug   bool
	flagLogFile string
)

var rootCmd = &cobra.Command{
	Use:     version.AppName,
	Short:   "Keep a vector index in sync with a directory of documents",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogger(); err != nil {
			return err
		}
		return bindConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		showHeader(cfg)

		app, err := newApp(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer app.Close()

		defer slog.Info("Bye!")
		if err := app.engine.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Also write logs to this file")

	rootCmd.Flags().StringP("watch-dir", "w", config.DefaultWatchDir, "Directory to watch for documents")
	rootCmd.Flags().DurationP("interval", "i", config.DefaultPollInterval, "Poll interval")
	rootCmd.Flags().StringP("extensions", "x", config.DefaultExtensions, "Comma separated list of document extensions")
	rootCmd.Flags().StringP("table", "t", config.DefaultTable, "Vector table name")
	rootCmd.Flags().StringP("model", "m", config.DefaultModel, "Embedding model identifier")
	rootCmd.Flags().BoolP("events", "e", false, "React to filesystem events between polls")
	rootCmd.Flags().String("state-db", "", "Path of the local index journal")
}

// bindConfig layers .env < environment < flags into viper.
func bindConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("watch_dir", config.DefaultWatchDir)
	viper.SetDefault("poll_interval", config.DefaultPollInterval)
	viper.SetDefault("file_extensions", config.DefaultExtensions)
	viper.SetDefault("documents_table", config.DefaultTable)
	viper.SetDefault("openai_base_url", config.DefaultBaseURL)
	viper.SetDefault("openai_model", config.DefaultModel)
	viper.SetDefault("embedding_dimensions", config.DefaultDimensions)
	viper.SetDefault("sync_workers", config.DefaultWorkers)
	viper.SetDefault("embed_batch_size", config.DefaultBatchSize)
	viper.SetDefault("max_retries", config.DefaultMaxRetries)
	viper.SetDefault("watch_events", false)
	viper.SetDefault("state_db", "")

	// flags win when explicitly set
	bindings := map[string]string{
		"watch_dir":       "watch-dir",
		"poll_interval":   "interval",
		"file_extensions": "extensions",
		"documents_table": "table",
		"openai_model":    "model",
		"watch_events":    "events",
		"state_db":        "state-db",
	}
	for key, flagName := range bindings {
		if flag := cmd.Flags().Lookup(flagName); flag != nil && flag.Changed {
			if err := viper.BindPFlag(key, flag); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildConfig() (*config.Config, error) {
	cfg := &config.Config{
		WatchDir:     viper.GetString("watch_dir"),
		Extensions:   config.ParseExtensions(viper.GetString("file_extensions")),
		StateDB:      viper.GetString("state_db"),
		PollInterval: viper.GetDuration("poll_interval"),
		Workers:      viper.GetInt("sync_workers"),
		WatchEvents:  viper.GetBool("watch_events"),
		APIKey:       viper.GetString("openai_api_key"),
		BaseURL:      viper.GetString("openai_base_url"),
		Model:        viper.GetString("openai_model"),
		Dimensions:   viper.GetInt("embedding_dimensions"),
		BatchSize:    viper.GetInt("embed_batch_size"),
		DatabaseURL:  viper.GetString("database_url"),
		Table:        viper.GetString("documents_table"),
		MaxRetries:   viper.GetInt("max_retries"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger() error {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}

	terminalHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	handler := slog.Handler(terminalHandler)
	if flagLogFile != "" {
		if err := utils.EnsureParent(flagLogFile); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})
		handler = utils.NewMultiLogHandler(terminalHandler, fileHandler)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func showHeader(cfg *config.Config) {
	fmt.Fprintf(os.Stderr, "%s %s\n", cyan("embedsync"), version.Short())
	fmt.Fprintf(os.Stderr, "watching %s every %s → table %s (%s, %d dims)\n\n",
		green(cfg.WatchDir), cfg.PollInterval, green(cfg.Table), cfg.Model, cfg.Dimensions)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}
