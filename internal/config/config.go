package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/embedsync/embedsync/internal/utils"
)

const (
	DefaultWatchDir     = "./docs"
	DefaultTable        = "documents"
	DefaultModel        = "text-embedding-3-small"
	DefaultBaseURL      = "https://api.openai.com"
	DefaultDimensions   = 1536
	DefaultPollInterval = 5 * time.Minute
	DefaultExtensions   = ".md,.txt"
	DefaultWorkers      = 4
	DefaultBatchSize    = 16
	DefaultMaxRetries   = 3

	// journal lives under the watch dir unless overridden
	stateDirName  = ".embedsync"
	stateFileName = "journal.db"
)

var (
	ErrMissingAPIKey      = errors.New("config: OPENAI_API_KEY is required")
	ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required")
)

// Config is the full configuration surface, loaded once at process start
// from .env, environment variables and flags.
type Config struct {
	// filesystem
	WatchDir   string
	Extensions []string
	StateDB    string

	// scheduling
	PollInterval time.Duration
	Workers      int
	WatchEvents  bool

	// embeddings api
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int

	// vector store
	DatabaseURL string
	Table       string

	MaxRetries int
}

// Validate checks for fatal configuration errors and fills derived defaults.
// A missing watch directory is not fatal; it is treated as an empty snapshot
// at runtime.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}

	watchDir, err := utils.ResolvePath(c.WatchDir)
	if err != nil {
		return fmt.Errorf("config: invalid watch dir %q: %w", c.WatchDir, err)
	}
	c.WatchDir = watchDir

	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Dimensions <= 0 {
		c.Dimensions = DefaultDimensions
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("config: poll interval %s is below 1s", c.PollInterval)
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if len(c.Extensions) == 0 {
		c.Extensions = ParseExtensions(DefaultExtensions)
	}
	if c.StateDB == "" {
		c.StateDB = filepath.Join(c.WatchDir, stateDirName, stateFileName)
	}

	return nil
}

// ParseExtensions splits a comma separated extension list, normalizing each
// entry to a lowercase ".ext" form.
func ParseExtensions(s string) []string {
	parts := strings.Split(s, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, ".") {
			p = "." + p
		}
		exts = append(exts, p)
	}
	return exts
}
