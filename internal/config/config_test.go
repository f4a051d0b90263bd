package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		WatchDir:     t.TempDir(),
		APIKey:       "sk-test",
		DatabaseURL:  "postgres://localhost:5432/embedsync",
		PollInterval: time.Minute,
	}
}

func TestConfigValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig(t)
	cfg.APIKey = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)

	cfg = validConfig(t)
	cfg.DatabaseURL = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingDatabaseURL)
}

func TestConfigValidate_Defaults(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultTable, cfg.Table)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultDimensions, cfg.Dimensions)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, []string{".md", ".txt"}, cfg.Extensions)
	assert.Equal(t, filepath.Join(cfg.WatchDir, ".embedsync", "journal.db"), cfg.StateDB)
}

func TestConfigValidate_PollIntervalTooSmall(t *testing.T) {
	cfg := validConfig(t)
	cfg.PollInterval = 100 * time.Millisecond
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_MissingWatchDirIsNotFatal(t *testing.T) {
	cfg := validConfig(t)
	cfg.WatchDir = filepath.Join(t.TempDir(), "does-not-exist-yet")
	assert.NoError(t, cfg.Validate())
}

func TestParseExtensions(t *testing.T) {
	assert.Equal(t, []string{".md", ".txt"}, ParseExtensions(".md,.txt"))
	assert.Equal(t, []string{".md", ".rst"}, ParseExtensions(" md , RST "))
	assert.Empty(t, ParseExtensions(""))
}
