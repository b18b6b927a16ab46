package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromWritesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "groq", cfg.Classifier.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Classifier.Model)
	assert.Equal(t, 30*time.Second, cfg.Classifier.Timeout())
	assert.Equal(t, 0.4, cfg.Router.ThresholdLow)
	assert.Equal(t, 0.7, cfg.Router.ThresholdHigh)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout())
	assert.Equal(t, 20, cfg.Session.HistoryWindow)

	// First load materializes a starter file.
	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, err)
}

func TestLoadFromReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
log_level: debug
server:
  address: ":9090"
router:
  threshold_high: 0.8
session:
  history_window: 10
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 0.8, cfg.Router.ThresholdHigh)
	// Unset keys keep their defaults.
	assert.Equal(t, 0.4, cfg.Router.ThresholdLow)
	assert.Equal(t, 10, cfg.Session.HistoryWindow)
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SALESMIND_CLASSIFIER_API_KEY", "gsk_test")
	t.Setenv("SALESMIND_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "gsk_test", cfg.Classifier.APIKey)
	assert.Equal(t, "warn", cfg.LogLevel)
}
