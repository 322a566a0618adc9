package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/sessions", cfg.SessionsDir)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 256, cfg.WebhookQueueSize)
	assert.Equal(t, int64(16<<20), cfg.MediaMaxBytes)
	assert.Equal(t, 3*time.Second, cfg.BulkDelayMin)
	assert.Equal(t, 8*time.Second, cfg.BulkDelayMax)
	assert.Equal(t, 4, cfg.RestoreWorkers)
	assert.Equal(t, 20*time.Second, cfg.ShutdownTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WEBHOOK_URL", "http://backend/hook")
	t.Setenv("BULK_DELAY_MIN", "1s")
	t.Setenv("BULK_DELAY_MAX", "2s")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://backend/hook", cfg.WebhookURL)
	assert.Equal(t, time.Second, cfg.BulkDelayMin)
	assert.Equal(t, 2*time.Second, cfg.BulkDelayMax)
}

func TestLoadRejectsInvertedDelays(t *testing.T) {
	v := New()
	v.Set("bulk_delay_min", "9s")

	_, err := Load(v)
	assert.ErrorContains(t, err, "bulk_delay_max")
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(""))
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("WEBHOOK_SECRET=from-file\n"), 0o644))
	t.Setenv("WEBHOOK_SECRET", "")
	require.NoError(t, os.Unsetenv("WEBHOOK_SECRET"))

	require.NoError(t, LoadEnvFile(path))
	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.WebhookSecret)
}
