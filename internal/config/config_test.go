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
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "sql", cfg.DocStore)
	assert.Empty(t, cfg.SiteID)
	assert.Equal(t, 5*time.Second, cfg.ProgressFlushInterval)
	assert.Equal(t, 30*time.Second, cfg.SessionIdleTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3010"}, cfg.CORSOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SITE_ID", "lab-2")
	t.Setenv("PROGRESS_FLUSH_INTERVAL", "2s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "lab-2", cfg.SiteID)
	assert.Equal(t, 2*time.Second, cfg.ProgressFlushInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("http_addr: \":7070\"\ndoc_store: memory\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.DocStore)
}

func TestOnlineModeNeedsSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MODE", "online")
	_, err := Load()
	assert.ErrorIs(t, err, ErrInsecureSecret)

	t.Setenv("AUTH_HMAC_SECRET", "prod-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://quiz.mindengage.ai"}, cfg.CORSOrigins)
}

func TestUnknownMode(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MODE", "hybrid")
	_, err := Load()
	assert.Error(t, err)
}
