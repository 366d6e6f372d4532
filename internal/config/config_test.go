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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "imaging", cfg.Backend.Name)
	assert.Equal(t, 85, cfg.Backend.Quality)
	assert.Equal(t, "localhost:6379", cfg.Queue.RedisAddr)
	assert.Equal(t, 5*time.Minute, cfg.Lock.TTL)
	assert.True(t, cfg.Storage.Enabled)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  name: std
  quality: 70
queue:
  name: images
lock:
  ttl: 30s
`), 0o644))

	t.Setenv("PIXELMOD_QUEUE_NAME", "from-env")
	t.Setenv("PIXELMOD_WORKER_CONCURRENCY", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "std", cfg.Backend.Name)
	assert.Equal(t, 70, cfg.Backend.Quality)
	assert.Equal(t, "southeast", cfg.Backend.Gravity)
	assert.Equal(t, "from-env", cfg.Queue.Name)
	assert.Equal(t, 9, cfg.Worker.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
