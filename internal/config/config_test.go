package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultBatchSize, cfg.Engine.BatchSize)
	assert.Equal(t, engine.DefaultDebounce, cfg.Engine.Debounce)
	assert.Equal(t, ":8089", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, "bundle", cfg.Presets.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  batch_size: 1000
  debounce:
    small: 10ms
server:
  addr: ":9000"
presets:
  driver: sqlite
  path: /tmp/presets.db
log:
  level: debug
`), 0o644))
	t.Setenv("LOGLAYOUT_SERVER_ADDR", ":9100")
	t.Setenv("LOGLAYOUT_ENGINE_DEBOUNCE_LARGE", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Engine.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.Engine.Debounce.Small)
	assert.Equal(t, time.Second, cfg.Engine.Debounce.Large)
	assert.Equal(t, engine.DefaultDebounce.Medium, cfg.Engine.Debounce.Medium)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Presets.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts := cfg.EngineOptions(nil, zerolog.Nop())
	assert.Equal(t, 1000, opts.BatchSize)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
