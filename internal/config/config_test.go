package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "US", cfg.Providers.DefaultRegion)
	assert.Equal(t, 10*time.Second, cfg.Providers.ProviderTimeout())
	assert.Equal(t, "https://api.peopledatalabs.com/v5", cfg.Providers.PDL.BaseURL)
	assert.InDelta(t, 0.03, cfg.Providers.PDL.CostPerCall, 0.001)
	assert.InDelta(t, 0.004, cfg.Providers.EmailCheck.CostPerCall, 0.0001)
	assert.Equal(t, []string{"emailcheck", "pdl"}, cfg.Waterfall.Order["email"])
	assert.Equal(t, []string{"pdl"}, cfg.Waterfall.Order["phone"])
	assert.Equal(t, 10, cfg.Waterfall.CorroborationBoost)
	assert.InDelta(t, 0.25, cfg.Waterfall.MaxCostUSD, 0.001)
	assert.Equal(t, 200, cfg.Refresh.MaxPerRun)
	assert.Equal(t, 8, cfg.Refresh.MaxWorkers)
	assert.Equal(t, 12, cfg.Roster.MaxMembers)
	assert.Equal(t, "rerun", cfg.Queue.Name)
	assert.Equal(t, 4, cfg.Queue.Concurrency)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
waterfall:
  corroboration_boost: 5
refresh:
  max_per_run: 50
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Waterfall.CorroborationBoost)
	assert.Equal(t, 50, cfg.Refresh.MaxPerRun)
	// Defaults still apply for unset values
	assert.Equal(t, 8, cfg.Refresh.MaxWorkers)
	assert.Equal(t, 12, cfg.Roster.MaxMembers)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ROSTER_STORE_DRIVER", "postgres")
	t.Setenv("ROSTER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("ROSTER_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}
