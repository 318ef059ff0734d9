package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Pool.MaxWorkers, cfg.Pool.MaxWorkers)
	assert.Equal(t, Default().Budget.PerRunUSD, cfg.Budget.PerRunUSD)
}

func TestLoadMergesOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
budget:
  per_run_usd: 1.5
quality:
  gates: ["test"]
pool:
  max_workers: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.Budget.PerRunUSD)
	assert.Equal(t, Default().Budget.PerDayUSD, cfg.Budget.PerDayUSD, "unset fields keep their default")
	assert.Equal(t, []string{"test"}, cfg.Quality.Gates)
	assert.Equal(t, 8, cfg.Pool.MaxWorkers)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "budget: [not a mapping")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesConsoleColorAndLogLevel(t *testing.T) {
	t.Setenv("CORTEXOS_CONSOLE_COLOR", "false")
	t.Setenv("CORTEXOS_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, cfg.Console.EnableColor)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRejectsBadPoolConfig(t *testing.T) {
	cfg := Default()
	cfg.Pool.MaxWorkers = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pool.Mode = "sideways"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadBudgetAndQuality(t *testing.T) {
	cfg := Default()
	cfg.Budget.SafetyMargin = 0.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Quality.Complexity = 0
	assert.Error(t, cfg.Validate())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
