package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: payments.db
matching:
  weights:
    name: 0.3
    company: 0.3
    account: 0.4
  thresholds:
    high: 0.7
    medium: 0.55
    low: 0.45
  batch_limit: 100
  order_fallback: true
api:
  port: 9090
  allowed_origins:
    - http://localhost:3000
observability:
  logging:
    level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "payments.db", cfg.Storage.DatabasePath)
	assert.InDelta(t, 0.3, cfg.Matching.Weights.Name, 1e-9)
	assert.InDelta(t, 0.4, cfg.Matching.Weights.Account, 1e-9)
	assert.InDelta(t, 0.7, cfg.Matching.Thresholds.High, 1e-9)
	assert.Equal(t, 100, cfg.Matching.BatchLimit)
	assert.True(t, cfg.Matching.OrderFallback)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.API.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: payments.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Unset matching block falls back to production values
	assert.InDelta(t, 0.35, cfg.Matching.Weights.Name, 1e-9)
	assert.InDelta(t, 0.25, cfg.Matching.Weights.Company, 1e-9)
	assert.InDelta(t, 0.40, cfg.Matching.Weights.Account, 1e-9)
	assert.InDelta(t, 0.60, cfg.Matching.Thresholds.High, 1e-9)
	assert.InDelta(t, 0.50, cfg.Matching.Thresholds.Medium, 1e-9)
	assert.InDelta(t, 0.40, cfg.Matching.Thresholds.Low, 1e-9)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("PAYMENT_DB_PATH", "/data/payments.db")
	path := writeConfig(t, `
storage:
  database_path: ${PAYMENT_DB_PATH}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/payments.db", cfg.Storage.DatabasePath)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PAYMENT_DB_PATH", "env.db")
	t.Setenv("MATCH_BATCH_LIMIT", "25")
	t.Setenv("MATCH_ORDER_FALLBACK", "true")
	t.Setenv("API_PORT", "9999")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := LoadFromEnv()
	assert.Equal(t, "env.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 25, cfg.Matching.BatchLimit)
	assert.True(t, cfg.Matching.OrderFallback)
	assert.Equal(t, 9999, cfg.API.Port)
	assert.Equal(t, "warn", cfg.Observability.Logging.Level)

	// Env-only config still carries the production matching defaults
	assert.InDelta(t, 0.40, cfg.Matching.Weights.Account, 1e-9)
}

func TestLoadOrEnvWithPathFallsBack(t *testing.T) {
	cfg := LoadOrEnvWithPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, cfg)
	assert.Equal(t, "payment_match.db", cfg.Storage.DatabasePath)
}
