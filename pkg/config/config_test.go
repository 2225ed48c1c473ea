package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_FallsBackToBuiltinWhenConfigFileAbsent(t *testing.T) {
	ctx := context.Background()
	cfg, err := Initialize(ctx, t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, float64(95), cfg.Defaults.Percentile)
}

func TestInitialize_YAMLOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
server:
  listen_addr: ":9090"
observability:
  otlp_endpoint: "collector:4318"
defaults:
  percentile: 99
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "collector:4318", cfg.Observability.OTLPEndpoint)
	assert.Equal(t, float64(99), cfg.Defaults.Percentile)

	// Fields the override didn't mention keep their built-in value.
	assert.Equal(t, "localhost:7070", cfg.LLMRPC.Target)
	assert.Equal(t, float64(168), cfg.Defaults.HalfLifeHours)
}

func TestInitialize_ExpandsEnvVarsInYAML(t *testing.T) {
	t.Setenv("TRACEPILOT_REDIS_URL", "redis://prod-redis:6379/2")
	dir := t.TempDir()
	writeConfigFile(t, dir, `
redis:
  url: "${TRACEPILOT_REDIS_URL}"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "redis://prod-redis:6379/2", cfg.Redis.URL)
}

func TestInitialize_RejectsInvalidDedupWindow(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
defaults:
  ingest_dedup_window: "not-a-duration"
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestValidate_RejectsPercentileOutOfRange(t *testing.T) {
	cfg := builtinConfig()
	cfg.Defaults.Percentile = 150
	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defaults.percentile")
}

func writeConfigFile(t *testing.T, dir, contents string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, "tracepilot.yaml"), []byte(contents), 0o644)
	require.NoError(t, err)
}
