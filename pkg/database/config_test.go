package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "tracepilot", cfg.Database)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_RequiresHostPortUserDatabase(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Validate())

	cfg = Config{Host: "localhost", Port: 5432, User: "u", Database: "d"}
	assert.NoError(t, cfg.Validate())

	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestGetEnvIntOrDefault_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("TRACEPILOT_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvIntOrDefault("TRACEPILOT_TEST_INT", 7))

	t.Setenv("TRACEPILOT_TEST_INT", "42")
	assert.Equal(t, 42, getEnvIntOrDefault("TRACEPILOT_TEST_INT", 7))
}

func TestGetEnvDurationOrDefault_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("TRACEPILOT_TEST_DURATION", "not-a-duration")
	assert.Equal(t, 2*time.Second, getEnvDurationOrDefault("TRACEPILOT_TEST_DURATION", 2*time.Second))

	t.Setenv("TRACEPILOT_TEST_DURATION", "10s")
	assert.Equal(t, 10*time.Second, getEnvDurationOrDefault("TRACEPILOT_TEST_DURATION", 2*time.Second))
}
