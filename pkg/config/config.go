// Package config loads tracepilot's YAML application configuration,
// expands environment variable references, merges it over built-in
// defaults, and validates the result. Database connection settings are
// loaded separately by pkg/database.LoadConfigFromEnv, matching the
// split the teacher's own cmd/tarsy/main.go uses between YAML-driven
// application config and env-driven infrastructure config.
package config

import "time"

// Config is the fully resolved application configuration returned by
// Initialize. It is read-only after construction.
type Config struct {
	configDir string

	Server        ServerConfig
	Redis         RedisConfig
	LLMRPC        LLMRPCConfig
	Observability ObservabilityConfig
	Defaults      Defaults
}

// ConfigDir returns the directory Initialize loaded tracepilot.yaml from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ServerConfig holds the HTTP API's listen settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	GinMode    string `yaml:"gin_mode"`
}

// RedisConfig holds connection settings for pkg/cache.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LLMRPCConfig holds the grpc transport address pkg/llmrpc binds to
// (server side) and dials (executor client side). Both sides share one
// address since the core process and the executor run in the same host,
// matching pkg/llmrpc/conn.go's plaintext, same-process assumption.
type LLMRPCConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Target     string `yaml:"target"`
}

// ObservabilityConfig holds pkg/observability's OTLP trace exporter
// settings and pkg/metrics' service identity.
type ObservabilityConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// Defaults holds system-wide default values applied when a request
// doesn't specify them, e.g. GET /v1/tasks's percentile and
// half_life_hours query parameters (spec.md §6).
type Defaults struct {
	Percentile           float64       `yaml:"percentile"`
	HalfLifeHours        float64       `yaml:"half_life_hours"`
	IngestDedupWindow    time.Duration `yaml:"-"`
	IngestDedupWindowRaw string        `yaml:"ingest_dedup_window"`
}
