package config

// builtinConfig holds the values tracepilot ships with when
// tracepilot.yaml is silent on a field. YAML values always take
// precedence; these exist only to give every field a sane value when the
// deploy directory's config file doesn't mention it at all.
func builtinConfig() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			GinMode:    "release",
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		LLMRPC: LLMRPCConfig{
			ListenAddr: "localhost:7070",
			Target:     "localhost:7070",
		},
		Observability: ObservabilityConfig{
			ServiceName:    "tracepilot",
			ServiceVersion: "dev",
			Environment:    "development",
			Insecure:       true,
		},
		Defaults: Defaults{
			Percentile:           95,
			HalfLifeHours:        168,
			IngestDedupWindowRaw: "5m",
		},
	}
}
