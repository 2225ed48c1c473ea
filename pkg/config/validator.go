package config

import "fmt"

// Validate checks that a merged Config has every value an already-running
// process would need, returning a *ValidationError naming the first
// offending field.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddr == "" {
		return NewValidationError("server.listen_addr", ErrMissingRequiredField)
	}
	if cfg.LLMRPC.ListenAddr == "" {
		return NewValidationError("llmrpc.listen_addr", ErrMissingRequiredField)
	}
	if cfg.LLMRPC.Target == "" {
		return NewValidationError("llmrpc.target", ErrMissingRequiredField)
	}
	if cfg.Redis.URL == "" {
		return NewValidationError("redis.url", ErrMissingRequiredField)
	}
	if cfg.Defaults.Percentile <= 0 || cfg.Defaults.Percentile >= 100 {
		return NewValidationError("defaults.percentile", fmt.Errorf("must be in (0, 100), got %v", cfg.Defaults.Percentile))
	}
	if cfg.Defaults.HalfLifeHours <= 0 {
		return NewValidationError("defaults.half_life_hours", fmt.Errorf("must be positive, got %v", cfg.Defaults.HalfLifeHours))
	}
	if cfg.Defaults.IngestDedupWindow <= 0 {
		return NewValidationError("defaults.ingest_dedup_window", fmt.Errorf("must be positive, got %v", cfg.Defaults.IngestDedupWindow))
	}
	return nil
}
