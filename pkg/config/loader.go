package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors tracepilot.yaml's on-disk shape. Pointer fields
// distinguish "unset" from "zero value" so merging over builtinConfig
// doesn't clobber a deliberate false/0 with mergo's WithOverride.
type yamlConfig struct {
	Server        *ServerConfig        `yaml:"server"`
	Redis         *RedisConfig         `yaml:"redis"`
	LLMRPC        *LLMRPCConfig        `yaml:"llmrpc"`
	Observability *ObservabilityConfig `yaml:"observability"`
	Defaults      *Defaults            `yaml:"defaults"`
}

// Initialize loads tracepilot.yaml from configDir, expands environment
// variable references, merges it over the built-in defaults, validates
// the result, and returns a ready-to-use Config.
//
// A missing tracepilot.yaml is not an error: Initialize falls back to
// builtinConfig entirely, so tracepilot runs with sane defaults out of
// the box and only needs a config file for overrides.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("loading configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("config: initialize: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	log.Info("configuration loaded",
		"listen_addr", cfg.Server.ListenAddr,
		"llmrpc_target", cfg.LLMRPC.Target,
		"otlp_endpoint", cfg.Observability.OTLPEndpoint)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	builtin := builtinConfig()

	overlay, err := loadYAML(configDir)
	if err != nil {
		return nil, err
	}

	merged := builtin
	if overlay.Server != nil {
		if err := mergo.Merge(&merged.Server, overlay.Server, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge server config: %w", err)
		}
	}
	if overlay.Redis != nil {
		if err := mergo.Merge(&merged.Redis, overlay.Redis, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge redis config: %w", err)
		}
	}
	if overlay.LLMRPC != nil {
		if err := mergo.Merge(&merged.LLMRPC, overlay.LLMRPC, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge llmrpc config: %w", err)
		}
	}
	if overlay.Observability != nil {
		if err := mergo.Merge(&merged.Observability, overlay.Observability, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge observability config: %w", err)
		}
	}
	if overlay.Defaults != nil {
		if err := mergo.Merge(&merged.Defaults, overlay.Defaults, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge defaults: %w", err)
		}
	}

	dedupWindow, err := time.ParseDuration(merged.Defaults.IngestDedupWindowRaw)
	if err != nil {
		return nil, fmt.Errorf("defaults.ingest_dedup_window %q: %w", merged.Defaults.IngestDedupWindowRaw, err)
	}
	merged.Defaults.IngestDedupWindow = dedupWindow
	merged.configDir = configDir

	return &merged, nil
}

func loadYAML(configDir string) (*yamlConfig, error) {
	var cfg yamlConfig

	path := filepath.Join(configDir, "tracepilot.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	return &cfg, nil
}
