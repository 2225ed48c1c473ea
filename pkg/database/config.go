package database

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadConfigFromEnv builds a Config from TRACEPILOT_DB_* environment
// variables, applying sane pooling defaults when unset.
func LoadConfigFromEnv() Config {
	return Config{
		Host:     getEnvOrDefault("TRACEPILOT_DB_HOST", "localhost"),
		Port:     getEnvIntOrDefault("TRACEPILOT_DB_PORT", 5432),
		User:     getEnvOrDefault("TRACEPILOT_DB_USER", "tracepilot"),
		Password: getEnvOrDefault("TRACEPILOT_DB_PASSWORD", ""),
		Database: getEnvOrDefault("TRACEPILOT_DB_NAME", "tracepilot"),
		SSLMode:  getEnvOrDefault("TRACEPILOT_DB_SSLMODE", "disable"),

		MaxOpenConns:    getEnvIntOrDefault("TRACEPILOT_DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvIntOrDefault("TRACEPILOT_DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDurationOrDefault("TRACEPILOT_DB_CONN_MAX_LIFETIME", 30*time.Minute),
		ConnMaxIdleTime: getEnvDurationOrDefault("TRACEPILOT_DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
	}
}

// Validate checks that required fields are set before opening a connection.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database: host is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("database: port must be positive")
	}
	if c.User == "" {
		return fmt.Errorf("database: user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database: name is required")
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDurationOrDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
