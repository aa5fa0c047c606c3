package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL   string
	ContentDir string

	// EntryChapter overrides the default entry chapter (the
	// lexicographically first chapter id) when non-empty.
	EntryChapter string

	// ProgressTTL is how long idle progress records live in Redis. Zero
	// keeps them forever.
	ProgressTTL time.Duration

	// EventTTL is how long undrained story-event queues live.
	EventTTL time.Duration

	// AllowInvalidContent lets the API start even when validation reports
	// defects. For authoring environments only.
	AllowInvalidContent bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		LogLevel:            parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:            getEnv("REDIS_URL", "localhost:6379"),
		ContentDir:          getEnv("CONTENT_DIR", "./data/chapters"),
		EntryChapter:        getEnv("ENTRY_CHAPTER", ""),
		AllowInvalidContent: strings.EqualFold(getEnv("ALLOW_INVALID_CONTENT", "false"), "true"),
	}

	var err error
	if cfg.ProgressTTL, err = parseDuration("PROGRESS_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.EventTTL, err = parseDuration("EVENT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return d, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
