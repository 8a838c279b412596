package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the memory chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	DatabaseURL string

	LLMMode       string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	LLMTimeout    time.Duration

	ExtractionWindow   int
	MemoryTopLimit     int
	SummaryThreshold   int
	ContextRecentLimit int
	BackgroundTimeout  time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "mnemo"),
		AllowAnyOrigin:     false,
		DatabaseURL:        trimmedEnv("DATABASE_URL"),
		LLMMode:            envOrDefault("LLM_MODE", "auto"),
		OpenAIAPIKey:       trimmedEnv("OPENAI_API_KEY"),
		OpenAIBaseURL:      trimmedEnv("OPENAI_BASE_URL"),
		OpenAIModel:        envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		LLMTimeout:         30 * time.Second,
		ExtractionWindow:   8,
		MemoryTopLimit:     10,
		SummaryThreshold:   30,
		ContextRecentLimit: 20,
		BackgroundTimeout:  time.Minute,
		ShutdownTimeout:    15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTimeout, err = durationFromEnv("LLM_TIMEOUT", cfg.LLMTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BackgroundTimeout, err = durationFromEnv("APP_BACKGROUND_TIMEOUT", cfg.BackgroundTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ExtractionWindow, err = intFromEnv("MEMORY_EXTRACTION_WINDOW", cfg.ExtractionWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryTopLimit, err = intFromEnv("MEMORY_TOP_LIMIT", cfg.MemoryTopLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryThreshold, err = intFromEnv("SUMMARY_THRESHOLD", cfg.SummaryThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextRecentLimit, err = intFromEnv("CONTEXT_RECENT_LIMIT", cfg.ContextRecentLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.ExtractionWindow <= 0 {
		return Config{}, fmt.Errorf("MEMORY_EXTRACTION_WINDOW must be positive")
	}
	if cfg.MemoryTopLimit <= 0 {
		return Config{}, fmt.Errorf("MEMORY_TOP_LIMIT must be positive")
	}
	if cfg.SummaryThreshold <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_THRESHOLD must be positive")
	}
	if cfg.ContextRecentLimit <= 0 {
		return Config{}, fmt.Errorf("CONTEXT_RECENT_LIMIT must be positive")
	}
	if cfg.LLMTimeout < time.Second {
		return Config{}, fmt.Errorf("LLM_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
