package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the client configuration
type Config struct {
	Environment  string
	ServerURL    string
	RedisURL     string
	RedisPrefix  string
	PollInterval time.Duration
	CacheTTL     time.Duration
	HTTPTimeout  time.Duration
	LogLevel     string
	OTLPEndpoint string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	pollInterval, err := getDurationEnv("SESSION_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_POLL_INTERVAL: %w", err)
	}

	cacheTTL, err := getDurationEnv("CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	httpTimeout, err := getDurationEnv("HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	return &Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		ServerURL:    getEnv("MAI_SERVER_URL", "http://localhost:8080"),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisPrefix:  getEnv("REDIS_PREFIX", "mai:session:"),
		PollInterval: pollInterval,
		CacheTTL:     cacheTTL,
		HTTPTimeout:  httpTimeout,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv parses a duration env var, also accepting a bare number of
// seconds for compatibility with older deployments.
func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}
