package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
// A .env file is read by cmd/server before Load is called.
type Config struct {
	Port        string
	Environment string

	LogLevel string
	LogFile  string

	DatabaseURL string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret string

	// Feed tunables
	CooldownWindow time.Duration // posts viewed within this window are suppressed
	ViewBucket     time.Duration // renders within one bucket collapse to one view
	DefaultLimit   int
	MaxLimit       int

	// Page cache
	CacheStaleWindow time.Duration // max age before a cached page expires
	FetchTimeout     time.Duration // applied to the underlying feed fetch

	// Hosted auth service
	VerificationBaseURL string

	// Tracing
	OTLPEndpoint   string
	TracingEnabled bool
	SamplingRate   float64
}

// Load reads configuration from the environment, applying defaults.
// JWT_SECRET is the only hard requirement.
func Load() (*Config, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8787"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  getEnvOrDefault("LOG_FILE", "server.log"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: jwtSecret,

		CooldownWindow: getEnvDuration("FEED_COOLDOWN_WINDOW", 24*time.Hour),
		ViewBucket:     getEnvDuration("VIEW_BUCKET_INTERVAL", time.Minute),
		DefaultLimit:   getEnvInt("FEED_DEFAULT_LIMIT", 20),
		MaxLimit:       getEnvInt("FEED_MAX_LIMIT", 50),

		CacheStaleWindow: getEnvDuration("FEED_CACHE_STALE_WINDOW", 5*time.Minute),
		FetchTimeout:     getEnvDuration("FEED_FETCH_TIMEOUT", 10*time.Second),

		VerificationBaseURL: getEnvOrDefault("VERIFICATION_BASE_URL", "https://auth.klicktape.com"),

		OTLPEndpoint:   getEnvOrDefault("OTLP_ENDPOINT", "localhost:4318"),
		TracingEnabled: os.Getenv("TRACING_ENABLED") == "true",
		SamplingRate:   getEnvFloat("TRACING_SAMPLING_RATE", 0.1),
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
