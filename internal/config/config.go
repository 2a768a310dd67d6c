package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string
	SQLitePath  string // embedded fallback store when DATABASE_URL is unset

	// Thread resolution: "pair" dedupes one thread per participant pair,
	// "pair_subject" allows one thread per pair and subject.
	ThreadResolution string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting

	// CORS
	AllowedOrigins []string

	// Analytics weights for the oversight proficiency score
	AnalyticsResponseWeight   float64
	AnalyticsEngagementWeight float64
	AnalyticsDecayMinutes     float64
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		SQLitePath:       getEnv("SQLITE_PATH", "chamberlink.db"),
		ThreadResolution: getEnv("THREAD_RESOLUTION", "pair"),

		AnalyticsResponseWeight:   getEnvFloat("ANALYTICS_RESPONSE_WEIGHT", 0.7),
		AnalyticsEngagementWeight: getEnvFloat("ANALYTICS_ENGAGEMENT_WEIGHT", 0.3),
		AnalyticsDecayMinutes:     getEnvFloat("ANALYTICS_DECAY_MINUTES", 14.4),
	}

	cfg.RateLimitWhitelist = splitList(os.Getenv("RATE_LIMIT_WHITELIST"))
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	if cfg.ThreadResolution != "pair" && cfg.ThreadResolution != "pair_subject" {
		panic("THREAD_RESOLUTION must be pair or pair_subject")
	}

	// In production, require database and redis URLs
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func splitList(value string) []string {
	var out []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		panic(key + " must be a number")
	}
	return f
}
