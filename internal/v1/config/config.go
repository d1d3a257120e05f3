// Package config validates environment configuration at startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration.
type Config struct {
	// Required variables
	DatabaseURL string
	RedisURL    string
	Port        string

	// Optional variables with defaults
	AvatarDir  string
	ArchiveDir string
	ShareDir   string
	SiteRoot   string
	ExpireDays int

	DevelopmentMode bool
	AllowedOrigins  string

	// Tracing (enabled when the collector endpoint is set)
	OTLPEndpoint string

	// Rate limits, ulule/limiter formatted (M = minute, H = hour)
	RateLimitAPI  string
	RateLimitWsIP string
}

// ExpireDuration returns the share-file expiry window.
func (c *Config) ExpireDuration() time.Duration {
	return time.Duration(c.ExpireDays) * 24 * time.Hour
}

// ValidateEnv validates all required environment variables and returns a
// Config object. Returns an error if any required variable is missing or
// invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Required: CHAT_DATABASE_URL
	cfg.DatabaseURL = os.Getenv("CHAT_DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errors = append(errors, "CHAT_DATABASE_URL is required")
	}

	// Required: CHAT_REDIS_URL
	cfg.RedisURL = os.Getenv("CHAT_REDIS_URL")
	if cfg.RedisURL == "" {
		errors = append(errors, "CHAT_REDIS_URL is required")
	}

	// Required: PORT (valid port number)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "3000"
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	// Optional: CHAT_EXPIRE_DAYS (defaults to 3)
	expireDays := getEnvOrDefault("CHAT_EXPIRE_DAYS", "3")
	days, err := strconv.Atoi(expireDays)
	if err != nil || days < 1 {
		errors = append(errors, fmt.Sprintf("CHAT_EXPIRE_DAYS must be a positive integer (got '%s')", expireDays))
	} else {
		cfg.ExpireDays = days
	}

	cfg.AvatarDir = getEnvOrDefault("CHAT_AVATAR_DIR", "/assets/avatar")
	cfg.ArchiveDir = getEnvOrDefault("CHAT_ARCHIVE_DIR", "/assets/archive")
	cfg.ShareDir = getEnvOrDefault("CHAT_SHARE_DIR", "/assets/share")
	cfg.SiteRoot = getEnvOrDefault("CHAT_SITE_ROOT", "target/site")

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg.RateLimitAPI = getEnvOrDefault("RATE_LIMIT_API", "1000-M")
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// logValidatedConfig logs the validated configuration with secrets redacted.
func logValidatedConfig(cfg *Config) {
	slog.Info("Environment configuration validated",
		"database_url", redactURL(cfg.DatabaseURL),
		"redis_url", redactURL(cfg.RedisURL),
		"port", cfg.Port,
		"expire_days", cfg.ExpireDays,
		"development_mode", cfg.DevelopmentMode,
		"rate_limit_api", cfg.RateLimitAPI,
		"rate_limit_ws_ip", cfg.RateLimitWsIP,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default
// value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactURL hides credentials embedded in a connection URL.
func redactURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	scheme := strings.Index(url, "://")
	if scheme < 0 {
		return "***" + url[at:]
	}
	return url[:scheme+3] + "***" + url[at:]
}
