// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Storage
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`

	// Metrics pipeline
	FlushInterval time.Duration `koanf:"flush_interval"`
	MetricsWindow time.Duration `koanf:"metrics_window"`
	BufferLimit   int           `koanf:"buffer_limit"`
	Queues        []string      `koanf:"queues"`

	// Alerting
	AlertInterval           time.Duration `koanf:"alert_interval"`
	AlertCooldown           time.Duration `koanf:"alert_cooldown"`
	ResponseTimeThreshold   float64       `koanf:"response_time_threshold"`   // seconds
	ConversionRateThreshold float64       `koanf:"conversion_rate_threshold"` // percent

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL         = errors.New("DATABASE_URL is required")
	ErrMissingRedisURL            = errors.New("REDIS_URL is required")
	ErrInvalidPort                = errors.New("PORT must be a valid integer")
	ErrInvalidFlushInterval       = errors.New("FLUSH_INTERVAL must be positive")
	ErrInvalidMetricsWindow       = errors.New("METRICS_WINDOW must be positive")
	ErrInvalidBufferLimit         = errors.New("BUFFER_LIMIT must not be negative")
	ErrInvalidResponseThreshold   = errors.New("RESPONSE_TIME_THRESHOLD must be positive")
	ErrInvalidConversionThreshold = errors.New("CONVERSION_RATE_THRESHOLD must be between 0 and 100")
)

// Default values for non-secret configuration.
const (
	DefaultPort                    = 8080
	DefaultEnv                     = "development"
	DefaultFlushInterval           = 5 * time.Second
	DefaultMetricsWindow           = time.Hour
	DefaultBufferLimit             = 50000
	DefaultAlertInterval           = time.Minute
	DefaultAlertCooldown           = 0
	DefaultResponseTimeThreshold   = 300.0
	DefaultConversionRateThreshold = 20.0
)

// DefaultQueues are the job queues whose depths the health report covers.
var DefaultQueues = []string{"lead-queue", "email-queue", "notification-queue"}

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try LEADPULSE_PORT first, then PORT for backward compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"LEADPULSE_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	bufferLimit, bufferErr := getEnvIntOrDefault("BUFFER_LIMIT", k.Int("buffer_limit"), DefaultBufferLimit)
	if bufferErr != nil {
		loadErrs = append(loadErrs, bufferErr)
	}

	flushInterval, flushErr := getEnvDurationOrDefault("FLUSH_INTERVAL", k.Duration("flush_interval"), DefaultFlushInterval)
	if flushErr != nil {
		loadErrs = append(loadErrs, flushErr)
	}
	metricsWindow, windowErr := getEnvDurationOrDefault("METRICS_WINDOW", k.Duration("metrics_window"), DefaultMetricsWindow)
	if windowErr != nil {
		loadErrs = append(loadErrs, windowErr)
	}
	alertInterval, alertErr := getEnvDurationOrDefault("ALERT_INTERVAL", k.Duration("alert_interval"), DefaultAlertInterval)
	if alertErr != nil {
		loadErrs = append(loadErrs, alertErr)
	}
	alertCooldown, cooldownErr := getEnvDurationOrDefault("ALERT_COOLDOWN", k.Duration("alert_cooldown"), DefaultAlertCooldown)
	if cooldownErr != nil {
		loadErrs = append(loadErrs, cooldownErr)
	}

	responseThreshold, respErr := getEnvFloatOrDefault("RESPONSE_TIME_THRESHOLD", k.Float64("response_time_threshold"), DefaultResponseTimeThreshold)
	if respErr != nil {
		loadErrs = append(loadErrs, respErr)
	}
	conversionThreshold, convErr := getEnvFloatOrDefault("CONVERSION_RATE_THRESHOLD", k.Float64("conversion_rate_threshold"), DefaultConversionRateThreshold)
	if convErr != nil {
		loadErrs = append(loadErrs, convErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                    port,
		Env:                     getEnvOrDefaultMulti([]string{"LEADPULSE_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:             getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:                getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		FlushInterval:           flushInterval,
		MetricsWindow:           metricsWindow,
		BufferLimit:             bufferLimit,
		Queues:                  getEnvListOrDefault("QUEUES", k.Strings("queues"), DefaultQueues),
		AlertInterval:           alertInterval,
		AlertCooldown:           alertCooldown,
		ResponseTimeThreshold:   responseThreshold,
		ConversionRateThreshold: conversionThreshold,
		CORSAllowedOrigins:      getEnvListOrDefault("CORS_ALLOWED_ORIGINS", k.Strings("cors_allowed_origins"), nil),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvListOrDefault returns the environment variable split on commas if set,
// otherwise the koanf value, or default.
func getEnvListOrDefault(envKey string, koanfVal []string, defaultVal []string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if len(koanfVal) > 0 {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a duration if set,
// otherwise the koanf value, or default. Plain integers are read as seconds so
// FLUSH_INTERVAL=5 and FLUSH_INTERVAL=5s are equivalent.
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present and sane.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.RedisURL == "" {
		errs = append(errs, ErrMissingRedisURL)
	}
	if c.FlushInterval <= 0 {
		errs = append(errs, ErrInvalidFlushInterval)
	}
	if c.MetricsWindow <= 0 {
		errs = append(errs, ErrInvalidMetricsWindow)
	}
	if c.BufferLimit < 0 {
		errs = append(errs, ErrInvalidBufferLimit)
	}
	if c.ResponseTimeThreshold <= 0 {
		errs = append(errs, ErrInvalidResponseThreshold)
	}
	if c.ConversionRateThreshold <= 0 || c.ConversionRateThreshold > 100 {
		errs = append(errs, ErrInvalidConversionThreshold)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                      fmt.Sprintf("%d", c.Port),
		"env":                       c.Env,
		"database_url":              maskConnectionURL(c.DatabaseURL),
		"redis_url":                 maskConnectionURL(c.RedisURL),
		"flush_interval":            c.FlushInterval.String(),
		"metrics_window":            c.MetricsWindow.String(),
		"buffer_limit":              fmt.Sprintf("%d", c.BufferLimit),
		"queues":                    strings.Join(c.Queues, ","),
		"alert_interval":            c.AlertInterval.String(),
		"alert_cooldown":            c.AlertCooldown.String(),
		"response_time_threshold":   fmt.Sprintf("%g", c.ResponseTimeThreshold),
		"conversion_rate_threshold": fmt.Sprintf("%g", c.ConversionRateThreshold),
		"cors_allowed_origins":      strings.Join(c.CORSAllowedOrigins, ","),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskConnectionURL masks the password in a connection URL.
// Supports postgres://, postgresql:// and redis:// schemes.
func maskConnectionURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
