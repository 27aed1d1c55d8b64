// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port               int      `koanf:"port"`
	Env                string   `koanf:"env"`
	TrustProxyHeaders  bool     `koanf:"trust_proxy_headers"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// JWT Authentication. JWTPreviousSecret keeps tokens signed before a
	// rotation valid until they expire.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Redis backs the clock-event rate limiter. Optional; falls back to memory.
	RedisURL                string `koanf:"redis_url"`
	ClockRateLimitPerMinute int    `koanf:"clock_rate_limit_per_minute"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`

	// Audit archive (S3-compatible object storage)
	ArchiveBucket          string `koanf:"archive_bucket"`
	ArchiveEndpoint        string `koanf:"archive_endpoint"`
	ArchiveRegion          string `koanf:"archive_region"`
	ArchiveAccessKeyID     string `koanf:"archive_access_key_id"`
	ArchiveSecretAccessKey string `koanf:"archive_secret_access_key"`

	// Background jobs. 0 disables the periodic chain check.
	AuditVerifyIntervalMinutes int `koanf:"audit_verify_interval_minutes"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL            = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret              = errors.New("JWT_SECRET is required")
	ErrShortJWTSecret                = errors.New("JWT_SECRET must be at least 32 characters")
	ErrInvalidPort                   = errors.New("PORT must be a valid integer")
	ErrInvalidRateLimit              = errors.New("CLOCK_RATE_LIMIT_PER_MINUTE must be positive")
	ErrInvalidVerifyInterval         = errors.New("AUDIT_VERIFY_INTERVAL_MINUTES must not be negative")
	ErrInvalidSamplingRate           = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
	ErrInvalidTracingExporter        = errors.New("TRACING_EXPORTER must be otlp-grpc or otlp-http")
	ErrMissingArchiveBucket          = errors.New("ARCHIVE_BUCKET is required")
	ErrMissingArchiveAccessKeyID     = errors.New("ARCHIVE_ACCESS_KEY_ID is required")
	ErrMissingArchiveSecretAccessKey = errors.New("ARCHIVE_SECRET_ACCESS_KEY is required")
)

// Default values for non-secret configuration.
const (
	DefaultPort                       = 8080
	DefaultEnv                        = "development"
	DefaultClockRateLimitPerMinute    = 10
	DefaultTracingExporter            = "otlp-http"
	DefaultTracingSamplingRate        = 0.1
	DefaultArchiveRegion              = "auto"
	DefaultAuditVerifyIntervalMinutes = 60
	minJWTSecretLength                = 32
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := getEnvIntOrDefaultMulti([]string{"TIMEGUARD_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	rateLimit, err := getEnvIntOrDefault("CLOCK_RATE_LIMIT_PER_MINUTE", k.Int("clock_rate_limit_per_minute"), DefaultClockRateLimitPerMinute)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	verifyInterval, err := getEnvIntOrDefault("AUDIT_VERIFY_INTERVAL_MINUTES", k.Int("audit_verify_interval_minutes"), DefaultAuditVerifyIntervalMinutes)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	samplingRate, err := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k, "tracing_sampling_rate", DefaultTracingSamplingRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                    port,
		Env:                     getEnvOrDefaultMulti([]string{"TIMEGUARD_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		TrustProxyHeaders:       getEnvBoolOrKoanf("TRUST_PROXY_HEADERS", k, "trust_proxy_headers", false),
		CORSAllowedOrigins:      getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		DatabaseURL:             getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		JWTSecret:               getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:       getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		RedisURL:                getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		ClockRateLimitPerMinute: rateLimit,
		TracingEnabled:          getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:         getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:         getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSamplingRate:     samplingRate,
		TracingInsecure:         getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure", false),
		ArchiveBucket:           getEnvOrKoanf("ARCHIVE_BUCKET", k, "archive_bucket"),
		ArchiveEndpoint:         getEnvOrKoanf("ARCHIVE_ENDPOINT", k, "archive_endpoint"),
		ArchiveRegion:           getEnvOrDefault("ARCHIVE_REGION", k.String("archive_region"), DefaultArchiveRegion),
		ArchiveAccessKeyID:      getEnvOrKoanf("ARCHIVE_ACCESS_KEY_ID", k, "archive_access_key_id"),
		ArchiveSecretAccessKey:  getEnvOrKoanf("ARCHIVE_SECRET_ACCESS_KEY", k, "archive_secret_access_key"),

		AuditVerifyIntervalMinutes: verifyInterval,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// ArchiveEnabled reports whether audit archiving to object storage is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
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

// getEnvBoolOrKoanf parses true/false style flags. Unrecognised env values
// are ignored.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	switch strings.ToLower(os.Getenv(envKey)) {
	case "true", "1", "yes", "on":
		result = true
	case "false", "0", "no", "off":
		result = false
	}
	return result
}

// getEnvListOrKoanf reads a comma separated env var or a YAML list.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	return getEnvIntOrDefaultMulti([]string{envKey}, koanfVal, defaultVal)
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Note: a 0 from a YAML file falls back to the default.
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

// getEnvFloatOrDefault returns the environment variable as float64 if set,
// otherwise the koanf value when the key exists, or default. Zero is a valid
// file value here.
func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	} else if len(c.JWTSecret) < minJWTSecretLength {
		errs = append(errs, ErrShortJWTSecret)
	}
	if c.ClockRateLimitPerMinute <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.AuditVerifyIntervalMinutes < 0 {
		errs = append(errs, ErrInvalidVerifyInterval)
	}

	if c.TracingEnabled {
		if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
			errs = append(errs, ErrInvalidSamplingRate)
		}
		if c.TracingExporter != "otlp-grpc" && c.TracingExporter != "otlp-http" {
			errs = append(errs, ErrInvalidTracingExporter)
		}
	}

	// Archive configuration is optional. Only validate fields if any credential value is set.
	if c.ArchiveBucket != "" || c.ArchiveAccessKeyID != "" || c.ArchiveSecretAccessKey != "" {
		if c.ArchiveBucket == "" {
			errs = append(errs, ErrMissingArchiveBucket)
		}
		if c.ArchiveAccessKeyID == "" {
			errs = append(errs, ErrMissingArchiveAccessKeyID)
		}
		if c.ArchiveSecretAccessKey == "" {
			errs = append(errs, ErrMissingArchiveSecretAccessKey)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                        strconv.Itoa(c.Port),
		"env":                         c.Env,
		"trust_proxy_headers":         strconv.FormatBool(c.TrustProxyHeaders),
		"cors_allowed_origins":        strings.Join(c.CORSAllowedOrigins, ","),
		"database_url":                maskDatabaseURL(c.DatabaseURL),
		"jwt_secret":                  maskSecret(c.JWTSecret),
		"jwt_previous_secret":         maskSecret(c.JWTPreviousSecret),
		"redis_url":                   maskDatabaseURL(c.RedisURL),
		"clock_rate_limit_per_minute": strconv.Itoa(c.ClockRateLimitPerMinute),
		"tracing_enabled":             strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":            c.TracingExporter,
		"tracing_endpoint":            c.TracingEndpoint,
		"tracing_sampling_rate":       strconv.FormatFloat(c.TracingSamplingRate, 'f', -1, 64),
		"archive_bucket":              c.ArchiveBucket,
		"archive_endpoint":            c.ArchiveEndpoint,
		"archive_region":              c.ArchiveRegion,
		"archive_access_key_id":       maskSecret(c.ArchiveAccessKeyID),
		"archive_secret_access_key":   maskSecret(c.ArchiveSecretAccessKey),

		"audit_verify_interval_minutes": strconv.Itoa(c.AuditVerifyIntervalMinutes),
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

// maskDatabaseURL masks the password in a connection URL (postgres://, redis://).
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

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

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
