package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quillhq/quill/pkg/mail"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Auth configuration
	Auth AuthConfig

	// Storage configuration
	Storage storage.Config

	// Mail configuration
	Mail mail.Config

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds token and session settings
type AuthConfig struct {
	// JWTSecret signs access and refresh tokens. Required.
	JWTSecret string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// FrontendURL is the base for links in emails and the post-verification
	// redirect.
	FrontendURL string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Storage:       loadStorageConfig(),
		Mail:          loadMailConfig(),
		Observability: loadObservabilityConfig(),
	}

	// Email links and the verification redirect share one frontend base.
	cfg.Mail.FrontendURL = cfg.Auth.FrontendURL

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("QUILL_HOST", "0.0.0.0"),
		Port:            getEnv("QUILL_PORT", "8000"),
		ReadTimeout:     getEnvDuration("QUILL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("QUILL_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("QUILL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("QUILL_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("QUILL_HEALTH_PORT", "9090"),
	}
}

// loadAuthConfig loads token settings from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:       getEnv("QUILL_JWT_SECRET", ""),
		AccessTokenTTL:  getEnvDuration("QUILL_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("QUILL_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		FrontendURL:     getEnv("QUILL_FRONTEND_URL", "http://localhost:3000"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("QUILL_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("QUILL_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("QUILL_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("QUILL_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Redis config
	if redisURL := getEnv("QUILL_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("QUILL_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("QUILL_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("QUILL_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("QUILL_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

// loadMailConfig loads SMTP settings from environment
func loadMailConfig() mail.Config {
	return mail.Config{
		Host:     getEnv("QUILL_SMTP_HOST", ""),
		Port:     getEnvInt("QUILL_SMTP_PORT", 587),
		Username: getEnv("QUILL_SMTP_USERNAME", ""),
		Password: getEnv("QUILL_SMTP_PASSWORD", ""),
		From:     getEnv("QUILL_SMTP_FROM", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("QUILL_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("QUILL_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("QUILL_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("QUILL_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("QUILL_OTEL_SERVICE_NAME", "quill-api"),
		OTelServiceVersion: getEnv("QUILL_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("QUILL_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate auth config
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("refresh token TTL must be positive")
	}
	if c.Auth.FrontendURL == "" {
		return fmt.Errorf("frontend URL is required")
	}

	// Validate storage config
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
