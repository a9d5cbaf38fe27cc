// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings except secrets and connection strings.
//
// # Configuration Structure
//
// Server settings:
//
//	QUILL_HOST="0.0.0.0"
//	QUILL_PORT="8000"
//	QUILL_HEALTH_PORT="9090"
//	QUILL_READ_TIMEOUT="30s"
//	QUILL_WRITE_TIMEOUT="30s"
//
// Auth settings:
//
//	QUILL_JWT_SECRET="change-me"          # required
//	QUILL_ACCESS_TOKEN_TTL="15m"
//	QUILL_REFRESH_TOKEN_TTL="168h"
//	QUILL_FRONTEND_URL="http://localhost:3000"
//
// Storage settings:
//
//	QUILL_POSTGRES_URL="postgres://localhost/quill"  # required
//	QUILL_POSTGRES_MAX_CONNS="20"
//	QUILL_REDIS_URL="redis://localhost:6379"         # required
//	QUILL_REDIS_POOL_SIZE="10"
//
// Mail settings:
//
//	QUILL_SMTP_HOST="smtp.example.com"
//	QUILL_SMTP_PORT="587"
//	QUILL_SMTP_USERNAME="mailer"
//	QUILL_SMTP_PASSWORD="secret"
//	QUILL_SMTP_FROM="Quill <no-reply@example.com>"
//
// Observability settings:
//
//	QUILL_LOG_LEVEL="info"  # debug, info, warn, error
//	QUILL_METRICS_ENABLED="true"
//	QUILL_OTEL_ENABLED="true"
//	QUILL_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/auth: Uses auth configuration
//   - pkg/mail: Uses mail configuration
//   - pkg/observability: Uses observability configuration
package config
