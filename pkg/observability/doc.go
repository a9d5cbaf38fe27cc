// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure including JSON logging, metrics
// collection, health checks, graceful shutdown and distributed tracing integration.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Infof("Server started on port %d", 8000)
//
// Context-aware logging:
//
//	observability.FromContext(ctx).WithError(err).Error("login failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.LoginsTotal.WithLabelValues(observability.LoginOutcomeSuccess).Inc()
//
// Business metrics:
//
//	metrics.UsersTotal.Set(float64(userCount))
//	metrics.PostsTotal.Set(float64(postCount))
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	status := checker.Check(ctx)
//
// Redis being down reports the service unhealthy: sessions and the login
// limiter cannot operate without it.
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		ServiceName: "quill-api",
//		Endpoint:    "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging and metrics middleware
package observability
