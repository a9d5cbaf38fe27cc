package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/quillhq/quill/pkg/api"
	"github.com/quillhq/quill/pkg/auth"
	"github.com/quillhq/quill/pkg/config"
	"github.com/quillhq/quill/pkg/mail"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/session"
	"github.com/quillhq/quill/pkg/storage"
	"github.com/quillhq/quill/pkg/storage/postgres"
)

// dbStatsInterval is how often connection-pool gauges are refreshed.
const dbStatsInterval = 15 * time.Second

func main() {
	port := flag.String("port", "", "Port to listen on (overrides QUILL_PORT)")
	healthPort := flag.String("health-port", "", "Port for health/metrics endpoints (overrides QUILL_HEALTH_PORT)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *healthPort != "" {
		cfg.Server.HealthPort = *healthPort
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	db, err := postgres.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	redisClient, err := storage.NewRedisClient(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	} else {
		metrics = observability.NewNopMetrics()
	}

	users := postgres.NewUserStore(db)
	posts := postgres.NewPostStore(db)
	comments := postgres.NewCommentStore(db)
	newsletter := postgres.NewNewsletterStore(db)

	mailLogger := logrus.New()
	if cfg.Mail.Host == "" {
		logger.Warn("SMTP host not configured; outbound email delivery will fail")
	}
	mailer := mail.NewSMTPMailer(cfg.Mail, mailLogger)

	hasher := auth.NewHasher()
	codec := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret))
	sessions := session.NewStore(redisClient)
	limiter := session.NewLoginLimiter(redisClient)

	authService := auth.NewService(auth.ServiceConfig{
		Users:       users,
		Hasher:      hasher,
		Codec:       codec,
		Sessions:    sessions,
		Limiter:     limiter,
		Mailer:      mailer,
		Logger:      logger,
		Metrics:     metrics,
		AccessTTL:   cfg.Auth.AccessTokenTTL,
		RefreshTTL:  cfg.Auth.RefreshTokenTTL,
		FrontendURL: cfg.Auth.FrontendURL,
	})

	server := api.NewServer(api.Config{
		Auth:        authService,
		Codec:       codec,
		Users:       users,
		Posts:       posts,
		Comments:    comments,
		Newsletter:  newsletter,
		Logger:      logger,
		Metrics:     metrics,
		FrontendURL: cfg.Auth.FrontendURL,
	})

	var apiHandler http.Handler = server
	if cfg.Observability.OTelEnabled {
		apiHandler = otelhttp.NewHandler(server, "quill-api")
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	opsMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient)
	observability.RegisterHealthRoutes(opsMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      opsMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("Starting quill API server on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Infof("Starting health/metrics server on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(dbStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				metrics.UpdateDBStats(db.Stats())
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("API server shutdown failed")
		}
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Ops server shutdown failed")
		}
		if otelProviders != nil {
			if err := observability.ShutdownOTel(shutdownCtx, otelProviders, logger); err != nil {
				logger.WithError(err).Error("OpenTelemetry shutdown failed")
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("Server stopped")
}
