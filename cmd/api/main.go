// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the accounts HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Build token codecs, notifier and metrics registry.
//  7. Wire managers, services and HTTP handlers.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/api"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/config"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/constants"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/middleware"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/migration"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/notify"
	pgstore "github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/postgres"
	redisstore "github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/redis"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/sec"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/users/account"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/users/auth"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("notifier", cfg.Notifier),
		slog.Bool("lockout_enforced", cfg.LockoutEnforce),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, redisstore.Options{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize}, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Codecs, Notifier, Metrics ──────────────────────────────────────
	systemClock := clock.System()

	jwtSvc, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	signer, err := sec.NewSigner(cfg.SigningSecret, constants.VerificationPurpose, systemClock)
	must(log, err, "initialize verification signer")

	notifier := newNotifier(cfg, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auth.RegisterMetrics(registry)
	middleware.RegisterMetrics(registry)

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	accountRepository := auth.NewAccountRepository(pool)
	registrationRepository := auth.NewRegistrationRepository(pool)
	resetTokenRepository := auth.NewResetTokenRepository(pool)
	failedLoginRepository := auth.NewFailedLoginRepository(pool)
	deviceRepository := auth.NewDeviceRepository(pool)
	sessionRepository := auth.NewSessionRepository(pool)
	spentTokenStore := auth.NewSpentTokenStore(rdb)

	hasher := sec.BcryptHasher{}

	verification := auth.NewVerificationManager(
		accountRepository, registrationRepository, spentTokenStore, signer, notifier,
		auth.VerificationConfig{
			LinkBase:   strings.TrimRight(cfg.PublicBaseURL, "/") + "/api/v1/auth/verify-email/confirm",
			TimeToLive: cfg.VerificationTokenTTL,
		},
		systemClock, log,
	)

	resets := auth.NewResetManager(
		accountRepository, resetTokenRepository, sessionRepository, hasher, notifier,
		auth.ResetConfig{FrontendURL: cfg.FrontendURL, TimeToLive: cfg.ResetTokenTTL},
		systemClock, log,
	)

	guard := auth.NewLoginGuard(failedLoginRepository, auth.GuardConfig{
		Threshold: cfg.LockoutThreshold,
		Window:    cfg.LockoutWindow,
	}, systemClock)

	tracker := auth.NewTracker(deviceRepository, sessionRepository, systemClock)

	authService := auth.NewService(
		accountRepository, hasher, verification, guard, tracker, jwtSvc, notifier,
		auth.ServiceConfig{AccessTokenTTL: cfg.AccessTokenTTL, EnforceLockout: cfg.LockoutEnforce},
		systemClock, log,
	)
	authHandler := auth.NewHandler(authService, verification, resets, tracker, auth.HandlerConfig{
		Debug:       cfg.Debug,
		FrontendURL: cfg.FrontendURL,
	})

	accountService := account.NewService(accountRepository, tracker, log)
	accountHandler := account.NewHandler(accountService, tracker)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Auth:      authHandler,
		Account:   accountHandler,
	}

	// Bounds background work owned by the router (rate limiter sweeper).
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, jwtSvc, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// newNotifier selects the delivery backend named by NOTIFIER.
func newNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	if cfg.Notifier == config.NotifierSMTP {
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.SMTPTimeout,
		}, log)
	}
	return notify.NewLogNotifier(log)
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
