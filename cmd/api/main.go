package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-decision-core/internal/api/router"
	"github.com/wolfman30/clinic-decision-core/internal/app/bootstrap"
	"github.com/wolfman30/clinic-decision-core/internal/audit"
	"github.com/wolfman30/clinic-decision-core/internal/clinic"
	appconfig "github.com/wolfman30/clinic-decision-core/internal/config"
	"github.com/wolfman30/clinic-decision-core/internal/http/handlers"
	"github.com/wolfman30/clinic-decision-core/internal/observability/metrics"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-decision-core API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"quota_backend", cfg.QuotaBackend,
	)

	ctx := context.Background()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for business hours", "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	// Audit writes go through database/sql, sharing the pgx pool.
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()

	metricsHandler, decisionMetrics := setupMetrics()

	hours := bootstrap.BuildHoursStore(redisClient)
	core, err := bootstrap.BuildCore(cfg, bootstrap.CoreDeps{
		Pool:    pool,
		Redis:   redisClient,
		Hours:   hours,
		Auditor: audit.NewService(sqlDB),
		Metrics: decisionMetrics,
	}, logger)
	if err != nil {
		logger.Error("failed to wire decision core", "error", err)
		os.Exit(1)
	}

	routerCfg := &router.Config{
		Logger:          logger,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  metricsHandler,
		AutoAccept:      handlers.NewAutoAcceptHandler(core.Settings, core.Processor, core.Logs, logger),
		Decisions:       handlers.NewDecisionsHandler(core.Queue, core.Processor, logger),
		Communications:  handlers.NewCommunicationsHandler(core.Planner, core.ReminderOffset, logger),
		ClinicHours:     clinic.NewHandler(hours, logger),
		ClinicStats:     clinic.NewStatsHandler(clinic.NewStatsRepository(pool), logger),
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes will reject every request")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.Timeout(cfg.RequestTimeout)(router.New(routerCfg)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers decision metrics on a private registry so tests
// and the process never collide on the default one.
func setupMetrics() (http.Handler, *metrics.DecisionMetrics) {
	reg := prometheus.NewRegistry()
	m := metrics.NewDecisionMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}
