package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-decision-core/cmd/mainconfig"
	"github.com/wolfman30/clinic-decision-core/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-decision-core/internal/config"
	"github.com/wolfman30/clinic-decision-core/internal/observability/metrics"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting reminder dispatch worker",
		"env", cfg.Env,
		"interval", cfg.DispatchInterval.String(),
		"batch_size", cfg.DispatchBatchSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	sender, err := bootstrap.BuildSender(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build sender", "error", err)
		os.Exit(1)
	}

	dispatcher := bootstrap.BuildDispatcher(cfg, pool, sender, metrics.NewDecisionMetrics(prometheus.NewRegistry()), logger)

	// Drain once immediately so a restart does not wait a full interval.
	if _, err := dispatcher.Drain(ctx); err != nil {
		logger.Error("initial drain failed", "error", err)
	}
	dispatcher.Start(ctx)

	logger.Info("dispatch worker stopped")
}
