package bootstrap

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-decision-core/internal/autoaccept"
	appconfig "github.com/wolfman30/clinic-decision-core/internal/config"
	"github.com/wolfman30/clinic-decision-core/internal/comms"
	"github.com/wolfman30/clinic-decision-core/internal/conflicts"
	"github.com/wolfman30/clinic-decision-core/internal/decisionqueue"
	"github.com/wolfman30/clinic-decision-core/internal/observability/metrics"
	"github.com/wolfman30/clinic-decision-core/internal/quota"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

// Core bundles the decision services shared by the API, workers and CLI.
type Core struct {
	Settings       *autoaccept.SettingsService
	Processor      *autoaccept.Processor
	Logs           *autoaccept.LogStore
	Queue          *decisionqueue.Service
	Planner        *comms.Planner
	Hours          quota.HoursSource
	Quota          *quota.Tracker
	ReminderOffset []time.Duration
}

// CoreDeps are the runtime handles BuildCore needs. Redis and Auditor may be
// nil; Hours falls back to the Redis store when unset.
type CoreDeps struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Hours   quota.HoursSource
	Auditor autoaccept.Auditor
	Metrics *metrics.DecisionMetrics
}

// BuildCore wires the Postgres-backed decision core from config.
func BuildCore(cfg *appconfig.Config, deps CoreDeps, logger *logging.Logger) (*Core, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("bootstrap: postgres pool is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	offsets, err := comms.ParseOffsets(cfg.ReminderOffsets)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: REMINDER_OFFSETS: %w", err)
	}

	hours := deps.Hours
	if hours == nil {
		store := BuildHoursStore(deps.Redis)
		if store == nil {
			return nil, fmt.Errorf("bootstrap: business hours need redis")
		}
		hours = store
	}

	tracker := quota.NewTracker(BuildQuotaCounter(cfg, deps.Pool, deps.Redis, logger), hours)

	settingsStore := autoaccept.NewSettingsStore(deps.Pool)
	cached := autoaccept.NewCachedSettings(settingsStore, deps.Redis, cfg.SettingsCacheTTL, logger)

	auditor := deps.Auditor

	queue := decisionqueue.NewService(decisionqueue.NewStore(deps.Pool), logger).WithMetrics(deps.Metrics)
	logs := autoaccept.NewLogStore(deps.Pool)
	evaluator := autoaccept.NewEvaluator(tracker, conflicts.NewChecker(deps.Pool))

	processor := autoaccept.NewProcessor(
		cached,
		evaluator,
		tracker,
		conflicts.NewGuard(deps.Pool),
		autoaccept.NewSQLCommitter(),
		logs,
		queue,
		logger,
	).WithMetrics(deps.Metrics)
	if auditor != nil {
		processor = processor.WithAuditor(auditor)
	}

	planner := comms.NewPlanner(comms.NewStore(deps.Pool), logger)
	if auditor != nil {
		planner = planner.WithAuditor(auditor)
	}

	return &Core{
		Settings:       autoaccept.NewSettingsService(cached, auditor, logger),
		Processor:      processor,
		Logs:           logs,
		Queue:          queue,
		Planner:        planner,
		Hours:          hours,
		Quota:          tracker,
		ReminderOffset: offsets,
	}, nil
}

// BuildDispatcher wires a dispatcher over the scheduled_communications table
// with the batch and retry settings from config.
func BuildDispatcher(cfg *appconfig.Config, db comms.DB, sender comms.Sender, m *metrics.DecisionMetrics, logger *logging.Logger) *comms.Dispatcher {
	repo := comms.NewStore(db)
	return comms.NewDispatcher(repo, comms.NewPlanner(repo, logger), sender, logger).
		WithBatchSize(cfg.DispatchBatchSize).
		WithInterval(cfg.DispatchInterval).
		WithMaxAttempts(cfg.DispatchMaxAttempts).
		WithMetrics(m)
}
