package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/clinic-decision-core/cmd/mainconfig"
	"github.com/wolfman30/clinic-decision-core/internal/app/bootstrap"
	"github.com/wolfman30/clinic-decision-core/internal/comms"
	appconfig "github.com/wolfman30/clinic-decision-core/internal/config"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

type drainer interface {
	Drain(ctx context.Context) (comms.DrainResult, error)
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		panic(err)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		panic(err)
	}
	sender, err := bootstrap.BuildSender(cfg, awsCfg, logger)
	if err != nil {
		panic(err)
	}

	dispatcher := bootstrap.BuildDispatcher(cfg, pool, sender, nil, logger)
	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) (comms.DrainResult, error) {
		return handle(ctx, dispatcher, logger, evt)
	})
}

// handle runs one drain per scheduled EventBridge invocation.
func handle(ctx context.Context, d drainer, logger *logging.Logger, evt events.CloudWatchEvent) (comms.DrainResult, error) {
	if evt.DetailType != "" && evt.DetailType != "Scheduled Event" {
		logger.Warn("ignoring unexpected event", "detail_type", evt.DetailType, "source", evt.Source)
		return comms.DrainResult{}, nil
	}
	res, err := d.Drain(ctx)
	if err != nil {
		return res, fmt.Errorf("dispatch drain: %w", err)
	}
	return res, nil
}
