package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/wolfman30/clinic-decision-core/cmd/mainconfig"
	"github.com/wolfman30/clinic-decision-core/internal/app/bootstrap"
	"github.com/wolfman30/clinic-decision-core/internal/audit"
	appconfig "github.com/wolfman30/clinic-decision-core/internal/config"
	"github.com/wolfman30/clinic-decision-core/internal/decisionqueue"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "decisionctl",
		Short: "Operator tooling for the auto-accept decision core",
	}

	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(drainCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type runtime struct {
	core  *bootstrap.Core
	audit *audit.Service
	close func()
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	sqlDB := stdlib.OpenDBFromPool(pool)
	auditService := audit.NewService(sqlDB)
	closeAll := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		_ = sqlDB.Close()
		pool.Close()
	}

	core, err := bootstrap.BuildCore(cfg, bootstrap.CoreDeps{
		Pool:    pool,
		Redis:   redisClient,
		Auditor: auditService,
	}, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	return &runtime{core: core, audit: auditService, close: closeAll}, nil
}

func orgFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("org")
	orgID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--org must be a UUID: %w", err)
	}
	return orgID, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending decision queue entries for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := orgFlag(cmd)
			if err != nil {
				return err
			}
			resourceType, _ := cmd.Flags().GetString("type")
			limit, _ := cmd.Flags().GetInt("limit")

			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			entries, err := rt.core.Queue.ListPending(cmd.Context(), orgID, decisionqueue.Filter{
				ResourceType: resourceType,
				Limit:        limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().String("org", "", "Organization ID")
	cmd.Flags().String("type", "", "Filter by resource type (appointment|referral)")
	cmd.Flags().Int("limit", 50, "Maximum entries to list")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a pending entry and apply the decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := orgFlag(cmd)
			if err != nil {
				return err
			}
			rawEntry, _ := cmd.Flags().GetString("entry")
			entryID, err := uuid.Parse(rawEntry)
			if err != nil {
				return fmt.Errorf("--entry must be a UUID: %w", err)
			}
			decision, _ := cmd.Flags().GetString("decision")
			note, _ := cmd.Flags().GetString("note")
			actor, _ := cmd.Flags().GetString("actor")

			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			res, err := rt.core.Processor.Resolve(cmd.Context(), orgID, entryID, decision, note, actor)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", entryID, err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String("org", "", "Organization ID")
	cmd.Flags().String("entry", "", "Decision queue entry ID")
	cmd.Flags().String("decision", "", "approve|reject|send_anyway|cancel|extend")
	cmd.Flags().String("note", "", "Optional resolution note")
	cmd.Flags().String("actor", "decisionctl", "Recorded as resolved_by")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("entry")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show effective auto-accept settings for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := orgFlag(cmd)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			settings, err := rt.core.Settings.Get(cmd.Context(), orgID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), settings)
		},
	}
	cmd.Flags().String("org", "", "Organization ID")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Send every due reminder once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := appconfig.Load()
			logger := logging.New(cfg.LogLevel)

			pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
			if err != nil {
				return fmt.Errorf("load aws config: %w", err)
			}
			sender, err := bootstrap.BuildSender(cfg, awsCfg, logger)
			if err != nil {
				return err
			}
			res, err := bootstrap.BuildDispatcher(cfg, pool, sender, nil, logger).Drain(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := orgFlag(cmd)
			if err != nil {
				return err
			}
			eventType, _ := cmd.Flags().GetString("type")
			resourceID, _ := cmd.Flags().GetString("resource")
			limit, _ := cmd.Flags().GetInt("limit")

			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			events, err := rt.audit.QueryEvents(cmd.Context(), audit.Filter{
				OrgID:      orgID.String(),
				EventType:  audit.EventType(eventType),
				ResourceID: resourceID,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().String("org", "", "Organization ID")
	cmd.Flags().String("type", "", "Filter by event type, e.g. decision.resolved")
	cmd.Flags().String("resource", "", "Filter by resource ID")
	cmd.Flags().Int("limit", 50, "Maximum events to show")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
