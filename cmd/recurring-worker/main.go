package main

import (
	"flag"
	"os"
	"time"

	"finledger/internal/cli"
	applog "finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentScheduler)
	logger.Info("Starting recurring-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	// the worker shares the ledger with ledgerd, so its writes must reach the
	// server's cache (Redis) and the reconciler
	infra, err := cli.BuildInfra(ctx, logger, cfg, cli.SharedWriters)
	if err != nil {
		logger.Error("Failed to set up result cache", applog.FieldError, err)
		os.Exit(1)
	}
	defer infra.Close()

	scheduler := services.NewRecurringScheduler(store, cfg.MaxCatchUp, infra.Options()...)
	job, err := worker.NewRecurringJob(scheduler, cfg.RecurringSchedule, cfg.SchedulerTimeout)
	if err != nil {
		logger.Error("Invalid recurring schedule", applog.FieldError, err)
		os.Exit(1)
	}

	if *once {
		res, err := job.RunOnce(ctx)
		if err != nil {
			logger.Error("Recurring pass failed", applog.FieldError, err)
			os.Exit(1)
		}
		for _, f := range res.Failures {
			logger.Warn("Rule not materialized", applog.FieldRuleID, f.RuleID, applog.FieldOwnerID, f.OwnerID, applog.FieldError, f.Err)
		}
		logger.Info("Recurring pass complete",
			"rules_checked", res.RulesChecked,
			"materialized", res.Materialized,
			"failed", len(res.Failures))
		return
	}

	logger.Info("Recurring scheduler configured",
		"schedule", cfg.RecurringSchedule,
		"max_catch_up", cfg.MaxCatchUp,
		"backend", store.Backend())
	if err := job.Start(ctx); err != nil {
		logger.Error("Failed to start recurring job", applog.FieldError, err)
		os.Exit(1)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := cli.ShutdownContext()
	defer shutdownCancel()
	logger.Info("Shutting down recurring-worker...", applog.FieldOperation, applog.OpShutdown)
	start := time.Now()
	if err := job.Stop(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached", applog.FieldError, err)
		return
	}
	logger.Info("Recurring-worker shutdown complete", "duration", time.Since(start))
}
