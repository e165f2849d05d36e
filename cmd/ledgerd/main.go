package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finledger/internal/cli"
	apphttp "finledger/internal/http"
	applog "finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	logger.Info("Starting ledgerd", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	infra, err := cli.BuildInfra(ctx, logger, cfg, cli.ServerWriters(cfg))
	if err != nil {
		logger.Error("Failed to set up result cache", applog.FieldError, err)
		os.Exit(1)
	}
	defer infra.Close()
	opts := infra.Options()

	ledger := services.NewLedgerService(store, opts...)
	recurring := services.NewRecurringScheduler(store, cfg.MaxCatchUp, opts...)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		JWTSecret:          cfg.JWTSecret,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	}, apphttp.Services{
		Accounts:   services.NewAccountService(store, opts...),
		Categories: services.NewCategoryService(store, opts...),
		Ledger:     ledger,
		Transfers:  services.NewTransferService(store, opts...),
		Budgets:    services.NewBudgetService(store, ledger, opts...),
		Recurring:  recurring,
		Store:      store,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr, "backend", store.Backend())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if infra.Sweeper != nil {
		infra.Sweeper.StartCleanup(gctx, time.Minute)
		defer infra.Sweeper.Stop()
	}

	var job *worker.RecurringJob
	if cfg.RunScheduler {
		job, err = worker.NewRecurringJob(recurring, cfg.RecurringSchedule, cfg.SchedulerTimeout)
		if err != nil {
			logger.Error("Invalid recurring schedule", applog.FieldError, err)
			os.Exit(1)
		}
		if err := job.Start(gctx); err != nil {
			logger.Error("Failed to start recurring job", applog.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("In-process scheduler disabled, run recurring-worker instead")
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := cli.ShutdownContext()
		defer shutdownCancel()

		if job != nil {
			if err := job.Stop(shutdownCtx); err != nil {
				logger.Warn("Recurring job did not stop cleanly", applog.FieldError, err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		requests, limits := srv.Metrics()
		logger.Info("Server stopped",
			"total_requests", requests.TotalRequests,
			"avg_response_time", requests.AverageResponseTime,
			"rate_limited", limits.Rejected)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ledgerd exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("ledgerd stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
