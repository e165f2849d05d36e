package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/cli"
	"finledger/internal/config"
	applog "finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/worker"
)

const statsInterval = 5 * time.Minute

func main() {
	ownerID := flag.Int64("owner", 0, "verify every account of this owner once and exit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentReconcile)
	logger.Info("Starting reconcile-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if *ownerID > 0 {
		os.Exit(verifyOwner(logger, cfg, *ownerID))
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required: the reconciler consumes ledger events")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	reconciler := worker.NewReconciler(services.NewAccountService(store))

	done := make(chan error, 1)
	go func() {
		done <- client.ConsumeLedgerEvents(ctx, reconciler.HandleLedgerEvent)
	}()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			checked, drifted := reconciler.Stats()
			logger.Info("Reconciliation stats", "accounts_checked", checked, "drifted", drifted)
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
				os.Exit(1)
			}
			checked, drifted := reconciler.Stats()
			logger.Info("Reconcile-worker shutdown complete", "accounts_checked", checked, "drifted", drifted)
			return
		}
	}
}

// verifyOwner replays every account of one owner and returns the process
// exit code: 0 when all balances match, 2 on drift, 1 on failure.
func verifyOwner(logger *applog.Logger, cfg *config.Config, ownerID int64) int {
	ctx, cancel := cli.ShutdownContext()
	defer cancel()

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	drifted, err := worker.NewReconciler(services.NewAccountService(store)).VerifyOwner(ctx, ownerID)
	if err != nil {
		logger.Error("Owner verification failed", applog.FieldOwnerID, ownerID, applog.FieldError, err)
		return 1
	}
	if len(drifted) > 0 {
		for _, check := range drifted {
			logger.Warn("Balance drift",
				applog.FieldAccountID, check.AccountID,
				"stored_cents", check.Stored.Cents,
				"replayed_cents", check.Replayed.Cents)
		}
		return 2
	}
	logger.Info("All balances consistent", applog.FieldOwnerID, ownerID)
	return 0
}
