// Package cli holds the start-up steps shared by the ledger binaries:
// environment, logging, configuration and the optional collaborators of the
// services (result cache, event publisher).
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finledger/internal/amqp"
	"finledger/internal/cache"
	"finledger/internal/config"
	applog "finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and installs it as
// the slog default so packages logging through slog share its handler.
func SetupLogger(component string) *applog.Logger {
	level, err := applog.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg := applog.DefaultConfig()
	cfg.Level = level
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Ignoring LOG_LEVEL", applog.FieldError, err)
	}
	return logger
}

// LoadAndValidateConfig exits the process on an invalid configuration.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the configured backend and applies pending migrations.
func OpenStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) *storage.Repository {
	var (
		store *storage.Repository
		err   error
	)
	switch cfg.DataBackend {
	case "postgres":
		store, err = storage.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		store, err = storage.OpenSQLite(ctx, cfg.SQLiteDBPath)
	}
	storeLog := logger.WithComponent(applog.ComponentStorage)
	if err != nil {
		storeLog.Error("Failed to open ledger store", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	storeLog.Info("Ledger store ready", "backend", store.Backend())
	return store
}

// Infra is the set of optional collaborators shared by the services. Any of
// Cache, Publisher or Sweeper may be nil when not configured.
type Infra struct {
	Cache     services.ResultCache
	Publisher *amqp.Client
	Sweeper   *cache.Manager
	Retry     services.RetryPolicy

	closers []func() error
}

// Writers tells BuildInfra whether other processes write the same ledger.
type Writers int

const (
	// SoleWriter: every committed write goes through this process, so an
	// in-process cache sees every invalidation.
	SoleWriter Writers = iota
	// SharedWriters: another process writes the ledger too. Only a cache all
	// writers invalidate (Redis) is coherent; without one reads go uncached.
	SharedWriters
)

// ServerWriters is the mode of the API server: it shares the ledger with
// recurring-worker whenever the in-process scheduler is disabled.
func ServerWriters(cfg *config.Config) Writers {
	if cfg.RunScheduler {
		return SoleWriter
	}
	return SharedWriters
}

// BuildInfra connects the result cache and the event publisher. Redis is
// preferred over the in-process cache when REDIS_URL is set. A sole writer
// degrades to the in-process cache when Redis is unreachable; with shared
// writers that would serve results the other process already changed, so it
// is an error. An unreachable broker only disables event publishing.
func BuildInfra(ctx context.Context, logger *applog.Logger, cfg *config.Config, writers Writers) (*Infra, error) {
	in := &Infra{Retry: services.DefaultRetryPolicy()}
	in.Retry.Attempts = cfg.TxMaxRetries

	cacheLog := logger.WithComponent(applog.ComponentCache)
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL)
		switch {
		case err == nil:
			in.Cache = rc
			in.closers = append(in.closers, rc.Close)
			cacheLog.Info("Using Redis result cache", "ttl", cfg.CacheTTL)
		case writers == SharedWriters:
			return nil, fmt.Errorf("redis is required while another process writes the ledger: %w", err)
		default:
			cacheLog.Warn("Redis unavailable, falling back to in-process cache", applog.FieldError, err)
		}
	}
	if in.Cache == nil {
		if writers == SharedWriters {
			cacheLog.Warn("Result cache disabled: another process writes the ledger and REDIS_URL is unset")
		} else {
			oc := cache.NewOwnerCache(cfg.CacheMaxItems, cfg.CacheTTL)
			in.Cache = oc
			in.Sweeper = cache.NewManager()
			in.Sweeper.Register(oc.LRU())
			cacheLog.Info("Using in-process result cache", "max_items", cfg.CacheMaxItems, "ttl", cfg.CacheTTL)
		}
	}

	amqpLog := logger.WithComponent(applog.ComponentAMQP)
	if cfg.AMQPURL == "" {
		amqpLog.Info("AMQP disabled, ledger events will not be published")
		return in, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		amqpLog.Warn("Failed to connect to AMQP broker, continuing without events", applog.FieldError, err)
		return in, nil
	}
	in.Publisher = client
	in.closers = append(in.closers, client.Close)
	amqpLog.Info("Publishing ledger events", "exchange", cfg.AMQPExchange)
	return in, nil
}

// Options turns the collaborators into service options.
func (in *Infra) Options() []services.Option {
	opts := []services.Option{services.WithRetryPolicy(in.Retry)}
	if in.Cache != nil {
		opts = append(opts, services.WithCache(in.Cache))
	}
	if in.Publisher != nil {
		opts = append(opts, services.WithPublisher(in.Publisher))
	}
	return opts
}

// Close releases every connection BuildInfra opened.
func (in *Infra) Close() error {
	var errs []error
	for i := len(in.closers) - 1; i >= 0; i-- {
		errs = append(errs, in.closers[i]())
	}
	return errors.Join(errs...)
}

// SignalContext is cancelled on SIGINT or SIGTERM. The signal is logged.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ShutdownContext bounds the clean-up that follows a shutdown signal.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
