package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/diewo77/invoice-analytics/internal/cache"
	"github.com/diewo77/invoice-analytics/internal/chat"
	"github.com/diewo77/invoice-analytics/internal/config"
	"github.com/diewo77/invoice-analytics/internal/db"
	"github.com/diewo77/invoice-analytics/internal/events"
	"github.com/diewo77/invoice-analytics/internal/jobs"
	applog "github.com/diewo77/invoice-analytics/internal/log"
	"github.com/diewo77/invoice-analytics/internal/services"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	importFlag      = flag.String("import", "", "Load a JSON document export into the store and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := applog.DefaultConfig()
	logCfg.Level = applog.ParseLevel(cfg.App.LogLevel)
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := db.Migrate(gdb, cfg.App.Migrations, cfg.Database.MigrationURL()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if *migrateOnlyFlag {
		logger.Info("migrations completed successfully", applog.FieldOperation, applog.OpMigrate)
		return nil
	}
	if *importFlag != "" {
		report, err := db.ImportFile(ctx, gdb, *importFlag, logger)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		if report.Failed > 0 {
			logger.Warn("import finished with failures", applog.FieldOperation, applog.OpImport, "failed", report.Failed)
		}
		return nil
	}

	aggregates := cache.NewLRUCache[any](cfg.Cache.Size, cfg.Cache.TTL)
	analytics := services.NewAnalyticsService(gdb,
		services.WithCache(aggregates),
		services.WithLogger(logger),
	)

	chatOpts := []chat.Option{chat.WithLogger(logger)}
	if cfg.Delegate.BaseURL != "" {
		delegate := chat.NewHTTPDelegate(cfg.Delegate.BaseURL, cfg.Delegate.Timeout)
		chatOpts = append(chatOpts, chat.WithDelegate(delegate))
		logger.Info("chat delegate enabled", "endpoint", delegate.Endpoint(), "timeout", cfg.Delegate.Timeout)
	}
	dispatcher := chat.NewDispatcher(services.NewChatStore(gdb), chatOpts...)

	publisher := newPublisher(cfg.Events, logger)
	defer publisher.Close()

	scheduler := jobs.NewScheduler(time.UTC, logger)
	if err := scheduler.RegisterCacheRefresh(cfg.Cache.RefreshCron, analytics); err != nil {
		return err
	}
	if cfg.Cache.TTL > 0 {
		if err := scheduler.AddJob("cache-sweep", "@every "+cfg.Cache.TTL.String(), sweepCache(aggregates, logger)); err != nil {
			return err
		}
	}
	scheduler.Start()

	app := NewApp(Deps{
		DB:         gdb,
		Analytics:  analytics,
		Dispatcher: dispatcher,
		Events:     publisher,
		Logger:     logger,
		CORSOrigin: cfg.Server.CORSOrigin,
		APIBase:    cfg.App.APIBase,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "dev", cfg.App.Dev, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", applog.FieldError, err)
	}
	app.Drain()
	scheduler.Stop(shutdownCtx)
	logger.Info("server stopped gracefully")
	return nil
}

// sweepCache drops expired aggregates.
func sweepCache(c *cache.LRUCache[any], logger *applog.Logger) func(context.Context) error {
	log := logger.WithComponent(applog.ComponentCache)
	return func(context.Context) error {
		removed := c.CleanExpired()
		st := c.Stats()
		log.Debug("cache swept", applog.FieldOperation, applog.OpSweep, "removed", removed, "size", st.Size, "max_size", st.MaxSize)
		return nil
	}
}

// newPublisher connects to AMQP when configured. A broker that cannot be
// reached disables events instead of stopping the server.
func newPublisher(cfg config.EventsConfig, logger *applog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Noop{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange, cfg.RoutingKey, logger)
	if err != nil {
		logger.Warn("chat query events disabled", applog.FieldError, err)
		return events.Noop{}
	}
	logger.Info("chat query events enabled", "exchange", cfg.Exchange, "routing_key", cfg.RoutingKey)
	return pub
}
