// Package db opens the analytics store, migrates its schema and loads
// document exports into it.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/invoice-analytics/internal/config"
	applog "github.com/diewo77/invoice-analytics/internal/log"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Connect opens the configured store. Postgres is retried to give the
// container time to start; SQLite is opened once.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *applog.Logger) (*gorm.DB, error) {
	log = log.WithComponent(applog.ComponentStorage)

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var dialector gorm.Dialector
	attempts := 1
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
		attempts = connectAttempts
		log.Info("connecting to database", "driver", cfg.Driver, "host", cfg.Host, "port", cfg.Port, "dbname", cfg.DBName)
	case DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLitePath)
		log.Info("opening database", "driver", cfg.Driver, "path", cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	var gdb *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		gdb, err = gorm.Open(dialector, gcfg)
		if err == nil {
			err = Ping(ctx, gdb)
		}
		if err == nil {
			break
		}
		if i < attempts-1 {
			log.Warn("database not ready, retrying", "attempt", i+1, "of", attempts, applog.FieldError, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectBackoff):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	return gdb, nil
}

// Ping runs a trivial query against the store.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	if err := gdb.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}
