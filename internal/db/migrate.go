package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	// registers the postgres database driver for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/diewo77/invoice-analytics/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// requiredTables must exist once the schema is in place.
var requiredTables = []string{"documents", "vendors", "customers", "invoices", "payments", "line_items"}

// Migrate brings the schema up to date. With sqlMigrations set the embedded
// SQL files are applied through golang-migrate (postgres only); otherwise
// GORM's AutoMigrate is used.
func Migrate(gdb *gorm.DB, sqlMigrations bool, migrationURL string) error {
	if sqlMigrations {
		if gdb.Dialector.Name() != DriverPostgres {
			return errors.New("sql migrations require the postgres driver")
		}
		if err := RunSQLMigrations(migrationURL); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range models.All() {
			if err := gdb.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}

	for _, table := range requiredTables {
		if !gdb.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded migrations to the database at url.
func RunSQLMigrations(url string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
