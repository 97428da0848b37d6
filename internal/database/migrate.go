package database

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file source driver

	"github.com/jonesrussell/sherlock-center/internal/logger"
)

// newMigrator builds a migrate instance for the given database connection.
// Migrations are read from the migrations directory next to the binary
// (absolute path so the working directory does not matter in Docker).
func newMigrator(db *sql.DB) (*migrate.Migrate, string, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, "", fmt.Errorf("create postgres driver: %w", err)
	}

	migrationsPath := "migrations"
	if absPath, pathErr := filepath.Abs(migrationsPath); pathErr == nil {
		migrationsPath = absPath
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return nil, "", fmt.Errorf("create migrate instance: %w", err)
	}

	return m, migrationsPath, nil
}

// RunMigrations runs all pending migrations.
func RunMigrations(db *sql.DB, log logger.Logger) error {
	m, path, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No pending migrations",
				logger.String("migrations_path", path),
			)
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	log.Info("Migrations applied successfully",
		logger.String("migrations_path", path),
	)

	return nil
}

// MigrateDown rolls back N migrations (default: 1).
func MigrateDown(db *sql.DB, steps int, log logger.Logger) error {
	m, path, err := newMigrator(db)
	if err != nil {
		return err
	}

	if steps <= 0 {
		steps = 1
	}

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No migrations to rollback",
				logger.String("migrations_path", path),
			)
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}

	log.Info("Migrations rolled back successfully",
		logger.String("migrations_path", path),
		logger.Int("steps", steps),
	)

	return nil
}

// MigrationVersion returns the current migration version.
func MigrationVersion(db *sql.DB) (uint, bool, error) {
	m, _, err := newMigrator(db)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}

	return version, dirty, nil
}
