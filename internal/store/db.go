// Package store provides durable storage for the bot credential and the
// recipient registry, backed by a single SQLite file.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/telegram-utils/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// ErrConfig indicates that the store file exists but could not be read or
// migrated. A missing file is not an error; it is treated as a fresh install.
var ErrConfig = errors.New("invalid store file")

// NewDB opens the store file at dbPath, creating parent directories and the
// file itself if absent, and applies migrations.
func NewDB(dbPath string) (*sqlx.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	// SQLite does not support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := applyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing store after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	slog.Debug("Store opened and migrations applied", "path", dbPath)
	return db, nil
}

// CloseDB closes the store connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing store connection", "error", err)
	}
}

func applyMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite3 database driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
