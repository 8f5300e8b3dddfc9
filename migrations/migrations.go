// Package migrations embeds the ledger schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed *.sql
var files embed.FS

// New builds a migrator over db using the embedded SQL files.
func New(db *sql.DB, databaseName string) (*migrate.Migrate, error) {
	source, err := iofs.New(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver instance: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, databaseName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func Up(m *migrate.Migrate, log zerolog.Logger) error {
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no new migrations found")
			return nil
		}
		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			return fmt.Errorf("migration failed: dirty database version %d", dirtyErr.Version)
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	version, _, _ := m.Version()
	log.Info().Uint("version", version).Msg("migrations applied")
	return nil
}

// Down reverts the last applied migration.
func Down(m *migrate.Migrate, log zerolog.Logger) error {
	if err := m.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, fs.ErrNotExist) {
			log.Info().Msg("nothing to revert")
			return nil
		}
		return fmt.Errorf("rollback failed: %w", err)
	}
	log.Info().Msg("last migration reverted")
	return nil
}
