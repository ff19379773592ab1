package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

// RunMigrations applies every pending schema migration against the
// primary. The server refuses to start when this fails; a half-migrated
// schema can reject or mispost transfers.
func RunMigrations(databaseURL, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info().Msg("schema up to date")
		return nil
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema migrated")
	return nil
}

// RunMigrationsDown rolls back the most recent migration. Ops tooling
// only; the server never calls it.
func RunMigrationsDown(databaseURL, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	log.Info().Msg("last migration rolled back")
	return nil
}
