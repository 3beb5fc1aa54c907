package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations brings the schema up to date. An empty migrationsPath applies
// the migrations compiled into the binary.
func RunMigrations(databaseURL, migrationsPath string) error {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}

	m, err := newMigrator(migrationsPath, driver)
	if err != nil {
		return err
	}
	defer m.Close()

	before, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		// A failed run left the version flagged; retry it from the recorded step.
		slog.Warn("schema is dirty, forcing version", "version", before)
		if err := m.Force(int(before)); err != nil {
			return fmt.Errorf("force version %d: %w", before, err)
		}
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("schema up to date", "version", before)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	after, _, _ := m.Version()
	slog.Info("schema migrated", "from", before, "to", after)
	return nil
}

func newMigrator(path string, driver database.Driver) (*migrate.Migrate, error) {
	if path != "" {
		m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("migrations from %s: %w", path, err)
		}
		return m, nil
	}

	src, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return m, nil
}
