package postgres

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Standalone migration commands
// ─────────────────────────────────────────────────────────────────────────────

// These helpers open their own migrate instance from a DSN and a source URL
// such as "file://migrations". They back the migrate CLI subcommands.

// MigrateUp applies every pending migration. No pending migration is not an
// error.
func MigrateUp(dbURL, migrationsPath string) error {
	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create migrate instance")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations")
	}
	return nil
}

// RollbackMigration reverts the given number of steps.
func RollbackMigration(dbURL, migrationsPath string, steps int) error {
	if steps <= 0 {
		return errors.InvalidParam("steps must be greater than 0").WithDetailf("steps=%d", steps)
	}

	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create migrate instance")
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeBadRequest, "no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations").WithDetailf("steps=%d", steps)
	}
	return nil
}

// MigrationStatus reports the applied version and whether a previous run left
// the schema dirty. A database without any migration reports version 0.
func MigrationStatus(dbURL, migrationsPath string) (version uint, dirty bool, err error) {
	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeInternal, "failed to create migrate instance")
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return version, dirty, nil
}
