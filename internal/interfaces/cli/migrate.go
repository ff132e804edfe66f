package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/postgres"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
)

// MigrationState is the schema version as reported by migrate status.
type MigrationState struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s MigrationState) String() string {
	if s.Dirty {
		return fmt.Sprintf("schema version %d (dirty)", s.Version)
	}
	return fmt.Sprintf("schema version %d", s.Version)
}

// migrator is the set of migration operations the command drives.
type migrator struct {
	up       func(dbURL, source string) error
	rollback func(dbURL, source string, steps int) error
	status   func(dbURL, source string) (uint, bool, error)
}

var defaultMigrator = migrator{
	up:       postgres.MigrateUp,
	rollback: postgres.RollbackMigration,
	status:   postgres.MigrationStatus,
}

func newMigrateCommand() *cobra.Command {
	return newMigrateCommandWith(defaultMigrator)
}

func newMigrateCommandWith(m migrator) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the catalogue database schema",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default: database.migration_path)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, dbURL, source, err := migrationTarget(cmd, path)
			if err != nil {
				return err
			}
			cliCtx.Logger.Info("applying migrations", logging.String("source", source))
			if err := m.up(dbURL, source); err != nil {
				return err
			}
			PrintSuccess(cmd, "migrations applied")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, dbURL, source, err := migrationTarget(cmd, path)
			if err != nil {
				return err
			}
			cliCtx.Logger.Info("rolling back migrations", logging.String("source", source), logging.Int("steps", steps))
			if err := m.rollback(dbURL, source, steps); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, dbURL, source, err := migrationTarget(cmd, path)
			if err != nil {
				return err
			}
			version, dirty, err := m.status(dbURL, source)
			if err != nil {
				return err
			}
			return PrintResult(cmd, MigrationState{Version: version, Dirty: dirty})
		},
	})

	return cmd
}

func migrationTarget(cmd *cobra.Command, path string) (*CLIContext, string, string, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, "", "", err
	}
	return cliCtx, postgres.DSN(cliCtx.Config.Database), migrationSource(cliCtx.Config.Database, path), nil
}

// migrationSource turns a directory into a golang-migrate source URL. Values
// that already carry a scheme are kept as is.
func migrationSource(cfg config.DatabaseConfig, override string) string {
	dir := override
	if dir == "" {
		dir = cfg.MigrationPath
	}
	if strings.Contains(dir, "://") {
		return dir
	}
	return "file://" + filepath.ToSlash(dir)
}
