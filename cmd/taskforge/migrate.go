package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Strob0t/TaskForge/internal/adapter/postgres"
	"github.com/Strob0t/TaskForge/internal/adapter/sqlite"
	"github.com/Strob0t/TaskForge/internal/config"
)

// migrator dispatches schema operations to the configured driver.
type migrator struct {
	up      func(ctx context.Context, target string) error
	down    func(ctx context.Context, target string, steps int) error
	version func(ctx context.Context, target string) (int64, error)
	target  string
}

func migratorFor(cfg *config.Config) migrator {
	if cfg.Storage.Driver == "sqlite" {
		return migrator{sqlite.RunMigrations, sqlite.RollbackMigrations, sqlite.MigrationVersion, cfg.Storage.SQLitePath}
	}
	return migrator{postgres.RunMigrations, postgres.RollbackMigrations, postgres.MigrationVersion, cfg.Postgres.DSN}
}

func newMigrateCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			m := migratorFor(cfg)
			if err := m.up(cmd.Context(), m.target); err != nil {
				return err
			}
			return printVersion(cmd, m)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			m := migratorFor(cfg)
			if err := m.down(cmd.Context(), m.target, steps); err != nil {
				return err
			}
			return printVersion(cmd, m)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			return printVersion(cmd, migratorFor(cfg))
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, m migrator) error {
	v, err := m.version(cmd.Context(), m.target)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
