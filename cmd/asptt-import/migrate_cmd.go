package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/iota-uz/asptt-sync/migrations"
)

func newMigrateCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the database migrations",
	}
	cmd.AddCommand(
		newMigrateStepCmd(g, "up", "Apply all pending migrations", goose.Up),
		newMigrateStepCmd(g, "down", "Roll back the latest migration", goose.Down),
		newMigrateStepCmd(g, "status", "Print the migration status", goose.Status),
	)
	return cmd
}

func newMigrateStepCmd(g *globalOptions, use, short string, step func(*sql.DB, string, ...goose.OptionsFunc) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger, err := loadConfig(g)
			if err != nil {
				return err
			}
			db, err := sql.Open("postgres", conf.Database.URL())
			if err != nil {
				return withCode(exitDB, fmt.Errorf("open db: %w", err))
			}
			defer func() { _ = db.Close() }()
			if err := db.PingContext(cmd.Context()); err != nil {
				return withCode(exitDB, fmt.Errorf("ping db: %w", err))
			}

			goose.SetLogger(logger.WithField("command", "migrate "+use))
			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return withCode(exitUsage, err)
			}
			if err := step(db, migrations.AspttDir); err != nil {
				return withCode(exitDBWrite, fmt.Errorf("migrate %s: %w", use, err))
			}
			version, err := goose.GetDBVersion(db)
			if err != nil {
				return withCode(exitDB, fmt.Errorf("read db version: %w", err))
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"status":  "ok",
				"command": use,
				"version": version,
			})
		},
	}
}
