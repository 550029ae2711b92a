// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/go-magiclink/internal/database"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: migrateAction("up", nil),
			},
			{
				Name:   "down",
				Usage:  "Roll back the most recent migration",
				Action: migrateAction("down", database.MigrateDown),
			},
			{
				Name:   "reset",
				Usage:  "Roll back all migrations",
				Action: migrateAction("reset", database.MigrateReset),
			},
		},
	}
}

// migrateAction opens the database, which applies pending migrations, and
// then runs fn if set.
func migrateAction(name string, fn func(*sql.DB, string) error) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		dsn := cmd.String("database-dsn")
		db, err := database.Open(dsn)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if fn != nil {
			if err := fn(db.DB, database.Dialect(dsn)); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
		}
		slog.Info("migration finished", "command", name, "dialect", database.Dialect(dsn))
		return nil
	}
}
