// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"database/sql"
	"embed"
	"path"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

func withGoose(dialect string, fn func(dir string) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	gooseDialect := "sqlite3"
	if dialect == DialectPostgres {
		gooseDialect = "postgres"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}

	return fn(path.Join("migrations", dialect))
}

// RunMigrations runs all pending goose migrations for the dialect.
func RunMigrations(db *sql.DB, dialect string) error {
	return withGoose(dialect, func(dir string) error {
		return goose.Up(db, dir)
	})
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sql.DB, dialect string) error {
	return withGoose(dialect, func(dir string) error {
		return goose.Down(db, dir)
	})
}

// MigrateReset rolls back all migrations.
func MigrateReset(db *sql.DB, dialect string) error {
	return withGoose(dialect, func(dir string) error {
		return goose.Reset(db, dir)
	})
}
