// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vinovest/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"codeberg.org/oliverandrich/go-magiclink/internal/clock"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
)

const pgUniqueViolation = "23505"

// Repository provides all database access on top of sqlx.
type Repository struct {
	db    *sqlx.DB
	clock clock.Clock
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock sets the clock used for created_at/updated_at timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Repository) {
		r.clock = c
	}
}

// New creates a new Repository instance.
func New(db *sqlx.DB, opts ...Option) *Repository {
	r := &Repository{db: db, clock: clock.System}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DB returns the underlying connection.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// rebind converts ? placeholders to the driver's bindvar style.
func (r *Repository) rebind(query string) string {
	return r.db.Rebind(query)
}

func (r *Repository) now() time.Time {
	return r.clock.Now().UTC()
}

// mapErr converts driver errors to repository errors. nil stays nil.
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var sErr *sqlite.Error
	if errors.As(err, &sErr) {
		code := sErr.Code()
		unique := code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sErr.Error(), "UNIQUE"))
		if unique {
			return fmt.Errorf("%w: %s", ErrDuplicate, sErr.Error())
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}

	return err
}
