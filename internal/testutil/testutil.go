// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/go-magiclink/internal/clock"
	"codeberg.org/oliverandrich/go-magiclink/internal/database"
	"codeberg.org/oliverandrich/go-magiclink/internal/models"
	"codeberg.org/oliverandrich/go-magiclink/internal/repository"
)

// Epoch is the starting time of manual test clocks.
var Epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T, opts ...repository.Option) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db, opts...)
}

// NewFileTestDB creates a SQLite database file in t.TempDir(). Unlike
// :memory: it is served by a pool of connections, so concurrent callers
// really overlap.
func NewFileTestDB(t *testing.T, opts ...repository.Option) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db, opts...)
}

// NewTestDBWithClock is NewTestDB with a manual clock shared by the repository.
func NewTestDBWithClock(t *testing.T) (*repository.Repository, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(Epoch)
	_, repo := NewTestDB(t, repository.WithClock(clk))
	return repo, clk
}

// NewFileTestDBWithClock is NewFileTestDB with a manual clock shared by the
// repository.
func NewFileTestDBWithClock(t *testing.T) (*repository.Repository, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(Epoch)
	_, repo := NewFileTestDB(t, repository.WithClock(clk))
	return repo, clk
}

// NewTestUser creates a test user in the database.
func NewTestUser(t *testing.T, repo *repository.Repository, email string, verified bool) *models.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), email, verified)
	require.NoError(t, err)
	return user
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
