// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/go-magiclink/internal/auth"
	"codeberg.org/oliverandrich/go-magiclink/internal/config"
	"codeberg.org/oliverandrich/go-magiclink/internal/i18n"
	"codeberg.org/oliverandrich/go-magiclink/internal/metrics"
	"codeberg.org/oliverandrich/go-magiclink/internal/middleware"
	"codeberg.org/oliverandrich/go-magiclink/internal/models"
	"codeberg.org/oliverandrich/go-magiclink/internal/repository"
	authsvc "codeberg.org/oliverandrich/go-magiclink/internal/services/auth"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/session"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/token"
	"codeberg.org/oliverandrich/go-magiclink/internal/testutil"
)

type authFixture struct {
	repo     *repository.Repository
	issuer   *token.Issuer
	sessions *session.Manager
	user     *models.User
	echo     *echo.Echo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	sessions, err := session.NewManager(&config.SessionConfig{CookieName: "session", MaxAge: 3600}, false)
	require.NoError(t, err)

	f := &authFixture{
		repo:     repo,
		issuer:   token.NewIssuer(repo, "secret", time.Hour, "", nil),
		sessions: sessions,
		user:     testutil.NewTestUser(t, repo, "a@x.com", true),
		echo:     echo.New(),
	}
	f.echo.Use(middleware.LoadUser(f.issuer, repo, sessions))
	f.echo.GET("/whoami", func(c echo.Context) error {
		user := auth.GetUser(c.Request().Context())
		if user == nil {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, user.Email)
	})
	f.echo.GET("/private", func(c echo.Context) error {
		return c.String(http.StatusOK, "secret")
	}, middleware.RequireAuth)
	return f
}

func (f *authFixture) mint(t *testing.T) string {
	t.Helper()
	tok, err := f.issuer.Mint(context.Background(), f.user)
	require.NoError(t, err)
	return tok
}

func (f *authFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func TestLoadUser_BearerToken(t *testing.T) {
	f := newAuthFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+f.mint(t))

	rec := f.do(req)

	assert.Equal(t, "a@x.com", rec.Body.String())
}

func TestLoadUser_SessionCookie(t *testing.T) {
	f := newAuthFixture(t)
	cookie, err := f.sessions.Create(f.mint(t))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(cookie)

	rec := f.do(req)

	assert.Equal(t, "a@x.com", rec.Body.String())
}

func TestLoadUser_Anonymous(t *testing.T) {
	f := newAuthFixture(t)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"garbage token", "Bearer not-a-token"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := f.do(req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "anonymous", rec.Body.String())
		})
	}
}

func TestLoadUser_RevokedToken(t *testing.T) {
	f := newAuthFixture(t)
	tok := f.mint(t)
	_, err := f.issuer.RevokeAll(context.Background(), f.user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := f.do(req)

	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestRequireAuth(t *testing.T) {
	f := newAuthFixture(t)

	var gotErr error
	f.echo.HTTPErrorHandler = func(err error, c echo.Context) {
		gotErr = err
		_ = c.NoContent(http.StatusUnauthorized)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.ErrorIs(t, gotErr, authsvc.ErrNotAuthenticated)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+f.mint(t))
	rec = f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "secret", rec.Body.String())
}

func TestLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	e := echo.New()
	e.Use(middleware.Locale())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, i18n.GetLocale(c.Request().Context()))
	})

	tests := []struct {
		header   string
		expected string
	}{
		{"de-DE,de;q=0.9,en;q=0.8", "de"},
		{"en-US", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Language", tt.header)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Body.String())
		})
	}
}

func TestRequestLogger_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := echo.New()
	e.Use(middleware.RequestLogger(m))
	e.GET("/activate/:code", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activate/abc", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1, promtest.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/activate/:code", "200")), 0)
}
