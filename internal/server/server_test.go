// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/go-magiclink/internal/clock"
	"codeberg.org/oliverandrich/go-magiclink/internal/config"
	"codeberg.org/oliverandrich/go-magiclink/internal/i18n"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/audit"
	"codeberg.org/oliverandrich/go-magiclink/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			BaseURL:         "http://localhost:8080",
			MaxBodySize:     1,
			ShutdownTimeout: time.Second,
		},
		TLS:     config.TLSConfig{Mode: "off"},
		Auth:    config.AuthConfig{ActivationTTL: 300 * time.Second, CodeLength: 40, ExposeCodes: true},
		Token:   config.TokenConfig{Secret: "secret", TTL: time.Hour},
		Session: config.SessionConfig{CookieName: "session", MaxAge: 3600},
		Mail:    config.MailConfig{Template: "login_link"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	require.NoError(t, i18n.Init())
	db, _ := testutil.NewTestDB(t)
	app, err := New(cfg, db, clock.System)
	require.NoError(t, err)
	return app
}

func request(app *App, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	return rec
}

func TestNew_Routes(t *testing.T) {
	app := newTestApp(t, testConfig())

	rec := request(app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(app, http.MethodPost, "/api/send-code", `{"email":"a@x.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code := body["code"].(string)

	rec = request(app, http.MethodPost, "/api/register", `{"code":"`+code+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(app, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(app, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestNew_Metrics(t *testing.T) {
	app := newTestApp(t, testConfig())
	request(app, http.MethodPost, "/api/login", `{"email":"a@x.com"}`)

	rec := request(app, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `magiclink_operations_total{operation="login",outcome="user_not_found_or_unverified"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNew_TrailingSlashRedirect(t *testing.T) {
	app := newTestApp(t, testConfig())

	rec := request(app, http.MethodGet, "/health/", "")

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/health", rec.Header().Get("Location"))
}

func TestNew_FileAuditSink(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.File = filepath.Join(t.TempDir(), "emails.txt")
	app := newTestApp(t, cfg)

	rec := request(app, http.MethodPost, "/api/send-code", `{"email":"a@x.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	rec = request(app, http.MethodPost, "/api/register", `{"code":"`+body["code"].(string)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	content, err := os.ReadFile(cfg.Audit.File)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com-\n", string(content))
}

func TestNewAuditSink(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	sink, err := newAuditSink(&config.AuditConfig{}, repo)
	require.NoError(t, err)
	assert.IsType(t, &audit.RepositorySink{}, sink)

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	_, err = newAuditSink(&config.AuditConfig{File: filepath.Join(blocker, "emails.txt")}, repo)
	assert.Error(t, err)
}

func TestNewSender_InvalidSMTP(t *testing.T) {
	cfg := testConfig()
	cfg.Mail.Host = "smtp.example.com"
	cfg.Mail.From = ""

	db, _ := testutil.NewTestDB(t)
	_, err := New(cfg, db, clock.System)

	assert.Error(t, err)
}

func TestServe_GracefulShutdown(t *testing.T) {
	app := newTestApp(t, testConfig())

	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := fmt.Sprintf("http://%s/health", ln.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.serve(ctx, ln, &TLSResult{Mode: TLSModeOff})
	}()

	require.Eventually(t, func() bool {
		req, reqErr := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
		if reqErr != nil {
			return false
		}
		resp, getErr := http.DefaultClient.Do(req)
		if getErr != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
