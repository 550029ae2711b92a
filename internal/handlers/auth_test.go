// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/go-magiclink/internal/clock"
	"codeberg.org/oliverandrich/go-magiclink/internal/config"
	"codeberg.org/oliverandrich/go-magiclink/internal/handlers"
	"codeberg.org/oliverandrich/go-magiclink/internal/i18n"
	"codeberg.org/oliverandrich/go-magiclink/internal/middleware"
	"codeberg.org/oliverandrich/go-magiclink/internal/repository"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/audit"
	authsvc "codeberg.org/oliverandrich/go-magiclink/internal/services/auth"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/codegen"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/email"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/session"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/token"
	"codeberg.org/oliverandrich/go-magiclink/internal/testutil"
)

const testHashKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func withLocale(c echo.Context) echo.Context {
	lang := i18n.MatchLanguage(c.Request().Header.Get("Accept-Language"))
	c.SetRequest(c.Request().WithContext(i18n.WithLocale(c.Request().Context(), lang)))
	return c
}

type apiFixture struct {
	repo   *repository.Repository
	clock  *clock.Manual
	sender *email.MemorySender
	echo   *echo.Echo
}

func newAPIFixture(t *testing.T, exposeCodes bool) *apiFixture {
	t.Helper()
	repo, clk := testutil.NewTestDBWithClock(t)
	sender := email.NewMemorySender()

	mailer, err := email.NewService(sender, "http://localhost:8080", email.DefaultTemplate, 300*time.Second)
	require.NoError(t, err)
	sessions, err := session.NewManager(&config.SessionConfig{CookieName: "session", MaxAge: 3600, HashKey: testHashKey}, false)
	require.NoError(t, err)
	issuer := token.NewIssuer(repo, "secret", time.Hour, "", clk)

	engine := authsvc.NewEngine(authsvc.Deps{
		Users:     repo,
		Codes:     repo,
		Tokens:    issuer,
		Notifier:  mailer,
		Audit:     audit.NewRepositorySink(repo),
		Generator: codegen.New(0),
		Clock:     clk,
	}, 300*time.Second)

	e := echo.New()
	e.HTTPErrorHandler = handlers.ErrorHandler
	e.Use(middleware.Locale())
	e.Use(middleware.LoadUser(issuer, repo, sessions))

	h := handlers.NewAuth(engine, sessions, exposeCodes)
	api := e.Group("/api")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/send-code", h.SendCode)
	api.POST("/logout", h.Logout)
	api.POST("/change-email", h.ChangeEmail, middleware.RequireAuth)
	api.GET("/me", h.Me, middleware.RequireAuth)
	e.GET("/activate/:code", h.ConfirmActivation)
	e.POST("/activate/:code", h.Activate)

	return &apiFixture{repo: repo, clock: clk, sender: sender, echo: e}
}

func (f *apiFixture) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func (f *apiFixture) sendCode(t *testing.T, addr string) string {
	t.Helper()
	rec, body := f.do(t, http.MethodPost, "/api/send-code", `{"email":"`+addr+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return body["code"].(string)
}

func (f *apiFixture) register(t *testing.T, code string) string {
	t.Helper()
	rec, body := f.do(t, http.MethodPost, "/api/register", `{"code":"`+code+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return body["access_token"].(string)
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestSendCode(t *testing.T) {
	f := newAPIFixture(t, true)

	rec, body := f.do(t, http.MethodPost, "/api/send-code", `{"email":"a@x.com"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Your code was sent. Please check your email.", body["message"])
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, true, body["delivered"])

	code, ok := body["code"].(string)
	require.True(t, ok)
	msgs := f.sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@x.com", msgs[0].To)
	assert.Contains(t, msgs[0].Text, "http://localhost:8080/activate/"+code)
}

func TestSendCode_HidesCode(t *testing.T) {
	f := newAPIFixture(t, false)

	rec, body := f.do(t, http.MethodPost, "/api/send-code", `{"email":"a@x.com"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, body, "code")
}

func TestSendCode_DeliveryFailure(t *testing.T) {
	f := newAPIFixture(t, true)
	f.sender.FailWith(errors.New("smtp down"))

	rec, body := f.do(t, http.MethodPost, "/api/send-code", `{"email":"a@x.com"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "warning", body["status"])
	assert.Equal(t, false, body["delivered"])
	assert.NotEmpty(t, body["code"])
}

func TestSendCode_Validation(t *testing.T) {
	f := newAPIFixture(t, true)

	rec, body := f.do(t, http.MethodPost, "/api/send-code", `{"email":"nope"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, map[string]any{"email": "Must be a valid email address."}, body["errors"])
}

func TestSendCode_MalformedBody(t *testing.T) {
	f := newAPIFixture(t, true)

	rec, body := f.do(t, http.MethodPost, "/api/send-code", `{"email":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "The request body could not be read.", body["message"])
}

func TestRegisterFlow(t *testing.T) {
	f := newAPIFixture(t, true)
	code := f.sendCode(t, "a@x.com")

	rec, body := f.do(t, http.MethodPost, "/api/register", `{"code":"`+code+`"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["created"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.NotEmpty(t, body["access_token"])

	rec, body = f.do(t, http.MethodPost, "/api/register", `{"code":"`+code+`"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", body["status"])
}

func TestRegister_Expired(t *testing.T) {
	f := newAPIFixture(t, true)
	code := f.sendCode(t, "c@x.com")
	f.clock.Advance(301 * time.Second)

	rec, body := f.do(t, http.MethodPost, "/api/register", `{"code":"`+code+`"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid activation code. Please request a new one.", body["message"])
}

func TestLogin(t *testing.T) {
	f := newAPIFixture(t, true)
	f.register(t, f.sendCode(t, "a@x.com"))

	rec, body := f.do(t, http.MethodPost, "/api/login", `{"email":"a@x.com"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["access_token"])

	rec, _ = f.do(t, http.MethodPost, "/api/login", `{"email":"unknown@x.com"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	f := newAPIFixture(t, true)
	tok := f.register(t, f.sendCode(t, "a@x.com"))

	rec, body := f.do(t, http.MethodGet, "/api/me", "", bearer(tok))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", body["user"].(map[string]any)["email"])

	rec, body = f.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "You are not logged in.", body["message"])
}

func TestLogout(t *testing.T) {
	f := newAPIFixture(t, true)
	tok := f.register(t, f.sendCode(t, "a@x.com"))

	rec, body := f.do(t, http.MethodPost, "/api/logout", "", bearer(tok))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.InDelta(t, 1, body["revoked"], 0)

	// The revoked token no longer authenticates.
	rec, body = f.do(t, http.MethodPost, "/api/logout", "", bearer(tok))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "warning", body["status"])
	assert.Equal(t, "You are already logged out.", body["message"])
}

func TestChangeEmail(t *testing.T) {
	f := newAPIFixture(t, true)
	tok := f.register(t, f.sendCode(t, "a@x.com"))

	rec, body := f.do(t, http.MethodPost, "/api/change-email", `{"new_email":"b@x.com"}`, bearer(tok))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "a@x.com", body["email"])

	entries, err := f.repo.ListEmailAuditEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b@x.com", entries[1].NewEmail)

	rec, body = f.do(t, http.MethodPost, "/api/change-email", `{"email":"a@x.com","new_email":"a@x.com"}`, bearer(tok))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "warning", body["status"])

	rec, _ = f.do(t, http.MethodPost, "/api/change-email", `{"new_email":"b@x.com"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActivate(t *testing.T) {
	f := newAPIFixture(t, true)
	code := f.sendCode(t, "a@x.com")
	de := map[string]string{"Accept-Language": "de"}

	// Following the link only asks for confirmation.
	rec, _ := f.do(t, http.MethodGet, "/activate/"+code, "", de)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Anmeldung bestätigen")
	assert.Contains(t, rec.Body.String(), `<form method="post" action="/activate/`+code+`">`)
	assert.Empty(t, rec.Result().Cookies())

	n, err := f.repo.CountActivationCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "GET must not consume the code")

	rec, _ = f.do(t, http.MethodPost, "/activate/"+code, "", de)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sie sind angemeldet")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)

	// The cookie authenticates API calls.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookies[0])
	meRec := httptest.NewRecorder()
	f.echo.ServeHTTP(meRec, req)
	assert.Equal(t, http.StatusOK, meRec.Code)

	// The link is single-use.
	rec, _ = f.do(t, http.MethodGet, "/activate/"+code, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivate_RepeatedGetKeepsCode(t *testing.T) {
	f := newAPIFixture(t, true)
	code := f.sendCode(t, "a@x.com")

	for range 3 {
		rec, _ := f.do(t, http.MethodGet, "/activate/"+code, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	f.register(t, code)
}

func TestActivate_UnknownCode(t *testing.T) {
	f := newAPIFixture(t, true)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec, _ := f.do(t, method, "/activate/doesnotexist", "", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code, method)
		assert.Contains(t, rec.Body.String(), "Login failed", method)
		assert.NotContains(t, rec.Body.String(), "<form", method)
		assert.Empty(t, rec.Result().Cookies(), method)
	}
}

func TestActivate_ExpiredCode(t *testing.T) {
	f := newAPIFixture(t, true)
	code := f.sendCode(t, "a@x.com")
	f.clock.Advance(301 * time.Second)

	rec, _ := f.do(t, http.MethodGet, "/activate/"+code, "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Login failed")
	assert.NotContains(t, rec.Body.String(), "<form")
}
