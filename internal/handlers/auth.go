// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/go-magiclink/internal/auth"
	"codeberg.org/oliverandrich/go-magiclink/internal/i18n"
	authsvc "codeberg.org/oliverandrich/go-magiclink/internal/services/auth"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/session"
	"codeberg.org/oliverandrich/go-magiclink/internal/templates"
)

// AuthHandlers exposes the authentication engine over HTTP.
type AuthHandlers struct {
	engine      *authsvc.Engine
	sessions    *session.Manager
	exposeCodes bool
}

// NewAuth creates a new AuthHandlers instance. With exposeCodes set,
// send-code responses include the generated code.
func NewAuth(engine *authsvc.Engine, sessions *session.Manager, exposeCodes bool) *AuthHandlers {
	return &AuthHandlers{
		engine:      engine,
		sessions:    sessions,
		exposeCodes: exposeCodes,
	}
}

// CodeRequest is the request body for redeeming an activation code.
type CodeRequest struct {
	Code string `json:"code" form:"code"`
}

// EmailRequest is the request body for login and send-code.
type EmailRequest struct {
	Email string `json:"email" form:"email"`
}

// ChangeEmailRequest is the request body for recording an email change.
// Email defaults to the address of the authenticated user.
type ChangeEmailRequest struct {
	Email    string `json:"email" form:"email"`
	NewEmail string `json:"new_email" form:"new_email"`
}

// Register redeems an activation code and returns an access token.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req CodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.engine.Register(c.Request().Context(), req.Code)
	if err != nil {
		return err
	}

	return success(c, "register_success", map[string]any{
		"user":         res.User,
		"access_token": res.AccessToken,
		"created":      res.Created,
	})
}

// Login issues an access token for a verified user.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.engine.Login(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}

	return success(c, "login_success", map[string]any{
		"user":         res.User,
		"access_token": res.AccessToken,
	})
}

// SendCode issues a new activation code and mails the activation link.
func (h *AuthHandlers) SendCode(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.engine.SendCode(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"email":     res.Email,
		"delivered": res.Delivered,
	}
	if h.exposeCodes {
		payload["code"] = res.Code
	}

	if !res.Delivered {
		return warning(c, "send_code_delivery_failed", payload)
	}
	return success(c, "send_code_success", payload)
}

// Logout revokes all tokens of the current user and clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	res, err := h.engine.Logout(c.Request().Context(), auth.GetUser(c.Request().Context()))
	if err != nil {
		return err
	}

	if h.sessions != nil {
		c.SetCookie(h.sessions.Clear())
	}

	if res.AlreadyLoggedOut {
		return warning(c, "logout_already", nil)
	}
	return success(c, "logout_success", map[string]any{
		"revoked": res.Revoked,
	})
}

// ChangeEmail records an email change for the current user.
func (h *AuthHandlers) ChangeEmail(c echo.Context) error {
	var req ChangeEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if req.Email == "" {
		if user := auth.GetUser(ctx); user != nil {
			req.Email = user.Email
		}
	}

	res, err := h.engine.ChangeEmail(ctx, req.Email, req.NewEmail)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"email":     res.OldEmail,
		"new_email": res.NewEmail,
	}
	if res.NoOp {
		return warning(c, "change_email_noop", payload)
	}
	return success(c, "change_email_success", payload)
}

// Me returns the authenticated user.
func (h *AuthHandlers) Me(c echo.Context) error {
	user, err := h.engine.CurrentUser(c.Request().Context(), auth.GetUser(c.Request().Context()))
	if err != nil {
		return err
	}
	return success(c, "current_user_success", map[string]any{
		"user": user,
	})
}

// ConfirmActivation answers the GET of an activation link with a form that
// posts back to Activate. Mail scanners prefetching the link therefore
// cannot use up the code.
func (h *AuthHandlers) ConfirmActivation(c echo.Context) error {
	ctx := c.Request().Context()
	code := c.Param("code")

	state, err := h.engine.CheckCode(ctx, code)
	if err != nil {
		return err
	}

	var kind authsvc.Kind
	switch state {
	case authsvc.CodeMissing:
		kind = authsvc.KindCodeNotFound
	case authsvc.CodeExpired:
		kind = authsvc.KindCodeInvalidOrExpired
	default:
		return Render(c, http.StatusOK, templates.ActivationPage(templates.ActivationPageData{
			Message: i18n.T(ctx, "activate_confirm_text"),
			Action:  "/activate/" + url.PathEscape(code),
		}))
	}
	return Render(c, StatusFor(kind), templates.ActivationPage(templates.ActivationPageData{
		Message: i18n.T(ctx, kind.MessageID()),
	}))
}

// Activate redeems the code from a confirmed activation link, stores the
// token in the session cookie and renders the result page.
func (h *AuthHandlers) Activate(c echo.Context) error {
	ctx := c.Request().Context()

	res, err := h.engine.Register(ctx, c.Param("code"))
	if err != nil {
		kind := authsvc.KindOf(err)
		if kind == "" {
			return err
		}
		return Render(c, StatusFor(kind), templates.ActivationPage(templates.ActivationPageData{
			Message: i18n.T(ctx, kind.MessageID()),
		}))
	}

	if h.sessions != nil {
		cookie, err := h.sessions.Create(res.AccessToken)
		if err != nil {
			slog.Error("failed to create session cookie", "user_id", res.User.ID, "error", err)
			return err
		}
		c.SetCookie(cookie)
	}

	return Render(c, http.StatusOK, templates.ActivationPage(templates.ActivationPageData{
		Message: i18n.T(ctx, "register_success"),
		Success: true,
	}))
}
