// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/go-magiclink/internal/auth"
	"codeberg.org/oliverandrich/go-magiclink/internal/ctxkeys"
	"codeberg.org/oliverandrich/go-magiclink/internal/models"
	"codeberg.org/oliverandrich/go-magiclink/internal/repository"
	authsvc "codeberg.org/oliverandrich/go-magiclink/internal/services/auth"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/session"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/token"
)

// TokenResolver validates access tokens.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*token.Claims, error)
}

// UserLoader loads the user a token belongs to.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// LoadUser resolves the access token from the Authorization header or the
// session cookie and stores its user in the request context. Requests with
// missing, invalid or revoked tokens continue anonymously.
func LoadUser(tokens TokenResolver, users UserLoader, sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" && sessions != nil {
				if data, _ := sessions.Parse(c.Request()); data != nil {
					raw = data.Token
				}
			}
			if raw == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			claims, err := tokens.Resolve(ctx, raw)
			switch {
			case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrRevoked):
				slog.Debug("token_rejected", "reason", err)
				return next(c)
			case err != nil:
				return &authsvc.Error{Kind: authsvc.KindCollaboratorUnavailable, Message: authsvc.ErrCollaboratorUnavailable.Message, Err: err}
			}

			user, err := users.GetUserByID(ctx, claims.UserID)
			if errors.Is(err, repository.ErrNotFound) {
				return next(c)
			}
			if err != nil {
				return &authsvc.Error{Kind: authsvc.KindCollaboratorUnavailable, Message: authsvc.ErrCollaboratorUnavailable.Message, Err: err}
			}

			ctx = auth.WithUser(ctx, user)
			ctx = context.WithValue(ctx, ctxkeys.AccessToken{}, raw)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAuth rejects requests without an authenticated user.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !auth.IsAuthenticated(c.Request().Context()) {
			return authsvc.ErrNotAuthenticated
		}
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
