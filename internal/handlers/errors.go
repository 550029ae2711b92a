// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/go-magiclink/internal/i18n"
	authsvc "codeberg.org/oliverandrich/go-magiclink/internal/services/auth"
)

var kindStatus = map[authsvc.Kind]int{
	authsvc.KindValidationFailed:         http.StatusBadRequest,
	authsvc.KindCodeInvalidOrExpired:     http.StatusBadRequest,
	authsvc.KindNotAuthenticated:         http.StatusUnauthorized,
	authsvc.KindUserNotFoundOrUnverified: http.StatusUnauthorized,
	authsvc.KindCodeNotFound:             http.StatusNotFound,
	authsvc.KindUserNotFound:             http.StatusNotFound,
	authsvc.KindUserCreationFailed:       http.StatusInternalServerError,
	authsvc.KindTokenIssuanceFailed:      http.StatusInternalServerError,
	authsvc.KindStoreUnavailable:         http.StatusServiceUnavailable,
	authsvc.KindCollaboratorUnavailable:  http.StatusServiceUnavailable,
}

var httpStatusMessage = map[int]string{
	http.StatusBadRequest:            "error_bad_request",
	http.StatusUnauthorized:          "error_not_authenticated",
	http.StatusNotFound:              "error_route_not_found",
	http.StatusMethodNotAllowed:      "error_method_not_allowed",
	http.StatusRequestEntityTooLarge: "error_body_too_large",
}

// StatusFor returns the HTTP status for an engine error kind.
func StatusFor(kind authsvc.Kind) int {
	if code, ok := kindStatus[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders every error returned by a handler or middleware as
// the JSON error envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, body := errorBody(c.Request().Context(), err)
	if code >= http.StatusInternalServerError {
		slog.Error("request_failed", "status", code, "error", err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, body)
	}
	if writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}

func errorBody(ctx context.Context, err error) (int, map[string]any) {
	code, messageID, fields := classify(err)

	body := map[string]any{
		"status":  StatusError,
		"message": i18n.T(ctx, messageID),
	}
	if len(fields) > 0 {
		localized := make(map[string]string, len(fields))
		for field, id := range fields {
			localized[field] = i18n.T(ctx, id)
		}
		body["errors"] = localized
	}
	return code, body
}

func classify(err error) (code int, messageID string, fields map[string]string) {
	var aerr *authsvc.Error
	if errors.As(err, &aerr) {
		return StatusFor(aerr.Kind), aerr.Kind.MessageID(), aerr.Fields
	}

	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		if id, ok := httpStatusMessage[herr.Code]; ok {
			return herr.Code, id, nil
		}
		return herr.Code, "error_internal", nil
	}

	return http.StatusInternalServerError, "error_internal", nil
}
