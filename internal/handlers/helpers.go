// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/go-magiclink/internal/i18n"
)

// Response levels of the JSON envelope.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Render renders a templ component with the given status code.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	if err := component.Render(c.Request().Context(), buf); err != nil {
		return err
	}

	return c.HTML(statusCode, buf.String())
}

// respond writes the JSON envelope with a localized message. Payload keys
// are merged into the top level.
func respond(c echo.Context, code int, status, messageID string, payload map[string]any) error {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["status"] = status
	body["message"] = i18n.T(c.Request().Context(), messageID)
	return c.JSON(code, body)
}

func success(c echo.Context, messageID string, payload map[string]any) error {
	return respond(c, http.StatusOK, StatusSuccess, messageID, payload)
}

func warning(c echo.Context, messageID string, payload map[string]any) error {
	return respond(c, http.StatusOK, StatusWarning, messageID, payload)
}

// bind decodes the request body, mapping decode failures to a 400.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}
	return nil
}
