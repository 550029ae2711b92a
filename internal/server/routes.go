// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/go-magiclink/internal/handlers"
	"codeberg.org/oliverandrich/go-magiclink/internal/metrics"
	"codeberg.org/oliverandrich/go-magiclink/internal/middleware"
)

func (a *App) setupRoutes() {
	e := a.Echo
	h := handlers.New(a.db)
	auth := handlers.NewAuth(a.Engine, a.sessions, a.cfg.Auth.ExposeCodes)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(a.registry)))

	e.GET("/activate/:code", auth.ConfirmActivation)
	e.POST("/activate/:code", auth.Activate)

	api := e.Group("/api")
	api.POST("/register", auth.Register)
	api.POST("/login", auth.Login)
	api.POST("/send-code", auth.SendCode)
	api.POST("/logout", auth.Logout)
	api.POST("/change-email", auth.ChangeEmail, middleware.RequireAuth)
	api.GET("/me", auth.Me, middleware.RequireAuth)
}
