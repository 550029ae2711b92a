// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the application together and runs the HTTP server.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
	"golang.org/x/sync/errgroup"

	"codeberg.org/oliverandrich/go-magiclink/internal/clock"
	"codeberg.org/oliverandrich/go-magiclink/internal/config"
	"codeberg.org/oliverandrich/go-magiclink/internal/database"
	"codeberg.org/oliverandrich/go-magiclink/internal/handlers"
	"codeberg.org/oliverandrich/go-magiclink/internal/i18n"
	"codeberg.org/oliverandrich/go-magiclink/internal/metrics"
	"codeberg.org/oliverandrich/go-magiclink/internal/repository"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/audit"
	authsvc "codeberg.org/oliverandrich/go-magiclink/internal/services/auth"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/codegen"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/email"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/session"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/token"
)

// App holds the wired application.
type App struct {
	Echo   *echo.Echo
	Engine *authsvc.Engine

	cfg      *config.Config
	db       *sqlx.DB
	repo     *repository.Repository
	issuer   *token.Issuer
	sessions *session.Manager
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	sweeper  *Sweeper
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"database", database.Dialect(cfg.Database.DSN),
	)

	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	app, err := New(cfg, db, clock.System)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Serve(ctx)
}

// New wires the repository, services, engine and HTTP routes.
func New(cfg *config.Config, db *sqlx.DB, clk clock.Clock) (*App, error) {
	repo := repository.New(db, repository.WithClock(clk))
	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	sender, err := newSender(&cfg.Mail)
	if err != nil {
		return nil, err
	}
	mailer, err := email.NewService(sender, cfg.Server.BaseURL, cfg.Mail.Template, cfg.Auth.ActivationTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail service: %w", err)
	}

	sink, err := newAuditSink(&cfg.Audit, repo)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(&cfg.Session, isSecure(cfg.Server.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	issuer := token.NewIssuer(repo, cfg.Token.Secret, cfg.Token.TTL, cfg.Token.Issuer, clk)

	engine := authsvc.NewEngine(authsvc.Deps{
		Users:     repo,
		Codes:     repo,
		Tokens:    issuer,
		Notifier:  mailer,
		Audit:     sink,
		Generator: codegen.New(cfg.Auth.CodeLength),
		Clock:     clk,
		Metrics:   m,
	}, cfg.Auth.ActivationTTL, authsvc.WithCodeRetention(cfg.Auth.CodeRetention))

	if cfg.Server.MaxBodySize <= 0 {
		cfg.Server.MaxBodySize = 1
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	app := &App{
		Echo:     e,
		Engine:   engine,
		cfg:      cfg,
		db:       db,
		repo:     repo,
		issuer:   issuer,
		sessions: sessions,
		registry: registry,
		metrics:  m,
		sweeper:  NewSweeper(engine, repo, clk, cfg.Auth.SweepInterval),
	}
	app.setupMiddleware()
	app.setupRoutes()
	return app, nil
}

func newSender(cfg *config.MailConfig) (email.Sender, error) {
	if cfg.Host == "" {
		slog.Warn("no SMTP host configured, activation mails are logged instead of sent")
		return email.NewLogSender(slog.Default()), nil
	}
	sender, err := email.NewSMTPSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP sender: %w", err)
	}
	return sender, nil
}

func newAuditSink(cfg *config.AuditConfig, repo *repository.Repository) (authsvc.AuditSink, error) {
	if cfg.File == "" {
		return audit.NewRepositorySink(repo), nil
	}
	sink, err := audit.NewFileSink(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return sink, nil
}

func isSecure(baseURL string) bool {
	return strings.HasPrefix(baseURL, "https://")
}

// Serve runs the HTTP server and the sweeper until ctx is cancelled, then
// shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	tlsResult, err := SetupTLS(a.cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	if tlsResult.Mode == TLSModeACME {
		addr = ":443"
	}

	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return a.serve(ctx, ln, tlsResult)
}

func (a *App) serve(ctx context.Context, ln net.Listener, tlsResult *TLSResult) error {
	srv := &http.Server{
		Handler:           a.Echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if tlsResult.TLSConfig != nil {
		ln = tls.NewListener(ln, tlsResult.TLSConfig)
	}

	var redirect *http.Server
	if tlsResult.HTTPHandler != nil {
		redirect = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server running", "url", a.cfg.Server.BaseURL, "addr", ln.Addr().String(), "tls", tlsResult.Mode)
		return srv.Serve(ln)
	})

	if redirect != nil {
		g.Go(func() error {
			slog.Info("ACME challenge listener active", "addr", redirect.Addr)
			return redirect.ListenAndServe()
		})
	}

	g.Go(func() error {
		a.sweeper.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down server")

		shutCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		errs = append(errs, srv.Shutdown(shutCtx))
		if redirect != nil {
			errs = append(errs, redirect.Shutdown(shutCtx))
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped with error", "error", err)
		return err
	}

	slog.Info("server stopped")
	return nil
}
