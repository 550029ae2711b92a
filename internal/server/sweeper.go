// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/go-magiclink/internal/clock"
)

// CodeSweeper removes expired activation codes.
type CodeSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// TokenPurger removes access tokens past their expiry.
type TokenPurger interface {
	DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically purges expired activation codes and access tokens.
type Sweeper struct {
	codes    CodeSweeper
	tokens   TokenPurger
	clock    clock.Clock
	interval time.Duration
}

// NewSweeper creates a Sweeper. A zero interval disables Run.
func NewSweeper(codes CodeSweeper, tokens TokenPurger, clk clock.Clock, interval time.Duration) *Sweeper {
	if clk == nil {
		clk = clock.System
	}
	return &Sweeper{codes: codes, tokens: tokens, clock: clk, interval: interval}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		slog.Info("sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass. Failures are logged and retried on the next tick.
func (s *Sweeper) Sweep(ctx context.Context) (codes, tokens int64) {
	codes, err := s.codes.SweepExpired(ctx)
	if err != nil {
		slog.Error("sweep_codes_failed", "error", err)
	}

	tokens, err = s.tokens.DeleteExpiredAccessTokens(ctx, s.clock.Now())
	if err != nil {
		slog.Error("sweep_tokens_failed", "error", err)
	}

	if codes > 0 || tokens > 0 {
		slog.Info("sweep", "codes", codes, "tokens", tokens)
	}
	return codes, tokens
}
