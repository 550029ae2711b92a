// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements passwordless login via single-use activation codes.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/go-magiclink/internal/clock"
	"codeberg.org/oliverandrich/go-magiclink/internal/metrics"
	"codeberg.org/oliverandrich/go-magiclink/internal/models"
	"codeberg.org/oliverandrich/go-magiclink/internal/repository"
	"codeberg.org/oliverandrich/go-magiclink/internal/services/codegen"
)

// maxCodeAttempts bounds regeneration after a code hash collision.
const maxCodeAttempts = 3

// DefaultCodeRetention is how long expired codes are kept so that redeeming
// them still reports expiry rather than an unknown code.
const DefaultCodeRetention = 24 * time.Hour

// UserStore is the user storage used by the engine.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, email string, verified bool) (*models.User, error)
	SetUserVerified(ctx context.Context, id int64, verified bool) error
}

// CodeStore is the activation code storage used by the engine.
type CodeStore interface {
	UpsertActivationCode(ctx context.Context, email, codeHash string, createdAt time.Time) (*models.ActivationCode, error)
	GetActivationCodeByHash(ctx context.Context, codeHash string) (*models.ActivationCode, error)
	ConsumeActivationCode(ctx context.Context, codeHash string) (*models.ActivationCode, error)
	DeleteActivationCode(ctx context.Context, codeHash string) error
	DeleteExpiredActivationCodes(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenIssuer mints and revokes access tokens.
type TokenIssuer interface {
	Mint(ctx context.Context, user *models.User) (string, error)
	RevokeAll(ctx context.Context, userID int64) (int64, error)
}

// Notifier delivers activation codes.
type Notifier interface {
	SendActivationLink(ctx context.Context, to, code string) error
}

// AuditSink records email addresses in an append-only log.
type AuditSink interface {
	RecordNewUserEmail(ctx context.Context, email string) error
	RecordEmailChange(ctx context.Context, oldEmail, newEmail string) error
}

// CodeGenerator produces activation codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// Deps are the collaborators of an Engine. Clock and Metrics are optional.
type Deps struct {
	Users     UserStore
	Codes     CodeStore
	Tokens    TokenIssuer
	Notifier  Notifier
	Audit     AuditSink
	Generator CodeGenerator
	Clock     clock.Clock
	Metrics   *metrics.Metrics
}

// Engine runs the authentication flows. It keeps no mutable state and is
// safe for concurrent use.
type Engine struct {
	users     UserStore
	codes     CodeStore
	tokens    TokenIssuer
	notifier  Notifier
	audit     AuditSink
	generator CodeGenerator
	clock     clock.Clock
	metrics   *metrics.Metrics
	ttl       time.Duration
	retention time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithCodeRetention sets how long SweepExpired keeps codes past their TTL.
// Negative values are treated as zero.
func WithCodeRetention(d time.Duration) Option {
	return func(e *Engine) {
		e.retention = max(d, 0)
	}
}

// NewEngine creates an Engine. Codes older than ttl (in whole seconds) are expired.
func NewEngine(deps Deps, ttl time.Duration, opts ...Option) *Engine {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System
	}
	e := &Engine{
		users:     deps.Users,
		codes:     deps.Codes,
		tokens:    deps.Tokens,
		notifier:  deps.Notifier,
		audit:     deps.Audit,
		generator: deps.Generator,
		clock:     clk,
		metrics:   deps.Metrics,
		ttl:       ttl,
		retention: DefaultCodeRetention,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TTL returns the activation code lifetime.
func (e *Engine) TTL() time.Duration {
	return e.ttl
}

// CheckCode reports whether a code exists and is still within its TTL.
// Expired codes are deleted.
func (e *Engine) CheckCode(ctx context.Context, code string) (CodeState, error) {
	hash := codegen.Hash(code)

	ac, err := e.codes.GetActivationCodeByHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return CodeMissing, nil
	}
	if err != nil {
		return CodeMissing, wrap(ErrCollaboratorUnavailable, err)
	}

	if ac.Expired(e.clock.Now(), e.ttl) {
		if err := e.codes.DeleteActivationCode(ctx, hash); err != nil {
			return CodeExpired, wrap(ErrCollaboratorUnavailable, err)
		}
		return CodeExpired, nil
	}

	return CodeActive, nil
}

// Register redeems an activation code. The code is consumed even if a later
// step fails. Unknown emails get a new, verified user.
func (e *Engine) Register(ctx context.Context, code string) (res *RegisterResult, err error) {
	defer e.observe("register", e.clock.Now(), &err)

	if err := validateCode(code); err != nil {
		return nil, err
	}

	state, err := e.CheckCode(ctx, code)
	if err != nil {
		return nil, err
	}
	switch state {
	case CodeMissing:
		slog.Warn("register_failed", "reason", "code_not_found")
		return nil, ErrCodeNotFound
	case CodeExpired:
		slog.Warn("register_failed", "reason", "code_expired")
		return nil, ErrCodeInvalidOrExpired
	}

	ac, err := e.codes.ConsumeActivationCode(ctx, codegen.Hash(code))
	if errors.Is(err, repository.ErrNotFound) {
		// Consumed or superseded since the check.
		slog.Warn("register_failed", "reason", "code_consumed")
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, wrap(ErrCollaboratorUnavailable, err)
	}
	if ac.Expired(e.clock.Now(), e.ttl) {
		slog.Warn("register_failed", "reason", "code_expired")
		return nil, ErrCodeInvalidOrExpired
	}

	user, created, err := e.verifyUser(ctx, ac.Email)
	if err != nil {
		return nil, err
	}

	token, err := e.tokens.Mint(ctx, user)
	if err != nil {
		slog.Error("register_failed", "reason", "token_issuance", "user_id", user.ID, "error", err)
		return nil, wrap(ErrTokenIssuanceFailed, err)
	}

	slog.Info("register_success", "user_id", user.ID, "created", created)
	return &RegisterResult{User: user, AccessToken: token, Created: created}, nil
}

// verifyUser marks the user for email verified, creating it if needed.
func (e *Engine) verifyUser(ctx context.Context, email string) (*models.User, bool, error) {
	user, err := e.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsVerified {
			if err := e.users.SetUserVerified(ctx, user.ID, true); err != nil {
				return nil, false, wrap(ErrCollaboratorUnavailable, err)
			}
			user.IsVerified = true
		}
		return user, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, wrap(ErrCollaboratorUnavailable, err)
	}

	user, err = e.users.CreateUser(ctx, email, true)
	if errors.Is(err, repository.ErrDuplicate) {
		// Created concurrently through another code for the same email.
		existing, getErr := e.users.GetUserByEmail(ctx, email)
		if getErr != nil {
			return nil, false, wrap(ErrUserCreationFailed, err)
		}
		if !existing.IsVerified {
			if err := e.users.SetUserVerified(ctx, existing.ID, true); err != nil {
				return nil, false, wrap(ErrCollaboratorUnavailable, err)
			}
			existing.IsVerified = true
		}
		return existing, false, nil
	}
	if err != nil {
		slog.Error("register_failed", "reason", "user_creation", "error", err)
		return nil, false, wrap(ErrUserCreationFailed, err)
	}

	if err := e.audit.RecordNewUserEmail(ctx, email); err != nil {
		slog.Error("audit_failed", "kind", models.AuditKindNewUser, "user_id", user.ID, "error", err)
	}

	return user, true, nil
}

// Login issues a token for a verified user. Login never verifies a user.
func (e *Engine) Login(ctx context.Context, email string) (res *LoginResult, err error) {
	defer e.observe("login", e.clock.Now(), &err)

	if err := validateEmail(email); err != nil {
		return nil, err
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("login_failed", "reason", "user_not_found")
		return nil, ErrUserNotFoundOrUnverified
	}
	if err != nil {
		return nil, wrap(ErrCollaboratorUnavailable, err)
	}
	if !user.IsVerified {
		slog.Warn("login_failed", "reason", "user_not_verified", "user_id", user.ID)
		return nil, ErrUserNotFoundOrUnverified
	}

	token, err := e.tokens.Mint(ctx, user)
	if err != nil {
		slog.Error("login_failed", "reason", "token_issuance", "user_id", user.ID, "error", err)
		return nil, wrap(ErrTokenIssuanceFailed, err)
	}

	slog.Info("login_success", "user_id", user.ID)
	return &LoginResult{User: user, AccessToken: token}, nil
}

// SendCode issues a new code for email, superseding any previous one, and
// sends it. A failed delivery does not undo the code.
func (e *Engine) SendCode(ctx context.Context, email string) (res *SendCodeResult, err error) {
	defer e.observe("send_code", e.clock.Now(), &err)

	if err := validateEmail(email); err != nil {
		return nil, err
	}

	code, err := e.storeCode(ctx, email)
	if err != nil {
		return nil, err
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.IsVerified {
			if err := e.users.SetUserVerified(ctx, user.ID, false); err != nil {
				return nil, wrap(ErrCollaboratorUnavailable, err)
			}
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, wrap(ErrCollaboratorUnavailable, err)
	}

	res = &SendCodeResult{Email: email, Code: code, Delivered: true}
	if err := e.notifier.SendActivationLink(ctx, email, code); err != nil {
		slog.Warn("send_code_delivery_failed", "error", err)
		res.Delivered = false
		res.DeliveryErr = err
	}
	e.metrics.ObserveEmail(res.Delivered)

	slog.Info("send_code", "delivered", res.Delivered)
	return res, nil
}

// storeCode generates and stores a code, retrying on hash collisions.
func (e *Engine) storeCode(ctx context.Context, email string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := e.generator.Generate()
		if err != nil {
			return "", wrap(ErrCollaboratorUnavailable, err)
		}

		_, err = e.codes.UpsertActivationCode(ctx, email, codegen.Hash(code), e.clock.Now())
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return "", wrap(ErrCollaboratorUnavailable, err)
		}

		slog.Warn("send_code_duplicate", "attempt", attempt)
		lastErr = err
	}
	return "", wrap(ErrStoreUnavailable, lastErr)
}

// Logout revokes all tokens of user. A nil user is already logged out.
func (e *Engine) Logout(ctx context.Context, user *models.User) (res *LogoutResult, err error) {
	defer e.observe("logout", e.clock.Now(), &err)

	if user == nil {
		return &LogoutResult{AlreadyLoggedOut: true}, nil
	}

	revoked, err := e.tokens.RevokeAll(ctx, user.ID)
	if err != nil {
		return nil, wrap(ErrCollaboratorUnavailable, err)
	}

	slog.Info("logout_success", "user_id", user.ID, "revoked", revoked)
	return &LogoutResult{Revoked: revoked}, nil
}

// ChangeEmail records an email change in the audit sink. The stored user
// email is left unchanged.
func (e *Engine) ChangeEmail(ctx context.Context, oldEmail, newEmail string) (res *ChangeEmailResult, err error) {
	defer e.observe("change_email", e.clock.Now(), &err)

	if err := validateEmailChange(oldEmail, newEmail); err != nil {
		return nil, err
	}

	res = &ChangeEmailResult{OldEmail: oldEmail, NewEmail: newEmail}
	if oldEmail == newEmail {
		res.NoOp = true
		return res, nil
	}

	user, err := e.users.GetUserByEmail(ctx, oldEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, wrap(ErrCollaboratorUnavailable, err)
	}

	if err := e.audit.RecordEmailChange(ctx, oldEmail, newEmail); err != nil {
		slog.Error("audit_failed", "kind", models.AuditKindEmailChange, "user_id", user.ID, "error", err)
		return nil, wrap(ErrCollaboratorUnavailable, err)
	}

	slog.Info("change_email_recorded", "user_id", user.ID)
	return res, nil
}

// CurrentUser returns the authenticated user.
func (e *Engine) CurrentUser(_ context.Context, user *models.User) (*models.User, error) {
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

// SweepExpired deletes codes that have been expired for longer than the
// retention window. Younger expired codes stay so Register can still report
// CodeInvalidOrExpired for them.
func (e *Engine) SweepExpired(ctx context.Context) (int64, error) {
	// Expired means more than ttl whole seconds old, i.e. at least ttl+1s.
	cutoff := e.clock.Now().Add(-(e.ttl.Truncate(time.Second) + time.Second + e.retention))

	n, err := e.codes.DeleteExpiredActivationCodes(ctx, cutoff)
	if err != nil {
		return 0, wrap(ErrCollaboratorUnavailable, err)
	}
	e.metrics.AddSwept(n)
	return n, nil
}

func (e *Engine) observe(operation string, start time.Time, errp *error) {
	outcome := "success"
	if kind := KindOf(*errp); kind != "" {
		outcome = string(kind)
	} else if *errp != nil {
		outcome = "error"
	}
	e.metrics.ObserveOperation(operation, outcome, e.clock.Now().Sub(start))
}
