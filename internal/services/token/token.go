// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues revocable JWT access tokens.
package token

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"codeberg.org/oliverandrich/go-magiclink/internal/clock"
	"codeberg.org/oliverandrich/go-magiclink/internal/models"
	"codeberg.org/oliverandrich/go-magiclink/internal/repository"
)

var (
	// ErrInvalidToken is returned for malformed, badly signed or expired tokens.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrRevoked is returned for well-formed tokens that were revoked.
	ErrRevoked = errors.New("access token revoked")
)

// Store persists issued tokens.
type Store interface {
	CreateAccessToken(ctx context.Context, token *models.AccessToken) error
	GetAccessToken(ctx context.Context, id string) (*models.AccessToken, error)
	DeleteAccessTokensByUser(ctx context.Context, userID int64) (int64, error)
}

// Claims are the JWT claims of an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
}

// Issuer mints, resolves and revokes access tokens.
type Issuer struct {
	store  Store
	clock  clock.Clock
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer creates an Issuer. An empty secret is replaced by a random one,
// which invalidates all tokens on restart.
func NewIssuer(store Store, secret string, ttl time.Duration, issuer string, clk clock.Clock) *Issuer {
	key := []byte(secret)
	if len(key) == 0 {
		slog.Warn("token secret not configured, generating a random one")
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	if clk == nil {
		clk = clock.System
	}
	return &Issuer{
		store:  store,
		clock:  clk,
		secret: key,
		issuer: issuer,
		ttl:    ttl,
	}
}

// Mint issues a new token for the user and records it.
func (i *Issuer) Mint(ctx context.Context, user *models.User) (string, error) {
	now := i.clock.Now()
	record := &models.AccessToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(i.ttl),
		CreatedAt: now,
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.ID,
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		},
		UserID: user.ID,
		Email:  user.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	if err := i.store.CreateAccessToken(ctx, record); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}

	return signed, nil
}

// Resolve validates a token and checks that it has not been revoked.
func (i *Issuer) Resolve(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	record, err := i.store.GetAccessToken(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRevoked
	}
	if err != nil {
		return nil, err
	}
	if record.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// RevokeAll deletes every token of a user and returns how many were revoked.
func (i *Issuer) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	return i.store.DeleteAccessTokensByUser(ctx, userID)
}
