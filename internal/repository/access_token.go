// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-magiclink/internal/models"
)

// CreateAccessToken stores an issued token. CreatedAt is set if zero.
func (r *Repository) CreateAccessToken(ctx context.Context, token *models.AccessToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, r.rebind(
		`INSERT INTO access_tokens (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`),
		token.ID, token.UserID, token.ExpiresAt.UTC(), token.CreatedAt.UTC())
	return mapErr(err)
}

// GetAccessToken retrieves a token by ID.
func (r *Repository) GetAccessToken(ctx context.Context, id string) (*models.AccessToken, error) {
	var token models.AccessToken
	err := r.db.GetContext(ctx, &token, r.rebind(
		`SELECT id, user_id, expires_at, created_at FROM access_tokens WHERE id = ?`), id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &token, nil
}

// CountAccessTokensByUser returns the number of live token rows for a user.
func (r *Repository) CountAccessTokensByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, r.rebind(`SELECT COUNT(*) FROM access_tokens WHERE user_id = ?`), userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}

// DeleteAccessTokensByUser revokes all tokens of a user.
func (r *Repository) DeleteAccessTokensByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM access_tokens WHERE user_id = ?`), userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return result.RowsAffected()
}

// DeleteExpiredAccessTokens deletes tokens that expired before now.
func (r *Repository) DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM access_tokens WHERE expires_at < ?`), now.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	return result.RowsAffected()
}
