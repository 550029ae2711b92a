// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/go-magiclink/internal/models"
)

const userColumns = `id, email, is_verified, created_at, updated_at`

// CreateUser creates a new user. A taken email yields ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, email string, verified bool) (*models.User, error) {
	now := r.now()
	user := &models.User{
		Email:      email,
		IsVerified: verified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := r.db.GetContext(ctx, &user.ID, r.rebind(
		`INSERT INTO users (email, is_verified, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`),
		user.Email, user.IsVerified, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by exact email match.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// SetUserVerified updates the verification flag of a user.
func (r *Repository) SetUserVerified(ctx context.Context, id int64, verified bool) error {
	result, err := r.db.ExecContext(ctx, r.rebind(
		`UPDATE users SET is_verified = ?, updated_at = ? WHERE id = ?`),
		verified, r.now(), id)
	if err != nil {
		return mapErr(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}
