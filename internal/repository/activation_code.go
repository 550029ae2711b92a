// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-magiclink/internal/models"
)

const activationCodeColumns = `id, email, code_hash, created_at`

// UpsertActivationCode stores a code for an email, replacing any previous
// code for the same email in a single statement. A code hash that is already
// used by another email yields ErrDuplicate.
func (r *Repository) UpsertActivationCode(ctx context.Context, email, codeHash string, createdAt time.Time) (*models.ActivationCode, error) {
	code := &models.ActivationCode{
		Email:     email,
		CodeHash:  codeHash,
		CreatedAt: createdAt.UTC(),
	}

	err := r.db.GetContext(ctx, &code.ID, r.rebind(`
		INSERT INTO activation_codes (email, code_hash, created_at) VALUES (?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET code_hash = excluded.code_hash, created_at = excluded.created_at
		RETURNING id`),
		code.Email, code.CodeHash, code.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return code, nil
}

// GetActivationCodeByHash retrieves a code by its hash.
func (r *Repository) GetActivationCodeByHash(ctx context.Context, codeHash string) (*models.ActivationCode, error) {
	var code models.ActivationCode
	err := r.db.GetContext(ctx, &code, r.rebind(
		`SELECT `+activationCodeColumns+` FROM activation_codes WHERE code_hash = ?`), codeHash)
	if err != nil {
		return nil, mapErr(err)
	}
	return &code, nil
}

// GetActivationCodeByEmail retrieves the pending code for an email.
func (r *Repository) GetActivationCodeByEmail(ctx context.Context, email string) (*models.ActivationCode, error) {
	var code models.ActivationCode
	err := r.db.GetContext(ctx, &code, r.rebind(
		`SELECT `+activationCodeColumns+` FROM activation_codes WHERE email = ?`), email)
	if err != nil {
		return nil, mapErr(err)
	}
	return &code, nil
}

// ConsumeActivationCode deletes a code and returns the deleted row. Of two
// concurrent callers only one receives the row, the other gets ErrNotFound.
func (r *Repository) ConsumeActivationCode(ctx context.Context, codeHash string) (*models.ActivationCode, error) {
	var code models.ActivationCode
	err := r.db.GetContext(ctx, &code, r.rebind(
		`DELETE FROM activation_codes WHERE code_hash = ? RETURNING `+activationCodeColumns), codeHash)
	if err != nil {
		return nil, mapErr(err)
	}
	return &code, nil
}

// DeleteActivationCode deletes a code by hash. Deleting a missing code is not an error.
func (r *Repository) DeleteActivationCode(ctx context.Context, codeHash string) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM activation_codes WHERE code_hash = ?`), codeHash)
	return mapErr(err)
}

// DeleteExpiredActivationCodes deletes all codes issued at or before cutoff.
func (r *Repository) DeleteExpiredActivationCodes(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM activation_codes WHERE created_at <= ?`), cutoff.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	return result.RowsAffected()
}

// CountActivationCodes returns the number of pending codes.
func (r *Repository) CountActivationCodes(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM activation_codes`); err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}
