// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/go-magiclink/internal/models"
)

// CreateEmailAuditEntry appends an entry to the email audit table.
func (r *Repository) CreateEmailAuditEntry(ctx context.Context, kind, oldEmail, newEmail string) error {
	_, err := r.db.ExecContext(ctx, r.rebind(
		`INSERT INTO email_audit (kind, old_email, new_email, created_at) VALUES (?, ?, ?, ?)`),
		kind, oldEmail, newEmail, r.now())
	return mapErr(err)
}

// ListEmailAuditEntries returns all entries, oldest first.
func (r *Repository) ListEmailAuditEntries(ctx context.Context) ([]models.EmailAuditEntry, error) {
	var entries []models.EmailAuditEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT id, kind, old_email, new_email, created_at FROM email_audit ORDER BY id`)
	if err != nil {
		return nil, mapErr(err)
	}
	return entries, nil
}
