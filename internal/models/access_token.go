// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// AccessToken records an issued access token so it can be revoked.
// ID is the token's jti claim.
type AccessToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID        string    `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EmailAuditEntry kinds.
const (
	AuditKindNewUser     = "new_user"
	AuditKindEmailChange = "email_change"
)

// EmailAuditEntry is one line of the append-only email log.
type EmailAuditEntry struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	OldEmail  string    `db:"old_email" json:"old_email"`
	NewEmail  string    `db:"new_email" json:"new_email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
