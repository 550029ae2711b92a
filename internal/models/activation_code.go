// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// ActivationCode is a pending single-use code issued for an email address.
// The address does not need to belong to an existing user.
type ActivationCode struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	CodeHash  string    `db:"code_hash" json:"-"` // SHA256 hash
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Age returns the whole seconds elapsed between issuance and now.
func (c *ActivationCode) Age(now time.Time) int64 {
	return int64(now.Sub(c.CreatedAt) / time.Second)
}

// Expired reports whether the code is older than ttl, compared in whole seconds.
func (c *ActivationCode) Expired(now time.Time, ttl time.Duration) bool {
	return c.Age(now) > int64(ttl/time.Second)
}
