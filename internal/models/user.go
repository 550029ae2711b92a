// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// User is an account identified by its email address.
type User struct {
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
	Email      string    `db:"email" json:"email"`
	ID         int64     `db:"id" json:"id"`
	IsVerified bool      `db:"is_verified" json:"is_verified"`
}
