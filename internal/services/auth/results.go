// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import "codeberg.org/oliverandrich/go-magiclink/internal/models"

// CodeState is the outcome of an activation code check.
type CodeState int

const (
	CodeMissing CodeState = iota
	CodeExpired
	CodeActive
)

func (s CodeState) String() string {
	switch s {
	case CodeActive:
		return "active"
	case CodeExpired:
		return "expired"
	default:
		return "missing"
	}
}

// RegisterResult is returned by a successful code redemption.
type RegisterResult struct {
	User        *models.User
	AccessToken string
	Created     bool // a new user was created for the email
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User        *models.User
	AccessToken string
}

// SendCodeResult is returned once a code has been stored. A failed delivery
// leaves the code valid; DeliveryErr then holds the cause.
type SendCodeResult struct {
	DeliveryErr error
	Email       string
	Code        string
	Delivered   bool
}

// LogoutResult reports how a logout ended.
type LogoutResult struct {
	Revoked          int64
	AlreadyLoggedOut bool
}

// ChangeEmailResult reports how an email change request ended. NoOp is set
// when old and new email are identical and nothing was recorded.
type ChangeEmailResult struct {
	OldEmail string
	NewEmail string
	NoOp     bool
}
