// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures.
type Kind string

const (
	KindValidationFailed         Kind = "validation_failed"
	KindCodeNotFound             Kind = "code_not_found"
	KindCodeInvalidOrExpired     Kind = "code_invalid_or_expired"
	KindUserNotFound             Kind = "user_not_found"
	KindUserNotFoundOrUnverified Kind = "user_not_found_or_unverified"
	KindUserCreationFailed       Kind = "user_creation_failed"
	KindTokenIssuanceFailed      Kind = "token_issuance_failed"
	KindNotAuthenticated         Kind = "not_authenticated"
	KindStoreUnavailable         Kind = "store_unavailable"
	KindCollaboratorUnavailable  Kind = "collaborator_unavailable"
)

// Error is returned by all engine operations. Fields holds per-field message
// IDs for validation failures.
type Error struct {
	Err     error
	Fields  map[string]string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// MessageID returns the translation ID for the kind.
func (k Kind) MessageID() string {
	return "error_" + string(k)
}

var (
	ErrValidationFailed         = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrCodeNotFound             = &Error{Kind: KindCodeNotFound, Message: "activation code not found"}
	ErrCodeInvalidOrExpired     = &Error{Kind: KindCodeInvalidOrExpired, Message: "activation code invalid or expired"}
	ErrUserNotFound             = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrUserNotFoundOrUnverified = &Error{Kind: KindUserNotFoundOrUnverified, Message: "user not found or not verified"}
	ErrUserCreationFailed       = &Error{Kind: KindUserCreationFailed, Message: "cannot create user"}
	ErrTokenIssuanceFailed      = &Error{Kind: KindTokenIssuanceFailed, Message: "cannot create access token"}
	ErrNotAuthenticated         = &Error{Kind: KindNotAuthenticated, Message: "not authenticated"}
	ErrStoreUnavailable         = &Error{Kind: KindStoreUnavailable, Message: "store unavailable"}
	ErrCollaboratorUnavailable  = &Error{Kind: KindCollaboratorUnavailable, Message: "collaborator unavailable"}
)

// wrap returns a copy of the sentinel carrying the cause.
func wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
