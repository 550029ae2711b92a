// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package audit keeps an append-only record of email addresses.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/oliverandrich/go-magiclink/internal/models"
)

// FileSink appends one "old-new" line per entry to a file. New users are
// written as "email-".
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates a FileSink, creating the parent directory if needed.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	return &FileSink{path: path}, nil
}

// RecordNewUserEmail appends the email of a newly created user.
func (s *FileSink) RecordNewUserEmail(_ context.Context, email string) error {
	return s.append(email, "")
}

// RecordEmailChange appends an old to new email pair.
func (s *FileSink) RecordEmailChange(_ context.Context, oldEmail, newEmail string) error {
	return s.append(oldEmail, newEmail)
}

func (s *FileSink) append(oldEmail, newEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("opening audit file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%s-%s\n", oldEmail, newEmail); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing audit file: %w", err)
	}
	return f.Close()
}

// EntryStore persists audit entries.
type EntryStore interface {
	CreateEmailAuditEntry(ctx context.Context, kind, oldEmail, newEmail string) error
}

// RepositorySink stores entries in the email_audit table.
type RepositorySink struct {
	store EntryStore
}

// NewRepositorySink creates a RepositorySink.
func NewRepositorySink(store EntryStore) *RepositorySink {
	return &RepositorySink{store: store}
}

// RecordNewUserEmail stores the email of a newly created user.
func (s *RepositorySink) RecordNewUserEmail(ctx context.Context, email string) error {
	return s.store.CreateEmailAuditEntry(ctx, models.AuditKindNewUser, "", email)
}

// RecordEmailChange stores an old to new email pair.
func (s *RepositorySink) RecordEmailChange(ctx context.Context, oldEmail, newEmail string) error {
	return s.store.CreateEmailAuditEntry(ctx, models.AuditKindEmailChange, oldEmail, newEmail)
}
