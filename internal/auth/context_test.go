// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"codeberg.org/oliverandrich/go-magiclink/internal/auth"
	"codeberg.org/oliverandrich/go-magiclink/internal/models"
)

func TestGetUser(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, auth.GetUser(ctx))
	assert.False(t, auth.IsAuthenticated(ctx))

	user := &models.User{ID: 1, Email: "a@x.com"}
	ctx = auth.WithUser(ctx, user)

	assert.Same(t, user, auth.GetUser(ctx))
	assert.True(t, auth.IsAuthenticated(ctx))
}
