// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-magiclink/internal/models"
	"codeberg.org/oliverandrich/go-magiclink/internal/repository"
	"codeberg.org/oliverandrich/go-magiclink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccessToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "a@x.com", true)

	token := &models.AccessToken{
		ID:        "4b1d5f0e-8c1a-4a8e-9f53-7d0f3e6c2a11",
		UserID:    user.ID,
		ExpiresAt: testutil.Epoch.Add(24 * time.Hour),
	}
	require.NoError(t, repo.CreateAccessToken(ctx, token))
	assert.False(t, token.CreatedAt.IsZero())

	stored, err := repo.GetAccessToken(ctx, token.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
	assert.True(t, token.ExpiresAt.Equal(stored.ExpiresAt))
}

func TestCreateAccessToken_UnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.CreateAccessToken(context.Background(), &models.AccessToken{
		ID:        "t-1",
		UserID:    999,
		ExpiresAt: testutil.Epoch,
	})

	assert.Error(t, err)
}

func TestGetAccessToken_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetAccessToken(context.Background(), "missing")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteAccessTokensByUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice@x.com", true)
	bob := testutil.NewTestUser(t, repo, "bob@x.com", true)

	for _, tok := range []*models.AccessToken{
		{ID: "a-1", UserID: alice.ID, ExpiresAt: testutil.Epoch},
		{ID: "a-2", UserID: alice.ID, ExpiresAt: testutil.Epoch},
		{ID: "b-1", UserID: bob.ID, ExpiresAt: testutil.Epoch},
	} {
		require.NoError(t, repo.CreateAccessToken(ctx, tok))
	}

	revoked, err := repo.DeleteAccessTokensByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	count, err := repo.CountAccessTokensByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.CountAccessTokensByUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteExpiredAccessTokens(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "a@x.com", true)

	require.NoError(t, repo.CreateAccessToken(ctx, &models.AccessToken{ID: "old", UserID: user.ID, ExpiresAt: testutil.Epoch}))
	require.NoError(t, repo.CreateAccessToken(ctx, &models.AccessToken{ID: "new", UserID: user.ID, ExpiresAt: testutil.Epoch.Add(time.Hour)}))

	deleted, err := repo.DeleteExpiredAccessTokens(ctx, testutil.Epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetAccessToken(ctx, "new")
	assert.NoError(t, err)
}
