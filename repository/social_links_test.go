package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/FlameGreat-1/nswcleaningcompany-sub001/social"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupSocialLinkRepo(t *testing.T) (*SocialLinkRepository, *bun.DB, uuid.UUID) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	ctx := context.Background()
	require.NoError(t, auth.CreateTables(ctx, db, Models()...))

	user, err := auth.NewUsersRepository(db).Create(ctx, &auth.User{
		Email:     "octo@example.com",
		FirstName: "Octo",
		IsActive:  true,
	})
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := NewSocialLinkRepository(db, WithSocialLinkClock(func() time.Time { return now }))
	return repo, db, user.ID
}

func TestSocialLinkRepositoryCreateAndFind(t *testing.T) {
	repo, db, userID := setupSocialLinkRepo(t)
	ctx := context.Background()
	expiresAt := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)

	link := &social.SocialLink{
		UserID:         userID,
		Provider:       auth.ProviderGoogle,
		ProviderID:     "123",
		ProviderEmail:  "octo@example.com",
		Name:           "Octo Cat",
		AccessToken:    "access",
		RefreshToken:   "refresh",
		TokenExpiresAt: &expiresAt,
		ProfileData:    map[string]any{"locale": "en-AU"},
		IsActive:       true,
	}
	require.NoError(t, repo.CreateTx(ctx, db, link))
	assert.NotEqual(t, uuid.Nil, link.ID)
	assert.False(t, link.CreatedAt.IsZero())

	found, err := repo.FindByProviderIDTx(ctx, db, auth.ProviderGoogle, "123")
	require.NoError(t, err)
	assert.Equal(t, link.ID, found.ID)
	assert.Equal(t, userID, found.UserID)
	assert.Equal(t, "Octo Cat", found.Name)
	assert.Equal(t, "en-AU", found.ProfileData["locale"])
	require.NotNil(t, found.TokenExpiresAt)
	assert.True(t, expiresAt.Equal(*found.TokenExpiresAt))

	active, err := repo.FindActiveByUserTx(ctx, db, userID, auth.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, link.ID, active.ID)

	_, err = repo.FindByProviderIDTx(ctx, db, auth.ProviderGoogle, "999")
	assert.True(t, auth.IsRecordNotFound(err))

	_, err = repo.FindActiveByUserTx(ctx, db, userID, auth.ProviderFacebook)
	assert.True(t, auth.IsRecordNotFound(err))
}

func TestSocialLinkRepositoryUniquePair(t *testing.T) {
	repo, db, userID := setupSocialLinkRepo(t)
	ctx := context.Background()

	first := &social.SocialLink{UserID: userID, Provider: auth.ProviderGoogle, ProviderID: "123", IsActive: true}
	require.NoError(t, repo.CreateTx(ctx, db, first))

	dup := &social.SocialLink{UserID: uuid.New(), Provider: auth.ProviderGoogle, ProviderID: "123", IsActive: true}
	assert.Error(t, repo.CreateTx(ctx, db, dup))

	other := &social.SocialLink{UserID: userID, Provider: auth.ProviderFacebook, ProviderID: "123", IsActive: true}
	assert.NoError(t, repo.CreateTx(ctx, db, other))
}

func TestSocialLinkRepositoryUpdateTokens(t *testing.T) {
	repo, db, userID := setupSocialLinkRepo(t)
	ctx := context.Background()

	link := &social.SocialLink{
		UserID:       userID,
		Provider:     auth.ProviderGoogle,
		ProviderID:   "123",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		IsActive:     true,
	}
	require.NoError(t, repo.CreateTx(ctx, db, link))

	expiresAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateTokens(ctx, link.ID, &social.Token{
		AccessToken: "new-access",
		ExpiresAt:   expiresAt,
	}))

	found, err := repo.FindByProviderIDTx(ctx, db, auth.ProviderGoogle, "123")
	require.NoError(t, err)
	assert.Equal(t, "new-access", found.AccessToken)
	assert.Equal(t, "old-refresh", found.RefreshToken)
	require.NotNil(t, found.TokenExpiresAt)
	assert.True(t, expiresAt.Equal(*found.TokenExpiresAt))

	assert.NoError(t, repo.UpdateTokens(ctx, link.ID, nil))

	err = repo.UpdateTokens(ctx, uuid.New(), &social.Token{AccessToken: "x"})
	assert.True(t, auth.IsRecordNotFound(err))
}

func TestSocialLinkRepositoryUpdateAndDeactivate(t *testing.T) {
	repo, db, userID := setupSocialLinkRepo(t)
	ctx := context.Background()

	google := &social.SocialLink{UserID: userID, Provider: auth.ProviderGoogle, ProviderID: "g-1", IsActive: true}
	facebook := &social.SocialLink{UserID: userID, Provider: auth.ProviderFacebook, ProviderID: "f-1", IsActive: true}
	require.NoError(t, repo.CreateTx(ctx, db, google))
	require.NoError(t, repo.CreateTx(ctx, db, facebook))

	count, err := repo.CountActiveByUserTx(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.DeactivateTx(ctx, db, google.ID))
	_, err = repo.FindActiveByUserTx(ctx, db, userID, auth.ProviderGoogle)
	assert.True(t, auth.IsRecordNotFound(err))

	google.IsActive = true
	google.Name = "Reactivated"
	google.UpdatedAt = time.Time{}
	require.NoError(t, repo.UpdateTx(ctx, db, google))

	found, err := repo.FindActiveByUserTx(ctx, db, userID, auth.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "Reactivated", found.Name)

	n, err := repo.DeactivateAllForUserTx(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.DeactivateAllForUserTx(ctx, db, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	links, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	for _, l := range links {
		assert.False(t, l.IsActive)
	}

	err = repo.DeactivateTx(ctx, db, uuid.New())
	assert.True(t, auth.IsRecordNotFound(err))

	empty, err := repo.ListByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
