package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpmux/mcpmux/pkg/domain"
	"github.com/mcpmux/mcpmux/pkg/secretstore"
)

func newTestEncryptor(t *testing.T) *secretstore.FieldEncryptor {
	t.Helper()
	key, err := secretstore.GenerateMasterKey()
	require.NoError(t, err)
	enc, err := secretstore.NewFieldEncryptor(key)
	require.NoError(t, err)
	return enc
}

func TestCredentialRepositoryRoundTripsAPIKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	repo := NewCredentialRepository(db, newTestEncryptor(t))

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)

	cred := domain.Credential{SpaceID: space.ID, ServerID: "linear", Kind: domain.CredentialAPIKey, APIKey: "sk-abc123"}
	require.NoError(t, repo.Set(ctx, cred))

	got, ok, err := repo.Get(ctx, domain.Key{SpaceID: space.ID, ServerID: "linear"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sk-abc123", got.APIKey)
}

func TestCredentialRepositoryRoundTripsOAuth(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	repo := NewCredentialRepository(db, newTestEncryptor(t))

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)

	expires := time.Now().Add(time.Hour).UTC()
	cred := domain.Credential{
		SpaceID: space.ID, ServerID: "figma", Kind: domain.CredentialOAuth,
		OAuth: domain.OAuthCredential{AccessToken: "at", RefreshToken: "rt", ExpiresAt: &expires, TokenType: "Bearer"},
	}
	require.NoError(t, repo.Set(ctx, cred))

	got, ok, err := repo.Get(ctx, domain.Key{SpaceID: space.ID, ServerID: "figma"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "at", got.OAuth.AccessToken)
	require.Equal(t, "rt", got.OAuth.RefreshToken)
	require.True(t, got.OAuth.Refreshable())
	require.WithinDuration(t, expires, *got.OAuth.ExpiresAt, time.Second)
}

func TestCredentialRepositoryGetMissingReturnsNotOK(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewCredentialRepository(db, newTestEncryptor(t))

	_, ok, err := repo.Get(ctx, domain.Key{SpaceID: "space", ServerID: "missing"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCredentialRepositoryClearDeletes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	repo := NewCredentialRepository(db, newTestEncryptor(t))

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)
	key := domain.Key{SpaceID: space.ID, ServerID: "linear"}
	require.NoError(t, repo.Set(ctx, domain.Credential{SpaceID: space.ID, ServerID: "linear", Kind: domain.CredentialAPIKey, APIKey: "x"}))

	require.NoError(t, repo.Clear(ctx, key))

	_, ok, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}
