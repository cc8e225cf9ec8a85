package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

func TestInstalledServerRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	repo := NewInstalledServerRepository(db)

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)

	server := domain.InstalledServer{
		SpaceID:  space.ID,
		ServerID: "github",
		Enabled:  true,
		InputValues: map[string]string{"owner": "acme"},
		ExtraArgv:   []string{"--verbose"},
		CachedDefinition: domain.ServerDefinition{
			ServerID: "github", Alias: "gh", Transport: domain.TransportLocalProcess,
		},
	}
	created, err := repo.Create(ctx, server)
	require.NoError(t, err)

	got, err := repo.Get(ctx, domain.Key{SpaceID: space.ID, ServerID: "github"})
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "acme", got.InputValues["owner"])
	require.Equal(t, []string{"--verbose"}, got.ExtraArgv)
	require.Equal(t, "gh", got.CachedDefinition.Alias)
}

func TestInstalledServerRepositorySetOAuthConnected(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	repo := NewInstalledServerRepository(db)

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.InstalledServer{SpaceID: space.ID, ServerID: "notion"})
	require.NoError(t, err)

	key := domain.Key{SpaceID: space.ID, ServerID: "notion"}
	require.NoError(t, repo.SetOAuthConnected(ctx, key, true))

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, got.OAuthConnected)
}

func TestInstalledServerRepositoryListForSpace(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	repo := NewInstalledServerRepository(db)

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.InstalledServer{SpaceID: space.ID, ServerID: "a"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.InstalledServer{SpaceID: space.ID, ServerID: "b"})
	require.NoError(t, err)

	list, err := repo.ListForSpace(ctx, space.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
