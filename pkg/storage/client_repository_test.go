package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

func TestInboundClientRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewInboundClientRepository(newTestDB(t))

	client := domain.InboundClient{
		ClientID:         "client-1",
		RegistrationType: domain.ClientRegisteredViaDCR,
		RedirectURIs:     []string{"http://127.0.0.1:9876/callback"},
		ConnectionMode:   domain.ConnectionFollowActive,
	}
	_, err := repo.Create(ctx, client)
	require.NoError(t, err)

	got, ok, err := repo.Get(ctx, "client-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"http://127.0.0.1:9876/callback"}, got.RedirectURIs)
}

func TestInboundClientRepositoryGrantsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	sets := NewFeatureSetRepository(db)
	clients := NewInboundClientRepository(db)

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)
	set, err := sets.Create(ctx, domain.FeatureSet{SpaceID: space.ID, Name: "Custom", Type: domain.FeatureSetCustom})
	require.NoError(t, err)
	_, err = clients.Create(ctx, domain.InboundClient{ClientID: "client-1"})
	require.NoError(t, err)

	require.NoError(t, clients.SetGrants(ctx, "client-1", space.ID, []string{set.ID}))

	grants, err := clients.GrantsForClient(ctx, "client-1", space.ID)
	require.NoError(t, err)
	require.Equal(t, []string{set.ID}, grants)

	require.NoError(t, clients.SetGrants(ctx, "client-1", space.ID, nil))
	grants, err = clients.GrantsForClient(ctx, "client-1", space.ID)
	require.NoError(t, err)
	require.Empty(t, grants)
}

func TestInboundClientRepositoryDeleteMissingReturnsNotFound(t *testing.T) {
	repo := NewInboundClientRepository(newTestDB(t))
	err := repo.Delete(context.Background(), "missing")
	require.Error(t, err)
}
