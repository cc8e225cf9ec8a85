package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

func TestFeatureSetRepositoryEnsureBuiltinsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	repo := NewFeatureSetRepository(db)

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)

	require.NoError(t, repo.EnsureBuiltins(ctx, space.ID))
	require.NoError(t, repo.EnsureBuiltins(ctx, space.ID))

	sets, err := repo.ListForSpace(ctx, space.ID)
	require.NoError(t, err)
	require.Len(t, sets, 2)
}

func TestFeatureSetRepositoryEnsureServerAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	repo := NewFeatureSetRepository(db)

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)

	first, err := repo.EnsureServerAll(ctx, space.ID, "github")
	require.NoError(t, err)
	second, err := repo.EnsureServerAll(ctx, space.ID, "github")
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
}

func TestFeatureSetRepositorySetMembersReplacesFully(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	spaces := NewSpaceRepository(db)
	repo := NewFeatureSetRepository(db)

	space, err := spaces.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)
	set, err := repo.Create(ctx, domain.FeatureSet{SpaceID: space.ID, Name: "Custom", Type: domain.FeatureSetCustom})
	require.NoError(t, err)

	require.NoError(t, repo.SetMembers(ctx, set.ID, []domain.FeatureSetMember{
		{Kind: domain.MemberServer, ServerID: "github"},
		{Kind: domain.MemberFeature, FeatureServerID: "github", FeatureType: domain.FeatureTool, FeatureName: "delete_repo", Exclude: true},
	}))

	members, err := repo.Members(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	require.NoError(t, repo.SetMembers(ctx, set.ID, []domain.FeatureSetMember{
		{Kind: domain.MemberServer, ServerID: "notion"},
	}))
	members, err = repo.Members(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "notion", members[0].ServerID)
}
