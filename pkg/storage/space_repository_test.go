package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
)

func TestSpaceRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSpaceRepository(newTestDB(t))

	created, err := repo.Create(ctx, domain.Space{Name: "Work"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Work", got.Name)
}

func TestSpaceRepositoryGetMissingReturnsNotFound(t *testing.T) {
	repo := NewSpaceRepository(newTestDB(t))
	_, err := repo.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, apperr.NotFound, kind)
}

func TestSpaceRepositorySetDefaultIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewSpaceRepository(newTestDB(t))

	a, err := repo.Create(ctx, domain.Space{Name: "A"})
	require.NoError(t, err)
	b, err := repo.Create(ctx, domain.Space{Name: "B"})
	require.NoError(t, err)

	require.NoError(t, repo.SetDefault(ctx, a.ID))
	gotA, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, gotA.IsDefault)

	require.NoError(t, repo.SetDefault(ctx, b.ID))
	gotA, err = repo.Get(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, gotA.IsDefault)

	gotB, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, gotB.IsDefault)
}

func TestSpaceRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := NewSpaceRepository(newTestDB(t))

	_, err := repo.Create(ctx, domain.Space{Name: "A"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.Space{Name: "B"})
	require.NoError(t, err)

	spaces, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, spaces, 2)
}

func TestSpaceRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewSpaceRepository(newTestDB(t))

	created, err := repo.Create(ctx, domain.Space{Name: "A"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.Get(ctx, created.ID)
	require.Error(t, err)
}
