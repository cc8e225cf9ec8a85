package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettingsRepositorySetAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(newTestDB(t))

	_, ok, err := repo.Get(ctx, "gateway_port")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Set(ctx, "gateway_port", "7431"))
	value, ok, err := repo.Get(ctx, "gateway_port")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "7431", value)

	require.NoError(t, repo.Set(ctx, "gateway_port", "8000"))
	value, _, err = repo.Get(ctx, "gateway_port")
	require.NoError(t, err)
	require.Equal(t, "8000", value)
}
