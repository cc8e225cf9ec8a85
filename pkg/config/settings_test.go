package config

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings struct {
	values map[string]string
}

func newFakeSettings() *fakeSettings { return &fakeSettings{values: make(map[string]string)} }

func (f *fakeSettings) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func TestResolveUsesDefaultsWhenNothingPersisted(t *testing.T) {
	s, err := Resolve(context.Background(), newFakeSettings())
	require.NoError(t, err)
	assert.Equal(t, DefaultGatewayPort, s.GatewayPort)
	assert.Equal(t, DefaultOAuthCallbackPort, s.OAuthCallbackPort)
	assert.Equal(t, DefaultLogRetentionDays, s.LogRetentionDays)
}

func TestResolveUsesPersistedValues(t *testing.T) {
	repo := newFakeSettings()
	require.NoError(t, repo.Set(context.Background(), KeyGatewayPort, "51000"))

	s, err := Resolve(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, 51000, s.GatewayPort)
	assert.Equal(t, DefaultOAuthCallbackPort, s.OAuthCallbackPort)
}

func TestResolveEnvOverridesPersisted(t *testing.T) {
	repo := newFakeSettings()
	require.NoError(t, repo.Set(context.Background(), KeyOAuthCallbackPort, "51000"))

	t.Setenv("MCPMUX_OAUTH_CALLBACK_PORT", "52000")
	defer os.Unsetenv("MCPMUX_OAUTH_CALLBACK_PORT")

	s, err := Resolve(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, 52000, s.OAuthCallbackPort)
}

func TestPersistWritesAllKeys(t *testing.T) {
	repo := newFakeSettings()
	require.NoError(t, Persist(context.Background(), repo, Settings{GatewayPort: 1, OAuthCallbackPort: 2, LogRetentionDays: 3}))

	v, ok, err := repo.Get(context.Background(), KeyGatewayPort)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)
}
