package oauthclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWWWAuthenticateBasic(t *testing.T) {
	challenges, err := parseWWWAuthenticate(`Bearer realm="example", scope="read write", resource_metadata="https://api.example.com/.well-known/oauth-protected-resource"`)
	require.NoError(t, err)
	require.Len(t, challenges, 1)
	require.Equal(t, "Bearer", challenges[0].Scheme)
	require.Equal(t, "example", challenges[0].Parameters["realm"])
	require.Equal(t, "read write", challenges[0].Parameters["scope"])

	require.Equal(t, "https://api.example.com/.well-known/oauth-protected-resource", findResourceMetadataURL(challenges))
	require.Equal(t, []string{"read", "write"}, findRequiredScopes(challenges))
}

func TestParseWWWAuthenticateEmpty(t *testing.T) {
	_, err := parseWWWAuthenticate("")
	require.Error(t, err)
}

func TestParseWWWAuthenticateNoParams(t *testing.T) {
	challenges, err := parseWWWAuthenticate("Bearer")
	require.NoError(t, err)
	require.Len(t, challenges, 1)
	require.Equal(t, "Bearer", challenges[0].Scheme)
	require.Empty(t, challenges[0].Parameters)
}
