package oauthclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsLoopbackHost(t *testing.T) {
	require.True(t, IsLoopbackHost("localhost"))
	require.True(t, IsLoopbackHost("LOCALHOST"))
	require.True(t, IsLoopbackHost("127.0.0.1"))
	require.True(t, IsLoopbackHost("::1"))
	require.False(t, IsLoopbackHost("example.com"))
	require.False(t, IsLoopbackHost("10.0.0.1"))
}

func TestMatchesLoopbackRedirectIgnoresPort(t *testing.T) {
	require.True(t, MatchesLoopbackRedirect("http://127.0.0.1:54321/callback", "http://127.0.0.1:9999/callback"))
	require.True(t, MatchesLoopbackRedirect("http://localhost:1234/cb", "http://localhost:5678/cb"))
}

func TestMatchesLoopbackRedirectRejectsPathMismatch(t *testing.T) {
	require.False(t, MatchesLoopbackRedirect("http://127.0.0.1:1234/other", "http://127.0.0.1:9999/callback"))
}

func TestMatchesLoopbackRedirectDoesNotCrossMatchHostnames(t *testing.T) {
	require.False(t, MatchesLoopbackRedirect("http://127.0.0.1:1234/callback", "http://localhost:9999/callback"))
}

func TestMatchesLoopbackRedirectRejectsNonLoopback(t *testing.T) {
	require.False(t, MatchesLoopbackRedirect("http://example.com/callback", "http://127.0.0.1:9999/callback"))
}
