package oauthclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoopbackListenerCapturesCallback(t *testing.T) {
	l, err := NewLoopbackListener(0)
	require.NoError(t, err)
	require.Contains(t, l.RedirectURI(), "http://127.0.0.1:")

	go func() {
		resp, err := http.Get(l.RedirectURI() + "?code=abc123&state=xyz")
		if err == nil {
			resp.Body.Close()
		}
	}()

	result, err := l.Wait(t.Context())
	require.NoError(t, err)
	require.Equal(t, "abc123", result.Code)
	require.Equal(t, "xyz", result.State)
	require.Empty(t, result.Error)
}

func TestLoopbackListenerCapturesError(t *testing.T) {
	l, err := NewLoopbackListener(0)
	require.NoError(t, err)

	go func() {
		resp, err := http.Get(l.RedirectURI() + "?error=access_denied")
		if err == nil {
			resp.Body.Close()
		}
	}()

	result, err := l.Wait(t.Context())
	require.NoError(t, err)
	require.Equal(t, "access_denied", result.Error)
}
