package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripperSetsHeaders(t *testing.T) {
	var gotCustom, gotAccept string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCustom = r.Header.Get("X-Custom")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	client := &http.Client{Transport: &headerRoundTripper{
		headers: map[string]string{"X-Custom": "value", "Accept": "text/plain"},
	}}

	req, err := http.NewRequest(http.MethodGet, backend.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "value", gotCustom)
	require.Equal(t, "application/json", gotAccept, "an Accept header already set by the caller must not be overridden")
}

func TestMergeWithProcessEnvAppendsOverrides(t *testing.T) {
	env := mergeWithProcessEnv(map[string]string{"FOO": "bar"})
	found := false
	for _, kv := range env {
		if kv == "FOO=bar" {
			found = true
		}
	}
	require.True(t, found)
}
