package oauthclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

type fakeCredentialStore struct {
	cred domain.Credential
}

func (f *fakeCredentialStore) Get(_ context.Context, key domain.Key) (domain.Credential, bool, error) {
	return f.cred, true, nil
}

func (f *fakeCredentialStore) Set(_ context.Context, cred domain.Credential) error {
	f.cred = cred
	return nil
}

func (f *fakeCredentialStore) Clear(_ context.Context, key domain.Key) error {
	f.cred = domain.Credential{}
	return nil
}

func TestAuthorizingTransportAttachesBearerToken(t *testing.T) {
	var gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	store := &fakeCredentialStore{cred: domain.Credential{
		Kind: domain.CredentialOAuth,
		OAuth: domain.OAuthCredential{AccessToken: "tok-1"},
	}}
	transport := NewAuthorizingTransport(nil, domain.Key{SpaceID: "s1", ServerID: "srv"}, store, domain.OAuthMetadata{}, "client-1", NewManager(nil, nil), nil)
	client := &http.Client{Transport: transport}

	resp, err := client.Get(backend.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "Bearer tok-1", gotAuth)
}

func TestAuthorizingTransportRefreshesOn401(t *testing.T) {
	attempt := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if r.Header.Get("Authorization") == "Bearer expired" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","token_type":"Bearer"}`)
	}))
	defer tokenServer.Close()

	store := &fakeCredentialStore{cred: domain.Credential{
		SpaceID: "s1", ServerID: "srv", Kind: domain.CredentialOAuth,
		OAuth: domain.OAuthCredential{AccessToken: "expired", RefreshToken: "refresh-1"},
	}}
	metadata := domain.OAuthMetadata{TokenEndpoint: tokenServer.URL}
	transport := NewAuthorizingTransport(nil, domain.Key{SpaceID: "s1", ServerID: "srv"}, store, metadata, "client-1", NewManager(nil, nil), nil)
	client := &http.Client{Transport: transport}

	resp, err := client.Get(backend.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, attempt)
	require.Equal(t, "fresh-token", store.cred.OAuth.AccessToken)
}
