package oauthclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// AuthorizingTransport is an http.RoundTripper that attaches the current
// OAuth access token to every outbound request to a backend server, and
// transparently refreshes and retries once on a 401 ("the
// gateway refreshes the token transparently").
//
// Grounded on the teacher's pkg/mcp/remote.go headerRoundTripper, which
// injects a static "Authorization: Bearer <token>" header; this type adds
// the refresh-and-retry loop the teacher's helper (a one-shot fetch-at-
// connect-time credential helper) never needed.
type AuthorizingTransport struct {
	Base  http.RoundTripper
	Key   domain.Key
	Creds domain.CredentialStore

	Metadata domain.OAuthMetadata
	ClientID string
	Manager  *Manager

	log *zap.SugaredLogger

	mu          sync.Mutex
	refreshOnce bool
}

func NewAuthorizingTransport(base http.RoundTripper, key domain.Key, creds domain.CredentialStore, metadata domain.OAuthMetadata, clientID string, manager *Manager, log *zap.SugaredLogger) *AuthorizingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AuthorizingTransport{Base: base, Key: key, Creds: creds, Metadata: metadata, ClientID: clientID, Manager: manager, log: log}
}

func (t *AuthorizingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cred, ok, err := t.Creds.Get(req.Context(), t.Key)
	if err != nil {
		return nil, fmt.Errorf("oauthclient: loading credential: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("oauthclient: no stored credential for %s/%s", t.Key.SpaceID, t.Key.ServerID)
	}

	reqCopy := req.Clone(req.Context())
	reqCopy.Header.Set("Authorization", "Bearer "+cred.OAuth.AccessToken)

	resp, err := t.Base.RoundTrip(reqCopy)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !cred.OAuth.Refreshable() {
		return resp, nil
	}

	resp.Body.Close()
	t.log.Infow("access token rejected, attempting refresh", "space", t.Key.SpaceID, "server", t.Key.ServerID)

	refreshed, err := t.refresh(req.Context(), cred.OAuth)
	if err != nil {
		return nil, fmt.Errorf("oauthclient: refreshing token after 401: %w", err)
	}

	retryReq := req.Clone(req.Context())
	retryReq.Header.Set("Authorization", "Bearer "+refreshed.AccessToken)
	return t.Base.RoundTrip(retryReq)
}

func (t *AuthorizingTransport) refresh(ctx context.Context, oauthCred domain.OAuthCredential) (domain.OAuthCredential, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	refreshed, err := t.Manager.Refresh(ctx, t.Metadata, t.ClientID, oauthCred)
	if err != nil {
		return domain.OAuthCredential{}, err
	}

	cred := domain.Credential{
		SpaceID:  t.Key.SpaceID,
		ServerID: t.Key.ServerID,
		Kind:     domain.CredentialOAuth,
		OAuth:    refreshed,
	}
	if err := t.Creds.Set(ctx, cred); err != nil {
		return domain.OAuthCredential{}, fmt.Errorf("persisting refreshed token: %w", err)
	}
	return refreshed, nil
}
