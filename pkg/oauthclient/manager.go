package oauthclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
)

// Manager runs the full outbound OAuth 2.1 + PKCE authorization-code flow
// for one backend server connection: discover, register (if needed), open
// a loopback listener, hand the user a URL, exchange the returned code for
// tokens.
//
// Grounded on the teacher's cmd/docker-mcp/internal/oauth package, with the
// GitHub-specific exchange.go replaced by golang.org/x/oauth2's
// Config.Exchange — the teacher's token exchange was hardcoded to
// github.com's endpoint and so isn't reusable for arbitrary backend
// servers.
type Manager struct {
	discovery *Discovery
	registrar *Registrar
	opener    domain.URLOpener
	log       *zap.SugaredLogger
}

func NewManager(opener domain.URLOpener, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		discovery: NewDiscovery(log),
		registrar: NewRegistrar(log),
		opener:    opener,
		log:       log,
	}
}

// AuthorizeResult carries the outcome of a completed interactive
// authorization along with the loopback port actually bound, so the caller
// can persist it ("persist whichever port is used so the
// redirect URI is stable across restarts").
type AuthorizeResult struct {
	Credential   domain.OAuthCredential
	Registration domain.OutboundOAuthRegistration
	CallbackPort int
}

// Authorize runs discovery (if metadata isn't already cached), DCR (if the
// registration is missing or its redirect URI went stale), and then the
// interactive authorization-code exchange. preferredPort is the
// previously-persisted loopback port (0 if none yet); it is tried first
// but falls back to an ephemeral port if unavailable.
func (m *Manager) Authorize(ctx context.Context, serverURL, serverName string, reg domain.OutboundOAuthRegistration, preferredPort int) (AuthorizeResult, error) {
	metadata := domain.OAuthMetadata{}
	if reg.CachedMetadata != nil {
		metadata = *reg.CachedMetadata
	} else {
		probe, err := m.discovery.Probe(ctx, serverURL)
		if err != nil {
			return AuthorizeResult{}, apperr.New(apperr.OAuthFailed, "discovering authorization server", err)
		}
		if !probe.RequiresOAuth {
			return AuthorizeResult{}, apperr.New(apperr.OAuthFailed, fmt.Sprintf("server %s does not require OAuth", serverName), nil)
		}
		metadata = probe.Metadata
		reg.CachedMetadata = &metadata
	}

	listener, err := NewLoopbackListener(preferredPort)
	if err != nil {
		return AuthorizeResult{}, err
	}
	redirectURI := listener.RedirectURI()

	if reg.NeedsFreshDCR(redirectURI) {
		clientID, err := m.registrar.Register(ctx, metadata.RegistrationEndpoint, redirectURI, serverName, metadata.ScopesSupported)
		if err != nil {
			listener.Close()
			return AuthorizeResult{}, err
		}
		reg.ClientID = clientID
		reg.RedirectURI = redirectURI
		reg.ServerURL = serverURL
	}

	pkce, err := NewPKCEPair()
	if err != nil {
		listener.Close()
		return AuthorizeResult{}, err
	}
	state, err := NewState()
	if err != nil {
		listener.Close()
		return AuthorizeResult{}, err
	}

	oauthCfg := &oauth2.Config{
		ClientID: reg.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  metadata.AuthorizationEndpoint,
			TokenURL: metadata.TokenEndpoint,
		},
		RedirectURL: redirectURI,
		Scopes:      metadata.ScopesSupported,
	}

	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	callbackPort := listener.Port()

	m.log.Infow("opening browser for authorization", "server", serverName, "url", authURL)
	if err := m.opener.Open(authURL); err != nil {
		listener.Close()
		return AuthorizeResult{}, apperr.New(apperr.OAuthFailed, "opening browser", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	callback, err := listener.Wait(waitCtx)
	if err != nil {
		return AuthorizeResult{}, apperr.New(apperr.OAuthFailed, "waiting for authorization redirect", err)
	}
	if callback.Error != "" {
		return AuthorizeResult{}, apperr.New(apperr.OAuthFailed, fmt.Sprintf("authorization denied: %s", callback.Error), nil)
	}
	if callback.State != state {
		return AuthorizeResult{}, apperr.New(apperr.OAuthFailed, "state mismatch in authorization redirect", nil)
	}

	token, err := oauthCfg.Exchange(ctx, callback.Code,
		oauth2.SetAuthURLParam("code_verifier", pkce.Verifier),
	)
	if err != nil {
		return AuthorizeResult{}, apperr.New(apperr.OAuthFailed, "exchanging authorization code", err)
	}

	cred := domain.OAuthCredential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		cred.ExpiresAt = &expiry
	}
	return AuthorizeResult{Credential: cred, Registration: reg, CallbackPort: callbackPort}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (m *Manager) Refresh(ctx context.Context, metadata domain.OAuthMetadata, clientID string, cred domain.OAuthCredential) (domain.OAuthCredential, error) {
	if !cred.Refreshable() {
		return domain.OAuthCredential{}, apperr.New(apperr.OAuthFailed, "credential has no refresh token", nil)
	}
	cfg := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{TokenURL: metadata.TokenEndpoint},
	}
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return domain.OAuthCredential{}, apperr.New(apperr.OAuthFailed, "refreshing access token", err)
	}
	refreshed := domain.OAuthCredential{
		AccessToken:  token.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        cred.Scope,
	}
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		refreshed.ExpiresAt = &expiry
	}
	return refreshed, nil
}
