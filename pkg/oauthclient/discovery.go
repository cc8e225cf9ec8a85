package oauthclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// protectedResourceMetadata is RFC 9728's protected-resource metadata
// document, fetched from the resource_metadata URL a server advertises in
// its WWW-Authenticate challenge (or guessed at its well-known path).
type protectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServer  string   `json:"authorization_server"`
	AuthorizationServers []string `json:"authorization_servers"`
	Scopes               []string `json:"scopes_supported"`
}

// authServerMetadataDoc is RFC 8414's authorization-server metadata
// document.
type authServerMetadataDoc struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	ScopesSupported               []string `json:"scopes_supported"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// Discovery probes a backend MCP server to determine whether it requires
// OAuth and, if so, its authorization-server metadata.
//
// Grounded on the teacher's cmd/docker-mcp/internal/oauth/discovery.go
// "Inspector-inspired" flow: trigger a 401, parse WWW-Authenticate, fetch
// protected-resource metadata (optional, RFC 9728), then fetch
// authorization-server metadata (required: OIDC's .well-known/openid-configuration
// first, falling back to RFC 8414's .well-known/oauth-authorization-server)
// with issuer validation. Debug fmt.Printf calls are replaced with zap; the
// discovered result is the already-defined domain.OAuthMetadata rather than
// a bespoke struct, so it slots directly into OutboundOAuthRegistration.
type Discovery struct {
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewDiscovery(log *zap.SugaredLogger) *Discovery {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Discovery{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Result is the outcome of probing a backend server.
type Result struct {
	RequiresOAuth bool
	Metadata      domain.OAuthMetadata
	Scopes        []string
}

// Probe sends an unauthenticated initialize request to serverURL. A 401
// response with no OAuth signal is treated as a protocol error, since MCP
// servers that require auth MUST send WWW-Authenticate (
// Non-goal: mcpmuxd does not implement bearer-token-only auth without
// discovery).
func (d *Discovery) Probe(ctx context.Context, serverURL string) (Result, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return Result{}, fmt.Errorf("oauthclient: invalid server URL: %w", err)
	}

	body := `{"jsonrpc":"2.0","method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"mcpmuxd","version":"1"}},"id":1}`
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL, strings.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("oauthclient: build probe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("oauthclient: probe %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		return Result{RequiresOAuth: false}, nil
	}

	wwwAuth := resp.Header.Get("WWW-Authenticate")
	if wwwAuth == "" {
		return Result{}, fmt.Errorf("oauthclient: server %s returned 401 with no WWW-Authenticate header", serverURL)
	}
	challenges, err := parseWWWAuthenticate(wwwAuth)
	if err != nil {
		return Result{}, fmt.Errorf("oauthclient: parse WWW-Authenticate from %s: %w", serverURL, err)
	}

	defaultAuthServerURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	authServerURL := defaultAuthServerURL

	var resourceMeta *protectedResourceMetadata
	if metadataURL := findResourceMetadataURL(challenges); metadataURL != "" {
		resourceMeta, err = d.fetchProtectedResourceMetadata(ctx, metadataURL)
	} else {
		resourceMeta, err = d.fetchProtectedResourceMetadata(ctx, defaultAuthServerURL+"/.well-known/oauth-protected-resource")
	}
	if err != nil {
		d.log.Debugw("protected resource metadata unavailable, continuing with defaults", "server", serverURL, "error", err)
	} else if resourceMeta != nil && resourceMeta.AuthorizationServer != "" {
		authServerURL = resourceMeta.AuthorizationServer
	}

	authMeta, err := d.fetchAuthServerMetadata(ctx, authServerURL)
	if err != nil {
		return Result{}, fmt.Errorf("oauthclient: fetch authorization server metadata from %s: %w", authServerURL, err)
	}

	result := Result{
		RequiresOAuth: true,
		Metadata: domain.OAuthMetadata{
			Issuer:                        authMeta.Issuer,
			AuthorizationEndpoint:         authMeta.AuthorizationEndpoint,
			TokenEndpoint:                 authMeta.TokenEndpoint,
			RegistrationEndpoint:          authMeta.RegistrationEndpoint,
			JWKSURI:                       authMeta.JWKSURI,
			ScopesSupported:               authMeta.ScopesSupported,
			CodeChallengeMethodsSupported: authMeta.CodeChallengeMethodsSupported,
		},
	}
	if resourceMeta != nil && len(resourceMeta.Scopes) > 0 {
		result.Scopes = resourceMeta.Scopes
	} else {
		result.Scopes = findRequiredScopes(challenges)
	}
	return result, nil
}

func (d *Discovery) fetchProtectedResourceMetadata(ctx context.Context, metadataURL string) (*protectedResourceMetadata, error) {
	var meta protectedResourceMetadata
	if err := d.fetchJSON(ctx, metadataURL, &meta); err != nil {
		return nil, err
	}
	if meta.Resource == "" {
		return nil, fmt.Errorf("oauthclient: protected resource metadata missing resource field")
	}
	if meta.AuthorizationServer == "" && len(meta.AuthorizationServers) > 0 {
		meta.AuthorizationServer = meta.AuthorizationServers[0]
	}
	return &meta, nil
}

// fetchAuthServerMetadata tries OIDC discovery first, falling back to
// RFC 8414's oauth-authorization-server well-known path when the server
// doesn't implement OIDC.
func (d *Discovery) fetchAuthServerMetadata(ctx context.Context, authServerURL string) (*authServerMetadataDoc, error) {
	base := strings.TrimSuffix(authServerURL, "/")

	var meta authServerMetadataDoc
	err := d.fetchJSON(ctx, base+"/.well-known/openid-configuration", &meta)
	if err != nil {
		d.log.Debugw("openid-configuration discovery unavailable, falling back to oauth-authorization-server", "server", authServerURL, "error", err)
		if err := d.fetchJSON(ctx, base+"/.well-known/oauth-authorization-server", &meta); err != nil {
			return nil, err
		}
	}
	if meta.Issuer == "" || meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
		return nil, fmt.Errorf("oauthclient: authorization server metadata missing required fields")
	}

	// RFC 8414 §3.2: issuer must match the authorization server URL we fetched from.
	issuerURL, err := url.Parse(meta.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oauthclient: invalid issuer URL %q: %w", meta.Issuer, err)
	}
	authURL, err := url.Parse(authServerURL)
	if err != nil {
		return nil, fmt.Errorf("oauthclient: invalid authorization server URL %q: %w", authServerURL, err)
	}
	if issuerURL.Scheme != authURL.Scheme || issuerURL.Host != authURL.Host {
		return nil, fmt.Errorf("oauthclient: issuer %q does not match authorization server %q", meta.Issuer, authServerURL)
	}
	return &meta, nil
}

func (d *Discovery) fetchJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("oauthclient: build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oauthclient: fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oauthclient: %s returned status %d", endpoint, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("oauthclient: read body from %s: %w", endpoint, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("oauthclient: parse JSON from %s: %w", endpoint, err)
	}
	return nil
}
