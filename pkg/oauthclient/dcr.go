package oauthclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mcpmux/mcpmux/pkg/apperr"
)

// dcrRequest is an RFC 7591 client registration request for a public
// (no client_secret) client.
type dcrRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	SoftwareID              string   `json:"software_id,omitempty"`
}

type dcrResponse struct {
	ClientID string `json:"client_id"`
}

// Registrar performs Dynamic Client Registration (RFC 7591) against a
// backend server's authorization server, registering mcpmuxd as a public
// client with a loopback redirect URI.
//
// Grounded on the teacher's cmd/docker-mcp/internal/oauth/dcr.go, with
// fmt.Printf debug logging replaced by zap and the hardcoded
// mcp.docker.com proxy redirect URI replaced by the caller-supplied
// per-connection loopback URI.
type Registrar struct {
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewRegistrar(log *zap.SugaredLogger) *Registrar {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registrar{httpClient: &http.Client{}, log: log}
}

// Register performs DCR against registrationEndpoint for redirectURI,
// requesting authorization_code + refresh_token grants and the given
// scopes. It returns the issued client_id.
func (r *Registrar) Register(ctx context.Context, registrationEndpoint, redirectURI, serverName string, scopes []string) (string, error) {
	if registrationEndpoint == "" {
		return "", apperr.New(apperr.OAuthFailed, fmt.Sprintf("server %s has no registration_endpoint", serverName), nil)
	}

	reg := dcrRequest{
		ClientName:              fmt.Sprintf("mcpmuxd - %s", serverName),
		RedirectURIs:            []string{redirectURI},
		TokenEndpointAuthMethod: "none",
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		ClientURI:               "https://github.com/mcpmux/mcpmux",
		SoftwareID:              "mcpmuxd",
	}
	if len(scopes) > 0 {
		reg.Scope = strings.Join(scopes, " ")
	}

	body, err := json.Marshal(reg)
	if err != nil {
		return "", fmt.Errorf("oauthclient: marshal DCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("oauthclient: build DCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	r.log.Debugw("performing dynamic client registration", "server", serverName, "endpoint", registrationEndpoint)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", apperr.New(apperr.OAuthFailed, fmt.Sprintf("DCR request to %s failed", registrationEndpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return "", apperr.New(apperr.OAuthFailed, fmt.Sprintf("DCR for %s returned status %d: %s", serverName, resp.StatusCode, string(errBody)), nil)
	}

	var parsed dcrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("oauthclient: decode DCR response: %w", err)
	}
	if parsed.ClientID == "" {
		return "", apperr.New(apperr.OAuthFailed, fmt.Sprintf("DCR response for %s missing client_id", serverName), nil)
	}
	return parsed.ClientID, nil
}
