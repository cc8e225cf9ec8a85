// Package oauthclient is mcpmuxd's outbound OAuth 2.1 client: PKCE
// generation, authorization-server discovery, Dynamic Client Registration,
// the loopback redirect listener, and the manager that ties them together
// for one backend server connection.
//
// Grounded on the teacher's cmd/docker-mcp/internal/oauth package, adapted
// from a single hardcoded https://mcp.docker.com/oauth/callback proxy
// redirect to a real per-connection loopback listener (listener.go: a
// preferred fixed port, falling back to an ephemeral one).
package oauthclient

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCEPair is a generated code_verifier/code_challenge pair for one
// authorization attempt (RFC 7636).
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// NewPKCEPair generates a fresh S256 PKCE pair. The verifier is 32 bytes
// of CSPRNG output, base64url-encoded without padding.
func NewPKCEPair() (PKCEPair, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return PKCEPair{}, fmt.Errorf("oauthclient: generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))
	return PKCEPair{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// NewState generates a random OAuth state parameter.
func NewState() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("oauthclient: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
