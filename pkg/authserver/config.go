// Package authserver is mcpmuxd's inbound OAuth 2.1 authorization surface:
// authorization-code grant with required PKCE, optional refresh,
// dynamic client registration, and a well-known metadata document, serving
// the AI-assistant clients pkg/mcpgateway authenticates.
//
// Grounded on the teacher's pkg/authserver: the same ory/fosite
// authorization-server shape (compose.Compose with an explicit-grant, PKCE,
// and refresh-token factory set), its Config/ClientConfig split between
// "pure, fully-resolved configuration" and runtime wiring, and its
// LoopbackClient's RFC 8252 redirect matching — narrowed to mcpmux's single
// inbound surface: no upstream IDP delegation (that is the desktop shell's
// consent handshake, an explicit out-of-scope collaborator) and opaque
// HMAC-signed tokens rather than JWTs, since nothing downstream of mcpmuxd
// verifies a token outside this same process.
package authserver

import (
	"fmt"
	"time"
)

// MinSecretLength is the minimum required length for the HMAC global secret,
// mirrored from the teacher's own OWASP/NIST-derived minimum.
const MinSecretLength = 32

// Config is fully-resolved configuration for the inbound authorization
// server. No file paths, no env lookups — those are pkg/config's job.
type Config struct {
	// Issuer is this server's own base URL, used in the well-known
	// metadata document and as the "iss" an introspecting caller expects.
	Issuer string

	// GlobalSecret signs opaque access/refresh tokens and authorization
	// codes (compose.NewOAuth2HMACStrategy). Must be at least
	// MinSecretLength bytes of cryptographically random data.
	GlobalSecret []byte

	AccessTokenLifespan  time.Duration
	RefreshTokenLifespan time.Duration
	AuthCodeLifespan     time.Duration
}

// Validate checks that c is usable and applies documented defaults for
// unset durations.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("authserver: issuer is required")
	}
	if len(c.GlobalSecret) < MinSecretLength {
		return fmt.Errorf("authserver: global secret must be at least %d bytes", MinSecretLength)
	}
	if c.AccessTokenLifespan == 0 {
		c.AccessTokenLifespan = time.Hour
	}
	if c.RefreshTokenLifespan == 0 {
		c.RefreshTokenLifespan = 7 * 24 * time.Hour
	}
	if c.AuthCodeLifespan == 0 {
		c.AuthCodeLifespan = 10 * time.Minute
	}
	return nil
}
