package domain

import "time"

// CredentialKind discriminates the Credential variants of 
type CredentialKind string

const (
	CredentialAPIKey    CredentialKind = "api_key"
	CredentialBasicAuth CredentialKind = "basic_auth"
	CredentialOAuth     CredentialKind = "oauth"
)

// Credential is the per-(space, server) stored secret. Exactly one of the
// *Value fields is populated according to Kind. The whole value is
// encrypted at rest by pkg/secretstore before it ever reaches the
// repository layer.
type Credential struct {
	SpaceID  string
	ServerID string
	Kind     CredentialKind

	APIKey string

	BasicUsername string
	BasicPassword string

	OAuth OAuthCredential

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OAuthCredential is the token state for an outbound OAuth-authenticated
// server.
type OAuthCredential struct {
	AccessToken  string
	RefreshToken string // empty if not refreshable
	ExpiresAt    *time.Time
	TokenType    string
	Scope        string
}

// IsExpired reports whether the token is expired relative to now. A token
// with no ExpiresAt never expires.
func (c OAuthCredential) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// ExpiresSoon reports whether the token will expire within buffer of now.
func (c OAuthCredential) ExpiresSoon(now time.Time, buffer time.Duration) bool {
	return c.ExpiresAt != nil && !now.Add(buffer).Before(*c.ExpiresAt)
}

// Refreshable reports whether a refresh token is available.
func (c OAuthCredential) Refreshable() bool {
	return c.RefreshToken != ""
}
