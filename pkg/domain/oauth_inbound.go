package domain

import "time"

// InboundAuthorizationCode is a short-lived, PKCE-bound, single-use code
// issued by the inbound OAuth-2.1 surface.
type InboundAuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	SpaceID             string
	ExpiresAt           time.Time
	Used                bool
}

// InboundToken is a bearer token (access or refresh) issued to an inbound
// client.
type InboundToken struct {
	Token     string
	Kind      string // "access" or "refresh"
	ClientID  string
	Scope     string
	ExpiresAt time.Time
	Revoked   bool
}
