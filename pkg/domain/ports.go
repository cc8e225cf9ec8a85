package domain

import (
	"context"
	"time"
)

// The interfaces below are the capability seams constructor-injection
// calls for: every collaborator a service needs is injected through one of
// these at construction time, never reached for through a process-wide
// singleton.

// Clock abstracts "now" so OAuth expiry and token-refresh logic is
// deterministically testable.
type Clock interface {
	Now() time.Time
}

// RandomBytes abstracts cryptographically secure random generation, the
// seam tests use to make PKCE verifiers and OAuth state deterministic.
type RandomBytes interface {
	Read(n int) ([]byte, error)
}

// URLOpener abstracts handing a URL to the OS for manual OAuth connects
// ("opens the authorization URL via the system URL handler").
type URLOpener interface {
	Open(url string) error
}

// EventPublisher is the write side of the domain event bus.
type EventPublisher interface {
	Publish(event DomainEvent)
}

// EventSubscriber is the read side; Unsubscribe releases the subscription.
type EventSubscriber interface {
	Subscribe() (ch <-chan DomainEvent, lagged <-chan uint64, unsubscribe func())
}

// CredentialStore is the single writer of outbound OAuth tokens (
// "only the credential store writes tokens").
type CredentialStore interface {
	Get(ctx context.Context, key Key) (Credential, bool, error)
	Set(ctx context.Context, cred Credential) error
	Clear(ctx context.Context, key Key) error
}

// SpaceRepository persists Space rows.
type SpaceRepository interface {
	Create(ctx context.Context, s Space) (Space, error)
	Get(ctx context.Context, id string) (Space, error)
	GetDefault(ctx context.Context) (Space, error)
	List(ctx context.Context) ([]Space, error)
	Update(ctx context.Context, s Space) error
	SetDefault(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// InstalledServerRepository persists InstalledServer rows.
type InstalledServerRepository interface {
	Create(ctx context.Context, s InstalledServer) (InstalledServer, error)
	Get(ctx context.Context, key Key) (InstalledServer, error)
	ListForSpace(ctx context.Context, spaceID string) ([]InstalledServer, error)
	Update(ctx context.Context, s InstalledServer) error
	SetOAuthConnected(ctx context.Context, key Key, connected bool) error
	Delete(ctx context.Context, key Key) error
}

// CredentialRepository persists encrypted Credential rows. Field-level
// encryption/decryption happens in the implementation (pkg/secretstore),
// never in callers.
type CredentialRepository interface {
	CredentialStore
	Delete(ctx context.Context, key Key) error
}

// OutboundOAuthRegistrationRepository persists DCR records for outbound
// connections.
type OutboundOAuthRegistrationRepository interface {
	Get(ctx context.Context, key Key) (OutboundOAuthRegistration, bool, error)
	Upsert(ctx context.Context, reg OutboundOAuthRegistration) error
	Delete(ctx context.Context, key Key) error
}

// ServerFeatureRepository persists the discovered-feature cache.
type ServerFeatureRepository interface {
	Upsert(ctx context.Context, f ServerFeature) error
	ListForServer(ctx context.Context, key Key) ([]ServerFeature, error)
	ListForSpace(ctx context.Context, spaceID string) ([]ServerFeature, error)
	MarkUnavailable(ctx context.Context, key Key) error
	MarkAvailable(ctx context.Context, key Key) error
	DeleteForServer(ctx context.Context, key Key) error
	FindByURI(ctx context.Context, spaceID, uri string) (ServerFeature, bool, error)
}

// FeatureSetRepository persists FeatureSet rows and their members.
type FeatureSetRepository interface {
	Create(ctx context.Context, set FeatureSet) (FeatureSet, error)
	Get(ctx context.Context, id string) (FeatureSet, bool, error)
	ListForSpace(ctx context.Context, spaceID string) ([]FeatureSet, error)
	EnsureBuiltins(ctx context.Context, spaceID string) error
	EnsureServerAll(ctx context.Context, spaceID, serverID string) (FeatureSet, error)
	Members(ctx context.Context, featureSetID string) ([]FeatureSetMember, error)
	SetMembers(ctx context.Context, featureSetID string, members []FeatureSetMember) error
	Delete(ctx context.Context, id string) error
}

// InboundClientRepository persists InboundClient rows and grants.
type InboundClientRepository interface {
	Create(ctx context.Context, c InboundClient) (InboundClient, error)
	Get(ctx context.Context, clientID string) (InboundClient, bool, error)
	List(ctx context.Context) ([]InboundClient, error)
	Update(ctx context.Context, c InboundClient) error
	Delete(ctx context.Context, clientID string) error
	Touch(ctx context.Context, clientID string, at time.Time) error

	GrantsForClient(ctx context.Context, clientID, spaceID string) ([]string, error)
	SetGrants(ctx context.Context, clientID, spaceID string, featureSetIDs []string) error
}

// InboundOAuthRepository persists inbound authorization codes and tokens.
type InboundOAuthRepository interface {
	CreateCode(ctx context.Context, code InboundAuthorizationCode) error
	ConsumeCode(ctx context.Context, code string) (InboundAuthorizationCode, bool, error)
	CreateToken(ctx context.Context, token InboundToken) error
	GetToken(ctx context.Context, token string) (InboundToken, bool, error)
	RevokeToken(ctx context.Context, token string) error
}

// ServerLogWriter appends lines to a (space, server) log stream.
type ServerLogWriter interface {
	Append(key Key, entry ServerLog) error
}

// SettingsRepository persists the well-known settings table.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
