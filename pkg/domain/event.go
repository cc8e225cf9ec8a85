package domain

// ConnectionStatus is the server manager's state machine value for one
// (space, server) key.
type ConnectionStatus string

const (
	StatusDisconnected  ConnectionStatus = "disconnected"
	StatusConnecting    ConnectionStatus = "connecting"
	StatusAwaitingOAuth ConnectionStatus = "awaiting_oauth"
	StatusConnected     ConnectionStatus = "connected"
	StatusFailed        ConnectionStatus = "failed"
)

// EventKind discriminates the DomainEvent sum.
type EventKind string

const (
	EventSpaceCreated              EventKind = "space_created"
	EventSpaceUpdated              EventKind = "space_updated"
	EventSpaceDeleted              EventKind = "space_deleted"
	EventSpaceActivated            EventKind = "space_activated"
	EventClientRegistered          EventKind = "client_registered"
	EventClientUpdated             EventKind = "client_updated"
	EventClientDeleted             EventKind = "client_deleted"
	EventClientTokenIssued         EventKind = "client_token_issued"
	EventServerInstalled           EventKind = "server_installed"
	EventServerUninstalled         EventKind = "server_uninstalled"
	EventServerStatusChanged       EventKind = "server_status_changed"
	EventToolsChanged              EventKind = "tools_changed"
	EventPromptsChanged            EventKind = "prompts_changed"
	EventResourcesChanged          EventKind = "resources_changed"
	EventFeatureSetMembersChanged  EventKind = "feature_set_members_changed"
	EventOAuthComplete             EventKind = "oauth_complete"
)

// DomainEvent is an immutable fact published on the event bus. Exactly the
// fields relevant to Kind are meaningful; the rest are zero.
type DomainEvent struct {
	Kind EventKind

	SpaceID  string
	ServerID string // "*" means "all servers in the space" (see FeatureSetMembersChanged fan-out)
	ClientID string

	Status ConnectionStatus
	Reason string

	FeatureSetID string

	OAuthSuccess bool
	OAuthError   string
}
