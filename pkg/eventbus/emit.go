package eventbus

import "github.com/mcpmux/mcpmux/pkg/domain"

// Emitter is a thin convenience wrapper over a domain.EventPublisher,
// mirroring original_source's EventEmitter: callers that only need to raise
// specific notifications don't need to construct domain.DomainEvent values
// by hand.
type Emitter struct {
	pub domain.EventPublisher
}

// NewEmitter wraps a publisher.
func NewEmitter(pub domain.EventPublisher) Emitter {
	return Emitter{pub: pub}
}

func (e Emitter) ToolsChanged(spaceID, serverID string) {
	e.pub.Publish(domain.DomainEvent{Kind: domain.EventToolsChanged, SpaceID: spaceID, ServerID: serverID})
}

func (e Emitter) PromptsChanged(spaceID, serverID string) {
	e.pub.Publish(domain.DomainEvent{Kind: domain.EventPromptsChanged, SpaceID: spaceID, ServerID: serverID})
}

func (e Emitter) ResourcesChanged(spaceID, serverID string) {
	e.pub.Publish(domain.DomainEvent{Kind: domain.EventResourcesChanged, SpaceID: spaceID, ServerID: serverID})
}

// AllChangedForSpace notifies tools/prompts/resources changed using the "*"
// wildcard server ID, for use when a feature set's membership changes and
// the caller can't narrow down which kind of feature was affected.
func (e Emitter) AllChangedForSpace(spaceID string) {
	e.ToolsChanged(spaceID, "*")
	e.PromptsChanged(spaceID, "*")
	e.ResourcesChanged(spaceID, "*")
}

func (e Emitter) ServerStatusChanged(spaceID, serverID string, status domain.ConnectionStatus, reason string) {
	e.pub.Publish(domain.DomainEvent{
		Kind:     domain.EventServerStatusChanged,
		SpaceID:  spaceID,
		ServerID: serverID,
		Status:   status,
		Reason:   reason,
	})
}

func (e Emitter) OAuthComplete(spaceID, serverID string, success bool, errMsg string) {
	e.pub.Publish(domain.DomainEvent{
		Kind:         domain.EventOAuthComplete,
		SpaceID:      spaceID,
		ServerID:     serverID,
		OAuthSuccess: success,
		OAuthError:   errMsg,
	})
}
