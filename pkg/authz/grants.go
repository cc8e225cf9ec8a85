package authz

import (
	"context"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// GrantResolver computes a client's effective grants within a Space: the
// feature sets explicitly granted to it, plus the Space's default set,
// unioned and deduplicated (invariant, stated from the client
// side rather than the resolution side).
type GrantResolver struct {
	clients     domain.InboundClientRepository
	featureSets domain.FeatureSetRepository
}

// NewGrantResolver builds a GrantResolver.
func NewGrantResolver(clients domain.InboundClientRepository, featureSets domain.FeatureSetRepository) *GrantResolver {
	return &GrantResolver{clients: clients, featureSets: featureSets}
}

// EffectiveGrants returns the deduplicated set of feature-set ids clientID
// may use within spaceID.
func (g *GrantResolver) EffectiveGrants(ctx context.Context, clientID, spaceID string) ([]string, error) {
	explicit, err := g.clients.GrantsForClient(ctx, clientID, spaceID)
	if err != nil {
		return nil, err
	}

	defaultID, err := g.defaultFeatureSetID(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(explicit)+1)
	out := make([]string, 0, len(explicit)+1)
	for _, id := range explicit {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if defaultID != "" {
		if _, ok := seen[defaultID]; !ok {
			out = append(out, defaultID)
		}
	}
	return out, nil
}

func (g *GrantResolver) defaultFeatureSetID(ctx context.Context, spaceID string) (string, error) {
	sets, err := g.featureSets.ListForSpace(ctx, spaceID)
	if err != nil {
		return "", err
	}
	for _, s := range sets {
		if s.Type == domain.FeatureSetDefault {
			return s.ID, nil
		}
	}
	return "", nil
}
