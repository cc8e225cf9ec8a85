// Package authz resolves which Space an inbound client sees and what
// feature sets it is granted within that Space.
package authz

import (
	"context"

	"go.uber.org/zap"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
)

// SpaceResolver determines the effective Space for a client's connection
// mode. Effective grants within that Space are computed by GrantResolver.
//
// Grounded on original_source's SpaceResolverService: the per-mode switch
// (locked/follow_active/ask_on_change) is kept as-is, including the
// ask_on_change fallback to follow_active, left as an open question
// rather than a gap to fix here.
type SpaceResolver struct {
	clients domain.InboundClientRepository
	spaces  domain.SpaceRepository
	log     *zap.SugaredLogger
}

// NewSpaceResolver builds a SpaceResolver. log may be nil.
func NewSpaceResolver(clients domain.InboundClientRepository, spaces domain.SpaceRepository, log *zap.SugaredLogger) *SpaceResolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SpaceResolver{clients: clients, spaces: spaces, log: log}
}

// ResolveForClient returns the Space a client's current connection_mode
// resolves to.
func (r *SpaceResolver) ResolveForClient(ctx context.Context, clientID string) (domain.Space, error) {
	client, ok, err := r.clients.Get(ctx, clientID)
	if err != nil {
		return domain.Space{}, err
	}
	if !ok {
		return domain.Space{}, apperr.New(apperr.NotFound, "client not found: "+clientID, nil)
	}

	switch client.ConnectionMode {
	case domain.ConnectionLocked:
		if client.LockedSpaceID == "" {
			return domain.Space{}, apperr.New(apperr.Constraint, "client is locked but has no locked_space_id", nil)
		}
		return r.spaces.Get(ctx, client.LockedSpaceID)

	case domain.ConnectionFollowActive:
		return r.spaces.GetDefault(ctx)

	case domain.ConnectionAskOnChange:
		// TODO(mcpmux): track the client's last-selected space per session
		// instead of always following the active one.
		r.log.Debugw("ask_on_change not fully implemented, using active space", "client_id", clientID)
		return r.spaces.GetDefault(ctx)

	default:
		r.log.Warnw("unknown connection mode, defaulting to active space", "client_id", clientID, "mode", client.ConnectionMode)
		return r.spaces.GetDefault(ctx)
	}
}
