// Package feature is the feature registry and router: resolving a client's
// effective grants into a feature list, and routing an inbound qualified
// name or resource URI to the server that provides it.
//
// Discovery and caching live in pkg/pool instead — the server manager is
// what holds the live MCP session needed to
// call list_tools/list_prompts/list_resources, so upserting the cache is
// naturally part of its Connecting→Connected transition rather than a
// separate facade method the way original_source's FeatureDiscoveryService
// does it. This package owns exactly the two concerns the original's
// FeatureResolutionService and FeatureRoutingService split out.
package feature

import (
	"context"
	"fmt"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
	"github.com/mcpmux/mcpmux/pkg/prefixcache"
)

// Router resolves inbound qualified names and resource URIs to the server
// that provides them, grounded on
// original_source/.../pool/features/routing.rs's FeatureRoutingService.
type Router struct {
	features domain.ServerFeatureRepository
	prefixes *prefixcache.Cache
}

func NewRouter(features domain.ServerFeatureRepository, prefixes *prefixcache.Cache) *Router {
	return &Router{features: features, prefixes: prefixes}
}

// ResolveQualified parses "prefix_featurename" and verifies
// the named feature exists, is of kind typ, and is available.
func (r *Router) ResolveQualified(ctx context.Context, spaceID, qualifiedName string, typ domain.FeatureType) (serverID, featureName string, err error) {
	serverID, featureName, ok := r.prefixes.Parse(spaceID, qualifiedName)
	if !ok {
		return "", "", apperr.New(apperr.InvalidInput, fmt.Sprintf("name %q must be qualified as prefix_name", qualifiedName), nil)
	}

	features, err := r.features.ListForServer(ctx, domain.Key{SpaceID: spaceID, ServerID: serverID})
	if err != nil {
		return "", "", fmt.Errorf("feature: listing server features: %w", err)
	}
	for _, f := range features {
		if f.Type == typ && f.Name == featureName && f.IsAvailable {
			return serverID, featureName, nil
		}
	}
	return "", "", apperr.New(apperr.NotFound, fmt.Sprintf("%s %q not found on server %q", typ, featureName, serverID), nil)
}

// ResolveResourceURI looks up which server serves uri directly — resources
// are addressed by their already-global URI, not a prefixed name.
func (r *Router) ResolveResourceURI(ctx context.Context, spaceID, uri string) (serverID string, err error) {
	f, ok, err := r.features.FindByURI(ctx, spaceID, uri)
	if err != nil {
		return "", fmt.Errorf("feature: finding resource by uri: %w", err)
	}
	if !ok || !f.IsAvailable {
		return "", apperr.New(apperr.NotFound, fmt.Sprintf("resource %q not found", uri), nil)
	}
	return f.ServerID, nil
}
