package feature

import (
	"context"

	"github.com/mcpmux/mcpmux/pkg/domain"
	"github.com/mcpmux/mcpmux/pkg/prefixcache"
)

// Service is the unified facade and original_source's facade.rs
// both describe: one entry point composing resolution and routing for the
// inbound MCP handler, so it never has to know which repository backs
// which concern.
type Service struct {
	resolver *Resolver
	router   *Router
}

func NewService(features domain.ServerFeatureRepository, featureSets domain.FeatureSetRepository, prefixes *prefixcache.Cache) *Service {
	return &Service{
		resolver: NewResolver(features, featureSets),
		router:   NewRouter(features, prefixes),
	}
}

// EffectiveFeatures delegates to Resolver.
func (s *Service) EffectiveFeatures(ctx context.Context, spaceID string, grantedSetIDs []string, filterType *domain.FeatureType) ([]domain.ServerFeature, error) {
	return s.resolver.EffectiveFeatures(ctx, spaceID, grantedSetIDs, filterType)
}

func typePtr(t domain.FeatureType) *domain.FeatureType { return &t }

// Tools, Prompts, Resources are the type-specific views the inbound MCP
// handler's tools/list, prompts/list, and resources/list need.
func (s *Service) Tools(ctx context.Context, spaceID string, grantedSetIDs []string) ([]domain.ServerFeature, error) {
	return s.EffectiveFeatures(ctx, spaceID, grantedSetIDs, typePtr(domain.FeatureTool))
}

func (s *Service) Prompts(ctx context.Context, spaceID string, grantedSetIDs []string) ([]domain.ServerFeature, error) {
	return s.EffectiveFeatures(ctx, spaceID, grantedSetIDs, typePtr(domain.FeaturePrompt))
}

func (s *Service) Resources(ctx context.Context, spaceID string, grantedSetIDs []string) ([]domain.ServerFeature, error) {
	return s.EffectiveFeatures(ctx, spaceID, grantedSetIDs, typePtr(domain.FeatureResource))
}

// RouteQualifiedTool/RouteQualifiedPrompt delegate to Router, verifying the
// feature exists and is available before the caller dispatches the call.
// They do not check the client's grants; that is done separately via
// EffectiveFeatures/Tools/Prompts. Route* only answers "does this qualified
// name exist and which server provides it".
func (s *Service) RouteQualifiedTool(ctx context.Context, spaceID, qualifiedName string) (serverID, toolName string, err error) {
	return s.router.ResolveQualified(ctx, spaceID, qualifiedName, domain.FeatureTool)
}

func (s *Service) RouteQualifiedPrompt(ctx context.Context, spaceID, qualifiedName string) (serverID, promptName string, err error) {
	return s.router.ResolveQualified(ctx, spaceID, qualifiedName, domain.FeaturePrompt)
}

func (s *Service) RouteResourceURI(ctx context.Context, spaceID, uri string) (serverID string, err error) {
	return s.router.ResolveResourceURI(ctx, spaceID, uri)
}
