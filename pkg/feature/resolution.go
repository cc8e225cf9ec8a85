package feature

import (
	"context"
	"fmt"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// Resolver computes a client's effective feature list from its granted
// feature-set ids: a feature belongs to the effective list iff it is
// referenced by at least one granted set and is_available is true. The
// default feature set is unioned into every client's grants.
//
// original_source's FeatureResolutionService did not survive the retrieval
// filter for this pack, so domain.FeatureSetContains
// (pkg/domain/feature_set.go) is ground truth for the union/membership
// rule itself; the Go shape (one repository round-trip per referenced set,
// then a single pass over the space's full feature list) follows a
// narrow-per-aggregate repository style.
type Resolver struct {
	features    domain.ServerFeatureRepository
	featureSets domain.FeatureSetRepository
}

func NewResolver(features domain.ServerFeatureRepository, featureSets domain.FeatureSetRepository) *Resolver {
	return &Resolver{features: features, featureSets: featureSets}
}

// EffectiveFeatures returns the features visible to a client holding
// grantedSetIDs in spaceID, optionally narrowed to one FeatureType.
func (r *Resolver) EffectiveFeatures(ctx context.Context, spaceID string, grantedSetIDs []string, filterType *domain.FeatureType) ([]domain.ServerFeature, error) {
	setIDs, err := r.withDefaultSet(ctx, spaceID, grantedSetIDs)
	if err != nil {
		return nil, err
	}

	type loadedSet struct {
		set     domain.FeatureSet
		members []domain.FeatureSetMember
	}
	loaded := make([]loadedSet, 0, len(setIDs))
	for _, id := range setIDs {
		set, ok, err := r.featureSets.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("feature: loading feature set %q: %w", id, err)
		}
		if !ok {
			continue
		}
		members, err := r.featureSets.Members(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("feature: loading members of %q: %w", id, err)
		}
		loaded = append(loaded, loadedSet{set: set, members: members})
	}

	all, err := r.features.ListForSpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("feature: listing space features: %w", err)
	}

	seen := make(map[domain.Key]map[string]bool)
	result := make([]domain.ServerFeature, 0, len(all))
	for _, f := range all {
		if filterType != nil && f.Type != *filterType {
			continue
		}
		included := false
		for _, ls := range loaded {
			if domain.FeatureSetContains(ls.set, ls.members, f) {
				included = true
				break
			}
		}
		if !included {
			continue
		}
		key := domain.Key{SpaceID: f.SpaceID, ServerID: f.ServerID}
		if seen[key] == nil {
			seen[key] = make(map[string]bool)
		}
		dedupeKey := string(f.Type) + ":" + f.Name
		if seen[key][dedupeKey] {
			continue
		}
		seen[key][dedupeKey] = true
		result = append(result, f)
	}
	return result, nil
}

// withDefaultSet unions in the Space's "default" feature set id, deduplicated
// ("unioned into every client's grants (deduplicated)").
func (r *Resolver) withDefaultSet(ctx context.Context, spaceID string, grantedSetIDs []string) ([]string, error) {
	sets, err := r.featureSets.ListForSpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("feature: listing space feature sets: %w", err)
	}

	unioned := make([]string, 0, len(grantedSetIDs)+1)
	present := make(map[string]bool, len(grantedSetIDs)+1)
	for _, id := range grantedSetIDs {
		if !present[id] {
			present[id] = true
			unioned = append(unioned, id)
		}
	}
	for _, s := range sets {
		if s.Type == domain.FeatureSetDefault && !present[s.ID] {
			present[s.ID] = true
			unioned = append(unioned, s.ID)
		}
	}
	return unioned, nil
}
