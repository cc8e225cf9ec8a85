package feature

import (
	"context"
	"sync"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

type fakeFeatures struct {
	mu      sync.Mutex
	bySpace map[string][]domain.ServerFeature
	byURI   map[string]domain.ServerFeature
}

func newFakeFeatures() *fakeFeatures {
	return &fakeFeatures{bySpace: make(map[string][]domain.ServerFeature), byURI: make(map[string]domain.ServerFeature)}
}

func (f *fakeFeatures) add(feat domain.ServerFeature) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bySpace[feat.SpaceID] = append(f.bySpace[feat.SpaceID], feat)
	if feat.Type == domain.FeatureResource {
		f.byURI[feat.SpaceID+"|"+feat.Name] = feat
	}
}

func (f *fakeFeatures) Upsert(context.Context, domain.ServerFeature) error { return nil }

func (f *fakeFeatures) ListForServer(_ context.Context, key domain.Key) ([]domain.ServerFeature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ServerFeature
	for _, feat := range f.bySpace[key.SpaceID] {
		if feat.ServerID == key.ServerID {
			out = append(out, feat)
		}
	}
	return out, nil
}

func (f *fakeFeatures) ListForSpace(_ context.Context, spaceID string) ([]domain.ServerFeature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ServerFeature(nil), f.bySpace[spaceID]...), nil
}

func (f *fakeFeatures) MarkUnavailable(context.Context, domain.Key) error { return nil }
func (f *fakeFeatures) MarkAvailable(context.Context, domain.Key) error   { return nil }
func (f *fakeFeatures) DeleteForServer(context.Context, domain.Key) error { return nil }

func (f *fakeFeatures) FindByURI(_ context.Context, spaceID, uri string) (domain.ServerFeature, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feat, ok := f.byURI[spaceID+"|"+uri]
	return feat, ok, nil
}

type fakeFeatureSets struct {
	mu      sync.Mutex
	sets    map[string]domain.FeatureSet
	members map[string][]domain.FeatureSetMember
	bySpace map[string][]string
}

func newFakeFeatureSets() *fakeFeatureSets {
	return &fakeFeatureSets{
		sets:    make(map[string]domain.FeatureSet),
		members: make(map[string][]domain.FeatureSetMember),
		bySpace: make(map[string][]string),
	}
}

func (f *fakeFeatureSets) add(set domain.FeatureSet, members []domain.FeatureSetMember) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[set.ID] = set
	f.members[set.ID] = members
	f.bySpace[set.SpaceID] = append(f.bySpace[set.SpaceID], set.ID)
}

func (f *fakeFeatureSets) Create(_ context.Context, s domain.FeatureSet) (domain.FeatureSet, error) {
	f.add(s, nil)
	return s, nil
}

func (f *fakeFeatureSets) Get(_ context.Context, id string) (domain.FeatureSet, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[id]
	return s, ok, nil
}

func (f *fakeFeatureSets) ListForSpace(_ context.Context, spaceID string) ([]domain.FeatureSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.FeatureSet
	for _, id := range f.bySpace[spaceID] {
		out = append(out, f.sets[id])
	}
	return out, nil
}

func (f *fakeFeatureSets) EnsureBuiltins(context.Context, string) error { return nil }
func (f *fakeFeatureSets) EnsureServerAll(_ context.Context, spaceID, serverID string) (domain.FeatureSet, error) {
	return domain.FeatureSet{SpaceID: spaceID, ServerID: serverID, Type: domain.FeatureSetServerAll}, nil
}

func (f *fakeFeatureSets) Members(_ context.Context, featureSetID string) ([]domain.FeatureSetMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[featureSetID], nil
}

func (f *fakeFeatureSets) SetMembers(_ context.Context, featureSetID string, members []domain.FeatureSetMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[featureSetID] = members
	return nil
}

func (f *fakeFeatureSets) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sets, id)
	delete(f.members, id)
	return nil
}
