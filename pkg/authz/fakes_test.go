package authz

import (
	"context"
	"time"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
)

type fakeClients struct {
	byID  map[string]domain.InboundClient
	grant map[string][]string // clientID|spaceID -> feature set ids
}

func newFakeClients() *fakeClients {
	return &fakeClients{byID: make(map[string]domain.InboundClient), grant: make(map[string][]string)}
}

func (f *fakeClients) add(c domain.InboundClient) { f.byID[c.ClientID] = c }

func (f *fakeClients) setGrant(clientID, spaceID string, ids []string) {
	f.grant[clientID+"|"+spaceID] = ids
}

func (f *fakeClients) Create(context.Context, domain.InboundClient) (domain.InboundClient, error) {
	return domain.InboundClient{}, nil
}

func (f *fakeClients) Get(_ context.Context, clientID string) (domain.InboundClient, bool, error) {
	c, ok := f.byID[clientID]
	return c, ok, nil
}

func (f *fakeClients) List(context.Context) ([]domain.InboundClient, error) { return nil, nil }
func (f *fakeClients) Update(context.Context, domain.InboundClient) error   { return nil }
func (f *fakeClients) Delete(context.Context, string) error                { return nil }
func (f *fakeClients) Touch(context.Context, string, time.Time) error      { return nil }

func (f *fakeClients) GrantsForClient(_ context.Context, clientID, spaceID string) ([]string, error) {
	return f.grant[clientID+"|"+spaceID], nil
}

func (f *fakeClients) SetGrants(_ context.Context, clientID, spaceID string, featureSetIDs []string) error {
	f.grant[clientID+"|"+spaceID] = featureSetIDs
	return nil
}

type fakeSpaces struct {
	byID       map[string]domain.Space
	defaultID  string
}

func newFakeSpaces() *fakeSpaces {
	return &fakeSpaces{byID: make(map[string]domain.Space)}
}

func (f *fakeSpaces) add(s domain.Space) {
	f.byID[s.ID] = s
	if s.IsDefault {
		f.defaultID = s.ID
	}
}

func (f *fakeSpaces) Create(context.Context, domain.Space) (domain.Space, error) { return domain.Space{}, nil }

func (f *fakeSpaces) Get(_ context.Context, id string) (domain.Space, error) {
	s, ok := f.byID[id]
	if !ok {
		return domain.Space{}, apperr.New(apperr.NotFound, "space not found: "+id, nil)
	}
	return s, nil
}

func (f *fakeSpaces) GetDefault(_ context.Context) (domain.Space, error) {
	if f.defaultID == "" {
		return domain.Space{}, apperr.New(apperr.NotFound, "no default space", nil)
	}
	return f.byID[f.defaultID], nil
}

func (f *fakeSpaces) List(context.Context) ([]domain.Space, error) { return nil, nil }
func (f *fakeSpaces) Update(context.Context, domain.Space) error   { return nil }

func (f *fakeSpaces) SetDefault(_ context.Context, id string) error {
	f.defaultID = id
	return nil
}

func (f *fakeSpaces) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

type fakeFeatureSetsAuthz struct {
	bySpace map[string][]domain.FeatureSet
}

func newFakeFeatureSetsAuthz() *fakeFeatureSetsAuthz {
	return &fakeFeatureSetsAuthz{bySpace: make(map[string][]domain.FeatureSet)}
}

func (f *fakeFeatureSetsAuthz) add(s domain.FeatureSet) {
	f.bySpace[s.SpaceID] = append(f.bySpace[s.SpaceID], s)
}

func (f *fakeFeatureSetsAuthz) Create(context.Context, domain.FeatureSet) (domain.FeatureSet, error) {
	return domain.FeatureSet{}, nil
}
func (f *fakeFeatureSetsAuthz) Get(context.Context, string) (domain.FeatureSet, bool, error) {
	return domain.FeatureSet{}, false, nil
}

func (f *fakeFeatureSetsAuthz) ListForSpace(_ context.Context, spaceID string) ([]domain.FeatureSet, error) {
	return f.bySpace[spaceID], nil
}

func (f *fakeFeatureSetsAuthz) EnsureBuiltins(context.Context, string) error { return nil }
func (f *fakeFeatureSetsAuthz) EnsureServerAll(_ context.Context, spaceID, serverID string) (domain.FeatureSet, error) {
	return domain.FeatureSet{SpaceID: spaceID, ServerID: serverID, Type: domain.FeatureSetServerAll}, nil
}
func (f *fakeFeatureSetsAuthz) Members(context.Context, string) ([]domain.FeatureSetMember, error) {
	return nil, nil
}
func (f *fakeFeatureSetsAuthz) SetMembers(context.Context, string, []domain.FeatureSetMember) error {
	return nil
}
func (f *fakeFeatureSetsAuthz) Delete(context.Context, string) error { return nil }
