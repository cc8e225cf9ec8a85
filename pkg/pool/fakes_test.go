package pool

import (
	"context"
	"sync"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
)

// Hand-written fakes for the repository ports Manager depends on, in the
// teacher's table-test style (see clientpool_test.go's in-memory stand-ins)
// rather than a mocking framework.

type fakeInstalledServers struct {
	mu      sync.Mutex
	servers map[domain.Key]domain.InstalledServer
	getErr  error
}

func newFakeInstalledServers() *fakeInstalledServers {
	return &fakeInstalledServers{servers: make(map[domain.Key]domain.InstalledServer)}
}

func (f *fakeInstalledServers) put(key domain.Key, s domain.InstalledServer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers[key] = s
}

func (f *fakeInstalledServers) Create(_ context.Context, s domain.InstalledServer) (domain.InstalledServer, error) {
	return s, nil
}

func (f *fakeInstalledServers) Get(_ context.Context, key domain.Key) (domain.InstalledServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.InstalledServer{}, f.getErr
	}
	s, ok := f.servers[key]
	if !ok {
		return domain.InstalledServer{}, apperr.New(apperr.NotFound, "installed server not found", nil)
	}
	return s, nil
}

func (f *fakeInstalledServers) ListForSpace(context.Context, string) ([]domain.InstalledServer, error) {
	return nil, nil
}
func (f *fakeInstalledServers) Update(context.Context, domain.InstalledServer) error { return nil }
func (f *fakeInstalledServers) SetOAuthConnected(_ context.Context, key domain.Key, connected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.servers[key]
	s.OAuthConnected = connected
	f.servers[key] = s
	return nil
}
func (f *fakeInstalledServers) Delete(context.Context, domain.Key) error { return nil }

type fakeCredentials struct {
	mu    sync.Mutex
	creds map[domain.Key]domain.Credential
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{creds: make(map[domain.Key]domain.Credential)}
}

func (f *fakeCredentials) Get(_ context.Context, key domain.Key) (domain.Credential, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[key]
	return c, ok, nil
}
func (f *fakeCredentials) Set(_ context.Context, cred domain.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[domain.Key{SpaceID: cred.SpaceID, ServerID: cred.ServerID}] = cred
	return nil
}
func (f *fakeCredentials) Clear(_ context.Context, key domain.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.creds, key)
	return nil
}
func (f *fakeCredentials) Delete(ctx context.Context, key domain.Key) error { return f.Clear(ctx, key) }

type fakeOAuthRegs struct {
	mu   sync.Mutex
	regs map[domain.Key]domain.OutboundOAuthRegistration
}

func newFakeOAuthRegs() *fakeOAuthRegs {
	return &fakeOAuthRegs{regs: make(map[domain.Key]domain.OutboundOAuthRegistration)}
}

func (f *fakeOAuthRegs) Get(_ context.Context, key domain.Key) (domain.OutboundOAuthRegistration, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[key]
	return r, ok, nil
}
func (f *fakeOAuthRegs) Upsert(_ context.Context, reg domain.OutboundOAuthRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[domain.Key{SpaceID: reg.SpaceID, ServerID: reg.ServerID}] = reg
	return nil
}
func (f *fakeOAuthRegs) Delete(_ context.Context, key domain.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.regs, key)
	return nil
}

type fakeFeatures struct {
	mu          sync.Mutex
	unavailable map[domain.Key]bool
	deleted     map[domain.Key]bool
}

func newFakeFeatures() *fakeFeatures {
	return &fakeFeatures{unavailable: make(map[domain.Key]bool), deleted: make(map[domain.Key]bool)}
}

func (f *fakeFeatures) Upsert(context.Context, domain.ServerFeature) error { return nil }
func (f *fakeFeatures) ListForServer(context.Context, domain.Key) ([]domain.ServerFeature, error) {
	return nil, nil
}
func (f *fakeFeatures) ListForSpace(context.Context, string) ([]domain.ServerFeature, error) {
	return nil, nil
}
func (f *fakeFeatures) MarkUnavailable(_ context.Context, key domain.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable[key] = true
	return nil
}
func (f *fakeFeatures) MarkAvailable(_ context.Context, key domain.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.unavailable, key)
	return nil
}
func (f *fakeFeatures) DeleteForServer(_ context.Context, key domain.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[key] = true
	return nil
}
func (f *fakeFeatures) FindByURI(context.Context, string, string) (domain.ServerFeature, bool, error) {
	return domain.ServerFeature{}, false, nil
}

type fakeFeatureSets struct{}

func (fakeFeatureSets) Create(_ context.Context, s domain.FeatureSet) (domain.FeatureSet, error) {
	return s, nil
}
func (fakeFeatureSets) Get(context.Context, string) (domain.FeatureSet, bool, error) {
	return domain.FeatureSet{}, false, nil
}
func (fakeFeatureSets) ListForSpace(context.Context, string) ([]domain.FeatureSet, error) {
	return nil, nil
}
func (fakeFeatureSets) EnsureBuiltins(context.Context, string) error { return nil }
func (fakeFeatureSets) EnsureServerAll(_ context.Context, spaceID, serverID string) (domain.FeatureSet, error) {
	return domain.FeatureSet{SpaceID: spaceID, ServerID: serverID, Type: domain.FeatureSetServerAll}, nil
}
func (fakeFeatureSets) Members(context.Context, string) ([]domain.FeatureSetMember, error) {
	return nil, nil
}
func (fakeFeatureSets) SetMembers(context.Context, string, []domain.FeatureSetMember) error {
	return nil
}
func (fakeFeatureSets) Delete(context.Context, string) error { return nil }

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]string)}
}

func (f *fakeSettings) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}
func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (f *fakePublisher) Publish(e domain.DomainEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakePublisher) snapshot() []domain.DomainEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DomainEvent, len(f.events))
	copy(out, f.events)
	return out
}
