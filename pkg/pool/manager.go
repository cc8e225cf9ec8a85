package pool

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
	"github.com/mcpmux/mcpmux/pkg/eventbus"
	"github.com/mcpmux/mcpmux/pkg/oauthclient"
	"github.com/mcpmux/mcpmux/pkg/prefixcache"
	"github.com/mcpmux/mcpmux/pkg/transport"
)

const settingsOAuthCallbackPortKey = "oauth_callback_port"

// state is the mutex-guarded live state for one (space, server) key.
type state struct {
	mu     sync.Mutex
	status domain.ConnectionStatus
	reason string

	client  *mcp.Client
	session *mcp.ClientSession
	prefix  string

	connectedAt time.Time
	backoffStep int

	// generation invalidates a stale reconnect goroutine after an explicit
	// disconnect or uninstall races with it.
	generation int
	reconnectCancel context.CancelFunc
}

func (s *state) snapshot(key domain.Key) Instance {
	return Instance{
		Key:         key,
		Status:      s.status,
		Reason:      s.reason,
		Prefix:      s.prefix,
		Client:      s.client,
		Session:     s.session,
		ConnectedAt: s.connectedAt,
	}
}

// Manager is the server manager: the state machine owning every
// (space_id, server_id) connection, its discovered features, and its
// reconnection policy.
//
// Grounded on the teacher's pkg/gateway/clientpool.go for the one-shot
// connect-collapsing idiom, replacing its hand-rolled sync.Once with
// golang.org/x/sync/singleflight (already a pack dependency via
// stacklok-toolhive) so a second caller observing Connecting attaches to
// the in-flight attempt instead of racing it.
type Manager struct {
	mu      sync.Mutex
	entries map[domain.Key]*state
	sf      singleflight.Group

	installedServers domain.InstalledServerRepository
	credentials      domain.CredentialRepository
	oauthRegs        domain.OutboundOAuthRegistrationRepository
	features         domain.ServerFeatureRepository
	featureSets      domain.FeatureSetRepository
	settings         domain.SettingsRepository

	oauth    *oauthclient.Manager
	prefixes *prefixcache.Cache
	events   eventbus.Emitter
	logs     domain.ServerLogWriter
	clock    domain.Clock
	stateDir string

	log *zap.SugaredLogger
}

// Deps bundles Manager's collaborators ("every collaborator a
// service needs is injected through one of these at construction time").
type Deps struct {
	InstalledServers domain.InstalledServerRepository
	Credentials      domain.CredentialRepository
	OAuthRegs        domain.OutboundOAuthRegistrationRepository
	Features         domain.ServerFeatureRepository
	FeatureSets      domain.FeatureSetRepository
	Settings         domain.SettingsRepository

	OAuth    *oauthclient.Manager
	Prefixes *prefixcache.Cache
	Events   eventbus.Emitter
	Logs     domain.ServerLogWriter
	Clock    domain.Clock
	StateDir string

	Log *zap.SugaredLogger
}

func NewManager(d Deps) *Manager {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		entries:          make(map[domain.Key]*state),
		installedServers: d.InstalledServers,
		credentials:      d.Credentials,
		oauthRegs:        d.OAuthRegs,
		features:         d.Features,
		featureSets:      d.FeatureSets,
		settings:         d.Settings,
		oauth:            d.OAuth,
		prefixes:         d.Prefixes,
		events:           d.Events,
		logs:             d.Logs,
		clock:            d.Clock,
		stateDir:         d.StateDir,
		log:              log,
	}
}

func (m *Manager) entryFor(key domain.Key) *state {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[key]
	if !ok {
		s = &state{status: domain.StatusDisconnected}
		m.entries[key] = s
	}
	return s
}

// Snapshot returns the current state of key without attempting to connect.
func (m *Manager) Snapshot(key domain.Key) (Instance, bool) {
	m.mu.Lock()
	s, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return Instance{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(key), true
}

// Connect drives key from Disconnected to Connected (or AwaitingOAuth /
// Failed), auto distinguishes a background reconnection attempt
// (never opens a browser) from a user-initiated one. Two concurrent
// Connect calls for the same key collapse into a single attempt via
// singleflight — "a second request observing Connecting attaches to the
// existing attempt and receives the same result".
func (m *Manager) Connect(ctx context.Context, key domain.Key, auto bool) (Instance, error) {
	sfKey := fmt.Sprintf("%s/%s", key.SpaceID, key.ServerID)
	v, err, _ := m.sf.Do(sfKey, func() (any, error) {
		return m.connect(ctx, key, auto)
	})
	if err != nil {
		return Instance{}, err
	}
	return v.(Instance), nil
}

func (m *Manager) connect(ctx context.Context, key domain.Key, auto bool) (Instance, error) {
	s := m.entryFor(key)
	s.mu.Lock()
	if s.status == domain.StatusConnected {
		inst := s.snapshot(key)
		s.mu.Unlock()
		return inst, nil
	}
	s.status = domain.StatusConnecting
	s.reason = ""
	s.generation++
	gen := s.generation
	s.mu.Unlock()
	m.events.ServerStatusChanged(key.SpaceID, key.ServerID, domain.StatusConnecting, "")

	installed, err := m.installedServers.Get(ctx, key)
	if err != nil {
		return m.fail(key, s, gen, fmt.Errorf("loading installed server: %w", err))
	}
	def := installed.CachedDefinition

	resolved, err := transport.Resolve(def, installed, m.stateDir)
	if err != nil {
		return m.fail(key, s, gen, err)
	}

	opts := transport.Options{Handlers: transport.Handlers{
		ToolsChanged:     func() { m.onUpstreamListChanged(key, domain.FeatureTool) },
		PromptsChanged:   func() { m.onUpstreamListChanged(key, domain.FeaturePrompt) },
		ResourcesChanged: func() { m.onUpstreamListChanged(key, domain.FeatureResource) },
	}}
	if def.Transport == domain.TransportLocalProcess {
		opts.Stderr = newStderrLogWriter(m.logs, key, m.now)
	}

	if def.Transport == domain.TransportHTTP {
		httpClient, awaitingOAuth, err := m.httpClientFor(ctx, key, def, resolved.URL, auto)
		if err != nil {
			return m.fail(key, s, gen, err)
		}
		if awaitingOAuth {
			s.mu.Lock()
			s.status = domain.StatusAwaitingOAuth
			s.mu.Unlock()
			m.events.ServerStatusChanged(key.SpaceID, key.ServerID, domain.StatusAwaitingOAuth, "")
			return Instance{Key: key, Status: domain.StatusAwaitingOAuth}, apperr.New(apperr.OAuthRequired, "server requires interactive authorization", nil)
		}
		opts.HTTPClient = httpClient
	}

	client, session, err := transport.Connect(ctx, resolved, opts)
	if err != nil {
		return m.fail(key, s, gen, apperr.New(apperr.TransportFailed, "connecting to server", err))
	}

	prefix := m.prefixes.Assign(key.SpaceID, key.ServerID, def.Alias)

	s.mu.Lock()
	if s.generation != gen {
		// An uninstall/disconnect raced us; the fresh session is unwanted.
		s.mu.Unlock()
		_ = session.Close()
		return Instance{}, fmt.Errorf("pool: connect superseded for %s/%s", key.SpaceID, key.ServerID)
	}
	s.status = domain.StatusConnected
	s.client = client
	s.session = session
	s.prefix = prefix
	s.connectedAt = m.now()
	s.backoffStep = 0
	s.mu.Unlock()

	m.events.ServerStatusChanged(key.SpaceID, key.ServerID, domain.StatusConnected, "")

	go m.discoverFeatures(context.Background(), key, session)

	return s.snapshot(key), nil
}

func (m *Manager) fail(key domain.Key, s *state, gen int, cause error) (Instance, error) {
	s.mu.Lock()
	if s.generation == gen {
		s.status = domain.StatusFailed
		s.reason = cause.Error()
	}
	s.mu.Unlock()
	m.events.ServerStatusChanged(key.SpaceID, key.ServerID, domain.StatusFailed, cause.Error())
	m.scheduleReconnect(key, gen)
	return Instance{Key: key, Status: domain.StatusFailed, Reason: cause.Error()}, cause
}

func (m *Manager) now() time.Time {
	if m.clock != nil {
		return m.clock.Now()
	}
	return time.Now()
}

// httpClientFor builds the *http.Client a connecting HTTP instance should
// use, applying the registry's declared auth kind. The second return value
// reports AwaitingOAuth ("Connecting → AwaitingOAuth when the
// transport requires OAuth and either no usable token exists or refresh is
// impossible, in auto mode").
func (m *Manager) httpClientFor(ctx context.Context, key domain.Key, def domain.ServerDefinition, serverURL string, auto bool) (*http.Client, bool, error) {
	switch def.Auth {
	case domain.AuthNone:
		return http.DefaultClient, false, nil

	case domain.AuthAPIKey, domain.AuthOptionalAPIKey:
		cred, ok, err := m.credentials.Get(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("loading api key credential: %w", err)
		}
		if !ok {
			if def.Auth == domain.AuthAPIKey {
				return nil, false, apperr.New(apperr.Unauthorized, "server requires an api key but none is stored", nil)
			}
			return http.DefaultClient, false, nil
		}
		return &http.Client{Transport: &bearerTransport{token: cred.APIKey}}, false, nil

	case domain.AuthOAuth:
		return m.oauthHTTPClient(ctx, key, def, serverURL, auto)

	default:
		return http.DefaultClient, false, nil
	}
}

func (m *Manager) oauthHTTPClient(ctx context.Context, key domain.Key, def domain.ServerDefinition, serverURL string, auto bool) (*http.Client, bool, error) {
	reg, _, err := m.oauthRegs.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("loading oauth registration: %w", err)
	}
	cred, hasCred, err := m.credentials.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("loading oauth credential: %w", err)
	}

	usable := hasCred && cred.Kind == domain.CredentialOAuth &&
		(!cred.OAuth.IsExpired(m.now()) || cred.OAuth.Refreshable())

	if !usable {
		if auto {
			return nil, true, nil
		}
		preferredPort := m.preferredCallbackPort(ctx)
		result, err := m.oauth.Authorize(ctx, serverURL, def.ServerID, reg, preferredPort)
		if err != nil {
			m.events.OAuthComplete(key.SpaceID, key.ServerID, false, err.Error())
			return nil, false, err
		}
		newCred := domain.Credential{SpaceID: key.SpaceID, ServerID: key.ServerID, Kind: domain.CredentialOAuth, OAuth: result.Credential}
		if err := m.credentials.Set(ctx, newCred); err != nil {
			return nil, false, fmt.Errorf("persisting oauth credential: %w", err)
		}
		result.Registration.SpaceID = key.SpaceID
		result.Registration.ServerID = key.ServerID
		if err := m.oauthRegs.Upsert(ctx, result.Registration); err != nil {
			return nil, false, fmt.Errorf("persisting oauth registration: %w", err)
		}
		if err := m.settings.Set(ctx, settingsOAuthCallbackPortKey, fmt.Sprintf("%d", result.CallbackPort)); err != nil {
			m.log.Warnw("persisting oauth callback port", "error", err)
		}
		if err := m.installedServers.SetOAuthConnected(ctx, key, true); err != nil {
			m.log.Warnw("marking oauth_connected", "error", err)
		}
		m.events.OAuthComplete(key.SpaceID, key.ServerID, true, "")

		cred = newCred
		reg = result.Registration
	}

	var metadata domain.OAuthMetadata
	if reg.CachedMetadata != nil {
		metadata = *reg.CachedMetadata
	}
	rt := oauthclient.NewAuthorizingTransport(http.DefaultTransport, key, m.credentials, metadata, reg.ClientID, m.oauth, m.log)
	return &http.Client{Transport: rt}, false, nil
}

func (m *Manager) preferredCallbackPort(ctx context.Context) int {
	raw, ok, err := m.settings.Get(ctx, settingsOAuthCallbackPortKey)
	if err != nil || !ok {
		return oauthclient.DefaultCallbackPort
	}
	var port int
	if _, err := fmt.Sscanf(raw, "%d", &port); err != nil || port <= 0 {
		return oauthclient.DefaultCallbackPort
	}
	return port
}

// Disconnect moves key to Disconnected on explicit user action: no
// reconnect is scheduled, and cached features are marked unavailable but
// retained.
func (m *Manager) Disconnect(ctx context.Context, key domain.Key) error {
	s := m.entryFor(key)
	s.mu.Lock()
	s.generation++
	if s.reconnectCancel != nil {
		s.reconnectCancel()
		s.reconnectCancel = nil
	}
	session := s.session
	s.status = domain.StatusDisconnected
	s.reason = ""
	s.client = nil
	s.session = nil
	s.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
	if err := m.features.MarkUnavailable(ctx, key); err != nil {
		m.log.Warnw("marking features unavailable", "error", err)
	}
	m.events.ServerStatusChanged(key.SpaceID, key.ServerID, domain.StatusDisconnected, "")
	return nil
}

// Uninstall tears down any live connection for key and removes every trace
// of it: features, credentials, and DCR registration ("Any state
// → Disconnected on uninstall, after which features, credentials ..., and
// DCR registrations are cleaned up").
func (m *Manager) Uninstall(ctx context.Context, key domain.Key) error {
	if err := m.Disconnect(ctx, key); err != nil {
		return err
	}
	m.prefixes.Release(key.SpaceID, key.ServerID)

	if err := m.features.DeleteForServer(ctx, key); err != nil {
		return fmt.Errorf("deleting features: %w", err)
	}
	if err := m.credentials.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	if err := m.oauthRegs.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting oauth registration: %w", err)
	}
	if err := m.installedServers.SetOAuthConnected(ctx, key, false); err != nil {
		m.log.Warnw("clearing oauth_connected on uninstall", "error", err)
	}

	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Logout clears only the stored outbound OAuth tokens for key, keeping the
// DCR registration (client_id, redirect_uri) so the next connect can reuse
// it instead of re-registering. oauth_connected is cleared rather than
// left alone, the same as on uninstall. Does not uninstall the server.
func (m *Manager) Logout(ctx context.Context, key domain.Key) error {
	if err := m.Disconnect(ctx, key); err != nil {
		return err
	}
	if err := m.credentials.Clear(ctx, key); err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	if err := m.installedServers.SetOAuthConnected(ctx, key, false); err != nil {
		return fmt.Errorf("clearing oauth_connected: %w", err)
	}
	return nil
}

// discoverFeatures runs exactly once per Connecting→Connected edge: lists
// tools/prompts/resources, upserts them as ServerFeature rows,
// and ensures the server_all feature set exists. A discovery failure for
// one kind is logged and does not affect the others or the connection.
func (m *Manager) discoverFeatures(ctx context.Context, key domain.Key, session *mcp.ClientSession) {
	if tools, err := session.ListTools(ctx, nil); err != nil {
		m.log.Warnw("discovering tools", "space", key.SpaceID, "server", key.ServerID, "error", err)
	} else {
		for _, t := range tools.Tools {
			m.upsertFeature(ctx, key, domain.FeatureTool, t.Name, t.Description, t)
		}
		m.events.ToolsChanged(key.SpaceID, key.ServerID)
	}

	if prompts, err := session.ListPrompts(ctx, nil); err != nil {
		m.log.Warnw("discovering prompts", "space", key.SpaceID, "server", key.ServerID, "error", err)
	} else {
		for _, p := range prompts.Prompts {
			m.upsertFeature(ctx, key, domain.FeaturePrompt, p.Name, p.Description, p)
		}
		m.events.PromptsChanged(key.SpaceID, key.ServerID)
	}

	if resources, err := session.ListResources(ctx, nil); err != nil {
		m.log.Warnw("discovering resources", "space", key.SpaceID, "server", key.ServerID, "error", err)
	} else {
		for _, r := range resources.Resources {
			m.upsertFeature(ctx, key, domain.FeatureResource, r.URI, r.Description, r)
		}
		m.events.ResourcesChanged(key.SpaceID, key.ServerID)
	}

	if _, err := m.featureSets.EnsureServerAll(ctx, key.SpaceID, key.ServerID); err != nil {
		m.log.Warnw("ensuring server_all feature set", "error", err)
	}
}

func (m *Manager) upsertFeature(ctx context.Context, key domain.Key, kind domain.FeatureType, name, description string, raw any) {
	payload, err := marshalRaw(raw)
	if err != nil {
		m.log.Warnw("marshaling discovered feature", "error", err)
	}
	f := domain.ServerFeature{
		SpaceID:     key.SpaceID,
		ServerID:    key.ServerID,
		Type:        kind,
		Name:        name,
		DisplayName: name,
		Description: description,
		Raw:         payload,
		IsAvailable: true,
	}
	if err := m.features.Upsert(ctx, f); err != nil {
		m.log.Warnw("upserting feature", "name", name, "error", err)
	}
}

// onUpstreamListChanged is the transport.Handlers callback invoked when a
// live backend sends its own list_changed notification: re-run discovery
// for all three kinds (the changed kind is not used to narrow it) so the
// cache and downstream list_changed propagation stay accurate.
func (m *Manager) onUpstreamListChanged(key domain.Key, _ domain.FeatureType) {
	s := m.entryFor(key)
	s.mu.Lock()
	session := s.session
	connected := s.status == domain.StatusConnected
	s.mu.Unlock()
	if !connected || session == nil {
		return
	}
	go m.discoverFeatures(context.Background(), key, session)
}

// scheduleReconnect implements reconnection policy for an
// unexpected failure: reconnect once in auto mode, then back off
// exponentially (1s, 2s, 4s, 8s, 30s cap), resetting on success. gen pins
// the attempt to the generation it was scheduled for so a later explicit
// Disconnect/Uninstall can cancel it cleanly.
func (m *Manager) scheduleReconnect(key domain.Key, gen int) {
	s := m.entryFor(key)
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	step := s.backoffStep
	s.backoffStep++
	delay := backoffFor(step)
	ctx, cancel := context.WithCancel(context.Background())
	s.reconnectCancel = cancel
	s.mu.Unlock()

	timer := time.NewTimer(delay)
	go func() {
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.mu.Lock()
		stillPending := s.generation == gen
		s.mu.Unlock()
		if !stillPending {
			return
		}
		_, _ = m.Connect(context.Background(), key, true)
	}()
}

// bearerTransport attaches a static "Authorization: Bearer <token>" header,
// used for api_key-authenticated HTTP servers.
type bearerTransport struct {
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqCopy := req.Clone(req.Context())
	reqCopy.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(reqCopy)
}
