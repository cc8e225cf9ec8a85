// Package mcpgateway is the inbound-facing MCP endpoint for AI-assistant
// clients. It authenticates each inbound request, resolves the
// client's effective Space and grants, and serves a per-session
// *mcp.Server whose tool/prompt/resource lists are the client's effective
// feature list and whose handlers route qualified names back through the
// connection pool.
//
// Grounded on the teacher's pkg/gateway: one *mcp.Server per session built
// with mcp.NewServer(&mcp.Implementation{...}, &mcp.ServerOptions{...})
// (custom_transport.go), tools/prompts/resources registered with
// AddTool/AddPrompt/AddResource (dynamic_mcps.go, tool_manager_ui.go), and
// call handlers that acquire a pooled client and forward the RPC
// (handlers.go's mcpServerToolHandler/mcpServerPromptHandler/
// mcpServerResourceHandler) — generalized here from one upstream server to
// the whole routed, grant-filtered namespace of a Space.
package mcpgateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/authz"
	"github.com/mcpmux/mcpmux/pkg/domain"
	"github.com/mcpmux/mcpmux/pkg/feature"
	"github.com/mcpmux/mcpmux/pkg/pool"
	"github.com/mcpmux/mcpmux/pkg/prefixcache"
)

// Implementation identifies mcpmuxd to connecting clients.
var Implementation = &mcp.Implementation{
	Name:    "mcpmux",
	Version: "0.1.0",
}

// Gateway builds one *mcp.Server per inbound session, scoped to that
// client's resolved Space and effective grants.
type Gateway struct {
	spaces   *authz.SpaceResolver
	grants   *authz.GrantResolver
	clients  domain.InboundClientRepository
	feature  *feature.Service
	pool     *pool.Manager
	prefixes *prefixcache.Cache
	events   domain.EventSubscriber
	log      *zap.SugaredLogger
}

// Deps collects Gateway's collaborators.
type Deps struct {
	Spaces   *authz.SpaceResolver
	Grants   *authz.GrantResolver
	Clients  domain.InboundClientRepository
	Feature  *feature.Service
	Pool     *pool.Manager
	Prefixes *prefixcache.Cache
	Events   domain.EventSubscriber
	Log      *zap.SugaredLogger
}

// New builds a Gateway. Log may be nil.
func New(d Deps) *Gateway {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gateway{
		spaces:   d.Spaces,
		grants:   d.Grants,
		clients:  d.Clients,
		feature:  d.Feature,
		pool:     d.Pool,
		prefixes: d.Prefixes,
		events:   d.Events,
		log:      log,
	}
}

// Handler returns the http.Handler mcpmuxd mounts at the inbound MCP
// endpoint ("MCP over Streamable HTTP on a configurable port").
func (g *Gateway) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(g.getServer, nil)
}

// getServer is the per-request session factory the streamable HTTP
// handler calls on session initialization. The client identity and its
// resolved Space have already been authenticated/resolved and stashed in
// the request context by middleware.go's bearer-token check.
func (g *Gateway) getServer(r *http.Request) *mcp.Server {
	ctx := r.Context()
	clientID, ok := ClientIDFromContext(ctx)
	if !ok {
		return errorServer("request is missing an authenticated client identity")
	}

	spaceID, ok := SpaceIDFromContext(ctx)
	if !ok {
		space, err := g.spaces.ResolveForClient(ctx, clientID)
		if err != nil {
			return errorServer(err.Error())
		}
		spaceID = space.ID
	}

	session := &clientSession{
		gateway:  g,
		clientID: clientID,
		spaceID:  spaceID,
	}

	server := mcp.NewServer(Implementation, &mcp.ServerOptions{
		HasTools:     true,
		HasPrompts:   true,
		HasResources: true,
	})
	session.server = server

	if err := session.sync(ctx); err != nil {
		g.log.Warnw("initial feature sync failed", "client_id", clientID, "space_id", spaceID, "error", err)
	}

	go session.watch(ctx)

	return server
}

// errorServer builds a *mcp.Server with no capabilities, used when session
// setup fails before a real Server can be constructed; the session still
// needs *some* server to respond to initialize with. reason is not passed
// on: the client sees an empty server with no explanation.
func errorServer(reason string) *mcp.Server {
	s := mcp.NewServer(Implementation, nil)
	_ = reason
	return s
}

// clientSession tracks one live MCP session's registered feature set so
// list-changed events can be applied as an add/remove diff instead of a
// full server rebuild.
type clientSession struct {
	gateway  *Gateway
	server   *mcp.Server
	clientID string
	spaceID  string

	registeredTools     map[string]struct{}
	registeredPrompts   map[string]struct{}
	registeredResources map[string]struct{}
}

// sync recomputes the session's effective feature list and applies it to
// the underlying *mcp.Server, registering newly-granted features and
// removing ones that dropped out of the effective set.
func (s *clientSession) sync(ctx context.Context) error {
	grants, err := s.gateway.grants.EffectiveGrants(ctx, s.clientID, s.spaceID)
	if err != nil {
		return err
	}

	tools, err := s.gateway.feature.Tools(ctx, s.spaceID, grants)
	if err != nil {
		return err
	}
	prompts, err := s.gateway.feature.Prompts(ctx, s.spaceID, grants)
	if err != nil {
		return err
	}
	resources, err := s.gateway.feature.Resources(ctx, s.spaceID, grants)
	if err != nil {
		return err
	}

	s.registeredTools = syncTools(s.server, s.gateway.prefixes, s.registeredTools, tools, s.toolHandler)
	s.registeredPrompts = syncPrompts(s.server, s.gateway.prefixes, s.registeredPrompts, prompts, s.promptHandler)
	s.registeredResources = syncResources(s.server, s.registeredResources, resources, s.resourceHandler)
	return nil
}

// watch applies list-changed domain events affecting this session's Space
// until ctx is canceled (request/session teardown), per ("the
// handler subscribes to the event bus filtered by the resolved Space and
// pushes list_changed notifications").
func (s *clientSession) watch(ctx context.Context) {
	ch, lagged, unsubscribe := s.gateway.events.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-lagged:
			if !ok {
				return
			}
			s.gateway.log.Warnw("event subscriber lagged, resyncing", "client_id", s.clientID, "skipped", n)
			if err := s.sync(ctx); err != nil {
				s.gateway.log.Warnw("resync after lag failed", "error", err)
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.SpaceID != s.spaceID {
				continue
			}
			switch ev.Kind {
			case domain.EventToolsChanged, domain.EventPromptsChanged, domain.EventResourcesChanged, domain.EventFeatureSetMembersChanged:
				if err := s.sync(ctx); err != nil {
					s.gateway.log.Warnw("feature sync failed", "error", err)
				}
			}
		}
	}
}

// toolDefinition reconstructs the upstream mcp.Tool that was cached at
// discovery time (pkg/pool's discoverFeatures marshals the raw upstream
// struct verbatim), overriding the name with the client-facing qualified
// name.
func toolDefinition(f domain.ServerFeature, qualifiedName string) *mcp.Tool {
	tool := &mcp.Tool{Name: qualifiedName, Description: f.Description}
	if len(f.Raw) > 0 {
		var upstream mcp.Tool
		if err := json.Unmarshal(f.Raw, &upstream); err == nil {
			tool.InputSchema = upstream.InputSchema
			tool.OutputSchema = upstream.OutputSchema
			tool.Annotations = upstream.Annotations
			if upstream.Description != "" {
				tool.Description = upstream.Description
			}
		}
	}
	if tool.InputSchema == nil {
		tool.InputSchema = &jsonschema.Schema{Type: "object"}
	}
	return tool
}

func promptDefinition(f domain.ServerFeature, qualifiedName string) *mcp.Prompt {
	prompt := &mcp.Prompt{Name: qualifiedName, Description: f.Description}
	if len(f.Raw) > 0 {
		var upstream mcp.Prompt
		if err := json.Unmarshal(f.Raw, &upstream); err == nil {
			prompt.Arguments = upstream.Arguments
			if upstream.Description != "" {
				prompt.Description = upstream.Description
			}
		}
	}
	return prompt
}

func resourceDefinition(f domain.ServerFeature) *mcp.Resource {
	resource := &mcp.Resource{URI: f.Name, Description: f.Description}
	if len(f.Raw) > 0 {
		var upstream mcp.Resource
		if err := json.Unmarshal(f.Raw, &upstream); err == nil {
			resource.Name = upstream.Name
			resource.MIMEType = upstream.MIMEType
			if upstream.Description != "" {
				resource.Description = upstream.Description
			}
		}
	}
	return resource
}

// routingError maps a routing/pool lookup failure to the apperr kind
// callers branch on; resources/tools/prompts share this since
// all three ultimately fail for the same reasons (unroutable name, no live
// session).
func routingError(err error) error {
	if _, ok := apperr.KindOf(err); ok {
		return err
	}
	return apperr.New(apperr.UpstreamError, "routing failed", err)
}
