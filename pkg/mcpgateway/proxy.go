package mcpgateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
	"github.com/mcpmux/mcpmux/pkg/prefixcache"
)

// qualifiedNameOf resolves f's client-facing name, assigning a prefix for
// its server if one hasn't been handed out yet in this Space ('s
// prefix-assignment rule, via pkg/prefixcache).
func qualifiedNameOf(prefixes *prefixcache.Cache, f domain.ServerFeature) string {
	prefix, ok := prefixes.PrefixFor(f.SpaceID, f.ServerID)
	if !ok {
		prefix = prefixes.Assign(f.SpaceID, f.ServerID, "")
	}
	return f.QualifiedName(prefix)
}

// syncTools applies the diff between previously registered qualified tool
// names and the current effective set, returning the new registered set.
func syncTools(server *mcp.Server, prefixes *prefixcache.Cache, previous map[string]struct{}, current []domain.ServerFeature, handler func(serverID, name string) mcp.ToolHandler) map[string]struct{} {
	next := make(map[string]struct{}, len(current))
	for _, f := range current {
		next[qualifiedNameOf(prefixes, f)] = struct{}{}
	}

	for name := range previous {
		if _, ok := next[name]; !ok {
			server.RemoveTools(name)
		}
	}
	for _, f := range current {
		name := qualifiedNameOf(prefixes, f)
		if _, existed := previous[name]; existed {
			continue
		}
		server.AddTool(toolDefinition(f, name), handler(f.ServerID, f.Name))
	}
	return next
}

func syncPrompts(server *mcp.Server, prefixes *prefixcache.Cache, previous map[string]struct{}, current []domain.ServerFeature, handler func(serverID, name string) mcp.PromptHandler) map[string]struct{} {
	next := make(map[string]struct{}, len(current))
	for _, f := range current {
		next[qualifiedNameOf(prefixes, f)] = struct{}{}
	}

	for name := range previous {
		if _, ok := next[name]; !ok {
			server.RemovePrompts(name)
		}
	}
	for _, f := range current {
		name := qualifiedNameOf(prefixes, f)
		if _, existed := previous[name]; existed {
			continue
		}
		server.AddPrompt(promptDefinition(f, name), handler(f.ServerID, f.Name))
	}
	return next
}

func syncResources(server *mcp.Server, previous map[string]struct{}, current []domain.ServerFeature, handler func(serverID string) mcp.ResourceHandler) map[string]struct{} {
	next := make(map[string]struct{}, len(current))
	for _, f := range current {
		next[f.Name] = struct{}{}
	}

	for uri := range previous {
		if _, ok := next[uri]; !ok {
			server.RemoveResources(uri)
		}
	}
	for _, f := range current {
		if _, existed := previous[f.Name]; existed {
			continue
		}
		server.AddResource(resourceDefinition(f), handler(f.ServerID))
	}
	return next
}

// toolHandler builds the mcp.ToolHandler that forwards a call for the
// qualified tool name back to serverID's live upstream session, the way
// the teacher's mcpServerToolHandler does for its single-server case
// (handlers.go).
func (s *clientSession) toolHandler(serverID, originalName string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, err := s.liveSession(serverID)
		if err != nil {
			return nil, err
		}

		params := &mcp.CallToolParams{Meta: req.Params.Meta, Name: originalName}
		if len(req.Params.Arguments) > 0 {
			params.Arguments = req.Params.Arguments
		}

		result, err := sess.CallTool(ctx, params)
		if err != nil {
			return nil, routingError(err)
		}
		return result, nil
	}
}

func (s *clientSession) promptHandler(serverID, originalName string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		sess, err := s.liveSession(serverID)
		if err != nil {
			return nil, err
		}

		params := &mcp.GetPromptParams{Name: originalName, Arguments: req.Params.Arguments}
		result, err := sess.GetPrompt(ctx, params)
		if err != nil {
			return nil, routingError(err)
		}
		return result, nil
	}
}

func (s *clientSession) resourceHandler(serverID string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		sess, err := s.liveSession(serverID)
		if err != nil {
			return nil, err
		}

		result, err := sess.ReadResource(ctx, req.Params)
		if err != nil {
			return nil, routingError(err)
		}
		return result, nil
	}
}

// liveSession fetches the live upstream *mcp.ClientSession for serverID
// within this session's Space, failing with transport_failed if the server
// isn't currently connected.
func (s *clientSession) liveSession(serverID string) (*mcp.ClientSession, error) {
	key := domain.Key{SpaceID: s.spaceID, ServerID: serverID}
	inst, ok := s.gateway.pool.Snapshot(key)
	if !ok || inst.Status != domain.StatusConnected || inst.Session == nil {
		return nil, apperr.New(apperr.TransportFailed, "server "+serverID+" is not connected", nil)
	}
	return inst.Session, nil
}
