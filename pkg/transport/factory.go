package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// clientName identifies mcpmuxd to backend MCP servers during the
// initialize handshake (sent with version "1").
const clientName = "mcpmuxd"

// Handlers are the domain-event callbacks a connected instance needs
// forwarded from the backend server's own change notifications (
// supplemental feature: propagating a backend's list_changed up through
// mcpmuxd's own event bus).
type Handlers struct {
	ToolsChanged     func()
	PromptsChanged   func()
	ResourcesChanged func()
}

// Options customizes one Connect call.
type Options struct {
	Handlers Handlers

	// HTTPClient overrides the client used for HTTP transports, so callers
	// can inject OAuth bearer-token + refresh behavior
	// (pkg/oauthclient.AuthorizingTransport) without this package knowing
	// anything about OAuth.
	HTTPClient *http.Client

	// Stderr, when set, receives a local-process backend's stderr stream.
	// MCP stdio servers reserve stdout for the JSON-RPC channel, so stderr
	// is the only place a backend's own log output can come from ('s
	// ServerLog "stderr" source).
	Stderr io.Writer
}

// Connect materializes resolved into a live go-sdk MCP client session.
//
// Grounded on the teacher's cmd/docker-mcp/internal/mcp/mcp_client.go
// (notification-handler wiring) and pkg/mcp/remote.go (HTTP client
// construction), generalized to spawn arbitrary local commands per
// ResolvedTransport.Kind == KindStdio instead of always shelling out to
// `docker run`.
func Connect(ctx context.Context, resolved ResolvedTransport, opts Options) (*mcp.Client, *mcp.ClientSession, error) {
	var mcpTransport mcp.Transport

	switch resolved.Kind {
	case KindStdio:
		cmd := exec.CommandContext(ctx, resolved.Command, resolved.Args...)
		cmd.Env = mergeWithProcessEnv(resolved.Env)
		cmd.Stderr = opts.Stderr
		mcpTransport = &mcp.CommandTransport{Command: cmd}
	case KindHTTP:
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		if len(resolved.Headers) > 0 {
			httpClient = &http.Client{
				Transport: &headerRoundTripper{base: httpClient.Transport, headers: resolved.Headers},
				Timeout:   httpClient.Timeout,
			}
		}
		mcpTransport = &mcp.StreamableClientTransport{Endpoint: resolved.URL, HTTPClient: httpClient}
	default:
		return nil, nil, fmt.Errorf("transport: unknown kind %q", resolved.Kind)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: "1"}, clientOptions(opts.Handlers))

	session, err := client.Connect(ctx, mcpTransport, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: connect: %w", err)
	}
	return client, session, nil
}

func clientOptions(h Handlers) *mcp.ClientOptions {
	return &mcp.ClientOptions{
		ToolListChangedHandler: func(_ context.Context, _ *mcp.ToolListChangedRequest) {
			if h.ToolsChanged != nil {
				h.ToolsChanged()
			}
		},
		PromptListChangedHandler: func(_ context.Context, _ *mcp.PromptListChangedRequest) {
			if h.PromptsChanged != nil {
				h.PromptsChanged()
			}
		},
		ResourceListChangedHandler: func(_ context.Context, _ *mcp.ResourceListChangedRequest) {
			if h.ResourcesChanged != nil {
				h.ResourcesChanged()
			}
		},
	}
}

func mergeWithProcessEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// headerRoundTripper adds static headers to every outbound request,
// leaving any Accept header the streamable transport already set alone.
//
// Grounded on the teacher's pkg/mcp/remote.go headerRoundTripper.
type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := h.base
	if base == nil {
		base = http.DefaultTransport
	}
	newReq := req.Clone(req.Context())
	for key, value := range h.headers {
		if strings.EqualFold(key, "Accept") && newReq.Header.Get("Accept") != "" {
			continue
		}
		newReq.Header.Set(key, value)
	}
	return base.RoundTrip(newReq)
}
