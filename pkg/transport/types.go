// Package transport resolves a registry ServerDefinition plus an
// InstalledServer's runtime overrides into a concrete, connectable MCP
// transport.
//
// Grounded on original_source/crates/mcpmux-gateway/src/pool/transport/resolution.rs
// for the resolution algorithm, and on the teacher's pkg/mcp/remote.go /
// cmd/docker-mcp/internal/mcp/mcp_client.go for the go-sdk wiring.
package transport

// ResolvedTransport is the fully-substituted, ready-to-connect transport
// configuration for one (space, server) instance.
type ResolvedTransport struct {
	Kind Kind

	// Local-process fields.
	Command string
	Args    []string
	Env     map[string]string

	// HTTP fields.
	URL     string
	Headers map[string]string
}

type Kind string

const (
	KindStdio Kind = "stdio"
	KindHTTP  Kind = "http"
)
