package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

func TestResolveStdioSubstitutesPlaceholders(t *testing.T) {
	def := domain.ServerDefinition{
		Transport:    domain.TransportLocalProcess,
		Command:      "npx",
		ArgvTemplate: []string{"-y", "@figma/mcp", "--token=${input:API_TOKEN}"},
		EnvTemplate:  map[string]string{"FIGMA_MODE": "${input:MODE}"},
	}
	installed := domain.InstalledServer{
		SpaceID:  "space-1",
		ServerID: "figma",
		InputValues: map[string]string{
			"API_TOKEN": "secret-token",
			"MODE":      "readonly",
		},
		ExtraArgv:    []string{"--verbose"},
		EnvOverrides: map[string]string{"FIGMA_MODE": "readwrite"},
	}

	resolved, err := Resolve(def, installed, "/var/lib/mcpmux")
	require.NoError(t, err)
	require.Equal(t, KindStdio, resolved.Kind)
	require.Equal(t, "npx", resolved.Command)
	require.Equal(t, []string{"-y", "@figma/mcp", "--token=secret-token", "--verbose"}, resolved.Args)
	require.Equal(t, "readwrite", resolved.Env["FIGMA_MODE"], "env overrides must win over the registry template")
	require.Equal(t, "secret-token", resolved.Env["API_TOKEN"], "input values are also exposed as env vars")
	require.Equal(t, "/var/lib/mcpmux/stdio/space-1/figma", resolved.Env["MCP_STATE_DIR"])
}

func TestResolveStdioRespectsExplicitStateDir(t *testing.T) {
	def := domain.ServerDefinition{Transport: domain.TransportLocalProcess, Command: "server"}
	installed := domain.InstalledServer{
		SpaceID: "s", ServerID: "srv",
		EnvOverrides: map[string]string{"MCP_STATE_DIR": "/custom/dir"},
	}

	resolved, err := Resolve(def, installed, "/var/lib/mcpmux")
	require.NoError(t, err)
	require.Equal(t, "/custom/dir", resolved.Env["MCP_STATE_DIR"])
}

func TestResolveHTTPMergesHeaders(t *testing.T) {
	def := domain.ServerDefinition{
		Transport:      domain.TransportHTTP,
		URLTemplate:    "https://mcp.example.com/${input:WORKSPACE}",
		HeaderTemplate: map[string]string{"X-Default": "1"},
	}
	installed := domain.InstalledServer{
		InputValues:  map[string]string{"WORKSPACE": "acme"},
		ExtraHeaders: map[string]string{"X-Custom": "yes"},
	}

	resolved, err := Resolve(def, installed, "")
	require.NoError(t, err)
	require.Equal(t, KindHTTP, resolved.Kind)
	require.Equal(t, "https://mcp.example.com/acme", resolved.URL)
	require.Equal(t, "1", resolved.Headers["X-Default"])
	require.Equal(t, "yes", resolved.Headers["X-Custom"])
}

func TestResolveUnsupportedTransport(t *testing.T) {
	_, err := Resolve(domain.ServerDefinition{Transport: "carrier-pigeon"}, domain.InstalledServer{}, "")
	require.Error(t, err)
}

func TestResolveStdioNoStateDirWhenBaseEmpty(t *testing.T) {
	def := domain.ServerDefinition{Transport: domain.TransportLocalProcess, Command: "server"}
	resolved, err := Resolve(def, domain.InstalledServer{SpaceID: "s", ServerID: "srv"}, "")
	require.NoError(t, err)
	_, set := resolved.Env["MCP_STATE_DIR"]
	require.False(t, set)
}

func TestResolveRejectsMissingRequiredInput(t *testing.T) {
	def := domain.ServerDefinition{
		Transport: domain.TransportLocalProcess,
		Command:   "server",
		InputSchema: map[string]domain.InputField{
			"API_TOKEN": {Name: "API_TOKEN", Required: true},
		},
	}
	_, err := Resolve(def, domain.InstalledServer{SpaceID: "s", ServerID: "srv"}, "")
	require.Error(t, err)
}

func TestResolveAcceptsRequiredInputPresent(t *testing.T) {
	def := domain.ServerDefinition{
		Transport: domain.TransportLocalProcess,
		Command:   "server",
		InputSchema: map[string]domain.InputField{
			"API_TOKEN": {Name: "API_TOKEN", Required: true},
		},
	}
	installed := domain.InstalledServer{
		SpaceID: "s", ServerID: "srv",
		InputValues: map[string]string{"API_TOKEN": "secret"},
	}
	_, err := Resolve(def, installed, "")
	require.NoError(t, err)
}
