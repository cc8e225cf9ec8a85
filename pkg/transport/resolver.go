package transport

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// stateDirEnv is the environment variable local-process servers use to find
// a writable, per-(space,server) scratch directory (supplemental
// feature carried over from the original implementation's MCP_STATE_DIR).
const stateDirEnv = "MCP_STATE_DIR"

// inputValidate checks individual required-input values against the
// "required" tag rather than a whole-struct schema, since InputField's
// shape is dynamic per server (a map keyed by registry-declared name, not
// a fixed Go struct).
var inputValidate = validator.New()

// Resolve builds a ResolvedTransport from a registry definition and its
// installed-server runtime overrides. baseStateDir is the root directory
// mcpmuxd reserves for server-local state; pass "" to skip state-dir
// injection entirely (e.g. in tests).
//
// Grounded on original_source's build_transport_config: required inputs
// are checked first, then placeholder substitution happens, then registry
// env < input values < user env overrides layer on top of each other, then
// MCP_STATE_DIR is injected only if the server didn't already set one
// itself.
func Resolve(def domain.ServerDefinition, installed domain.InstalledServer, baseStateDir string) (ResolvedTransport, error) {
	if err := validateRequiredInputs(def.InputSchema, installed.InputValues); err != nil {
		return ResolvedTransport{}, err
	}

	switch def.Transport {
	case domain.TransportLocalProcess:
		return resolveStdio(def, installed, baseStateDir), nil
	case domain.TransportHTTP:
		return resolveHTTP(def, installed), nil
	default:
		return ResolvedTransport{}, fmt.Errorf("transport: unsupported transport kind %q", def.Transport)
	}
}

func validateRequiredInputs(schema map[string]domain.InputField, values map[string]string) error {
	for name, field := range schema {
		if !field.Required {
			continue
		}
		if err := inputValidate.Var(values[name], "required"); err != nil {
			return fmt.Errorf("transport: missing required input %q", name)
		}
	}
	return nil
}

func resolveStdio(def domain.ServerDefinition, installed domain.InstalledServer, baseStateDir string) ResolvedTransport {
	command := substitutePlaceholders(def.Command, installed.InputValues)

	args := make([]string, 0, len(def.ArgvTemplate)+len(installed.ExtraArgv))
	for _, a := range def.ArgvTemplate {
		args = append(args, substitutePlaceholders(a, installed.InputValues))
	}
	args = append(args, installed.ExtraArgv...)

	env := make(map[string]string, len(def.EnvTemplate)+len(installed.InputValues)+len(installed.EnvOverrides)+1)
	for k, v := range def.EnvTemplate {
		env[k] = substitutePlaceholders(v, installed.InputValues)
	}
	for k, v := range installed.InputValues {
		env[k] = v
	}
	for k, v := range installed.EnvOverrides {
		env[k] = v
	}
	if _, set := env[stateDirEnv]; !set && baseStateDir != "" {
		env[stateDirEnv] = filepath.Join(baseStateDir, "stdio", installed.SpaceID, installed.ServerID)
	}

	return ResolvedTransport{Kind: KindStdio, Command: command, Args: args, Env: env}
}

func resolveHTTP(def domain.ServerDefinition, installed domain.InstalledServer) ResolvedTransport {
	url := substitutePlaceholders(def.URLTemplate, installed.InputValues)

	headers := make(map[string]string, len(def.HeaderTemplate)+len(installed.ExtraHeaders))
	for k, v := range def.HeaderTemplate {
		headers[k] = substitutePlaceholders(v, installed.InputValues)
	}
	for k, v := range installed.ExtraHeaders {
		headers[k] = v
	}

	return ResolvedTransport{Kind: KindHTTP, URL: url, Headers: headers}
}

// substitutePlaceholders replaces every ${input:NAME} occurrence of
// template with the matching value from inputValues, leaving unmatched
// placeholders untouched.
func substitutePlaceholders(template string, inputValues map[string]string) string {
	if !strings.Contains(template, "${input:") {
		return template
	}
	result := template
	for key, value := range inputValues {
		result = strings.ReplaceAll(result, "${input:"+key+"}", value)
	}
	return result
}
