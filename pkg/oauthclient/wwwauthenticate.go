package oauthclient

import (
	"fmt"
	"regexp"
	"strings"
)

// challenge is one scheme + parameter set parsed out of a WWW-Authenticate
// header value (RFC 7235 §2.1).
type challenge struct {
	Scheme     string
	Parameters map[string]string
}

var (
	paramPattern  = regexp.MustCompile(`([a-zA-Z0-9_-]+)\s*=\s*("([^"]*)"|([^,\s]+))`)
	schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*(\s|,|$)`)
)

// parseWWWAuthenticate parses a WWW-Authenticate header value, e.g.
// `Bearer realm="example", resource_metadata="https://api.example.com/.well-known/oauth-protected-resource"`.
//
// Grounded on the teacher's cmd/docker-mcp/internal/oauth/www_authenticate.go.
func parseWWWAuthenticate(headerValue string) ([]challenge, error) {
	if headerValue == "" {
		return nil, fmt.Errorf("oauthclient: empty WWW-Authenticate header")
	}

	var challenges []challenge
	var current *challenge

	for _, part := range splitRespectingQuotes(headerValue, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if schemePattern.MatchString(part) {
			if current != nil {
				challenges = append(challenges, *current)
			}
			scheme, params := parseChallengeStart(part)
			current = &challenge{Scheme: scheme, Parameters: params}
			continue
		}
		if current == nil {
			continue
		}
		for k, v := range parseParameters(part) {
			current.Parameters[k] = v
		}
	}
	if current != nil {
		challenges = append(challenges, *current)
	}
	if len(challenges) == 0 {
		return nil, fmt.Errorf("oauthclient: no valid challenges in WWW-Authenticate header")
	}
	return challenges, nil
}

func parseChallengeStart(part string) (string, map[string]string) {
	spaceIdx := strings.IndexByte(part, ' ')
	if spaceIdx == -1 {
		return strings.TrimSpace(part), make(map[string]string)
	}
	scheme := strings.TrimSpace(part[:spaceIdx])
	return scheme, parseParameters(strings.TrimSpace(part[spaceIdx:]))
}

func parseParameters(paramString string) map[string]string {
	params := make(map[string]string)
	if paramString == "" {
		return params
	}
	for _, match := range paramPattern.FindAllStringSubmatch(paramString, -1) {
		if len(match) < 5 {
			continue
		}
		if match[3] != "" {
			params[match[1]] = match[3]
		} else {
			params[match[1]] = match[4]
		}
	}
	return params
}

func splitRespectingQuotes(s string, delimiter rune) []string {
	var result []string
	var current strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == delimiter && !inQuotes:
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func findResourceMetadataURL(challenges []challenge) string {
	for _, c := range challenges {
		if strings.EqualFold(c.Scheme, "Bearer") {
			if v, ok := c.Parameters["resource_metadata"]; ok {
				return v
			}
		}
	}
	return ""
}

func findRequiredScopes(challenges []challenge) []string {
	for _, c := range challenges {
		if strings.EqualFold(c.Scheme, "Bearer") {
			if v, ok := c.Parameters["scope"]; ok {
				return strings.Fields(v)
			}
		}
	}
	return nil
}
