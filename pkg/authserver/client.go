package authserver

import (
	"net"
	"net/url"
	"strings"

	"github.com/ory/fosite"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// loopbackClient adapts a domain.InboundClient to fosite.Client, with RFC
// 8252 §7.3 loopback redirect matching: native clients register a loopback
// URI once but are handed a fresh ephemeral port on every launch, so the
// authorization server must accept any port on that URI's host while still
// requiring an exact scheme/host/path/query match.
type loopbackClient struct {
	*fosite.DefaultClient
}

func newLoopbackClient(c domain.InboundClient) *loopbackClient {
	secret := []byte(nil)
	return &loopbackClient{
		DefaultClient: &fosite.DefaultClient{
			ID:            c.ClientID,
			Secret:        secret,
			RedirectURIs:  c.RedirectURIs,
			GrantTypes:    c.GrantTypes,
			ResponseTypes: c.ResponseTypes,
			Scopes:        strings.Fields(c.Scope),
			Public:        c.TokenEndpointAuthMethod == "none",
		},
	}
}

// IsLoopbackRedirect reports whether uri points at 127.0.0.1, [::1], or
// localhost over http, the three hosts RFC 8252 §7.3 exempts from exact
// port matching.
func IsLoopbackRedirect(uri string) bool {
	parsed, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" && isLoopbackHost(parsed.Hostname())
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// redirectURIMatches reports whether requested equals one of the client's
// registered redirect URIs or, when both are loopback URIs, matches one
// ignoring the port. Nothing calls it: the authorize handler passes the
// request straight to fosite, whose own redirect_uri check applies.
func (c *loopbackClient) redirectURIMatches(requested string) bool {
	for _, registered := range c.GetRedirectURIs() {
		if requested == registered {
			return true
		}
		if !IsLoopbackRedirect(requested) || !IsLoopbackRedirect(registered) {
			continue
		}
		if loopbackURIsMatchIgnoringPort(requested, registered) {
			return true
		}
	}
	return false
}

func loopbackURIsMatchIgnoringPort(requested, registered string) bool {
	a, errA := url.Parse(requested)
	b, errB := url.Parse(registered)
	if errA != nil || errB != nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname()) && a.Path == b.Path && a.RawQuery == b.RawQuery
}

var _ fosite.Client = (*loopbackClient)(nil)
