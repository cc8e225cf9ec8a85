package oauthclient

import (
	"net"
	"net/url"
	"strings"
)

// IsLoopbackHost reports whether hostname is a loopback address per RFC 8252
// §7.3: "localhost" (any case) or an unbracketed loopback IP literal such as
// "127.0.0.1" or "::1".
//
// Grounded on stacklok-toolhive's pkg/authserver/client.go, which extends
// fosite's default loopback matching to also recognize "localhost" — mcpmuxd
// reuses the same rule for both outbound DCR redirect URIs (here) and
// inbound DCR client redirect URIs (pkg/authserver), since both sides of the
// gateway are native/loopback OAuth clients per RFC 8252 §7.3.
func IsLoopbackHost(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}

// MatchesLoopbackRedirect reports whether requestedURI is an acceptable
// substitute for registeredURI under RFC 8252 §7.3: same scheme (http),
// same loopback host, same path and query, any port.
func MatchesLoopbackRedirect(requestedURI, registeredURI string) bool {
	if requestedURI == registeredURI {
		return true
	}

	requested, err := url.Parse(requestedURI)
	if err != nil {
		return false
	}
	registered, err := url.Parse(registeredURI)
	if err != nil {
		return false
	}

	if requested.Scheme != "http" || registered.Scheme != "http" {
		return false
	}
	if !IsLoopbackHost(requested.Hostname()) || !IsLoopbackHost(registered.Hostname()) {
		return false
	}
	if !hostnamesMatch(requested.Hostname(), registered.Hostname()) {
		return false
	}
	if requested.Path != registered.Path {
		return false
	}
	return requested.RawQuery == registered.RawQuery
}

func hostnamesMatch(requested, registered string) bool {
	if strings.EqualFold(requested, "localhost") && strings.EqualFold(registered, "localhost") {
		return true
	}
	return requested == registered
}
