// Package apperr defines the error-kind taxonomy surfaced by mcpmuxd's
// services to their callers. A *Error wraps an inner cause and
// carries a Kind that callers branch on instead of matching strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way callers need to react to it.
type Kind string

const (
	NotFound         Kind = "not_found"
	Conflict         Kind = "conflict"
	InvalidInput     Kind = "invalid_input"
	Unauthorized     Kind = "unauthorized"
	Forbidden        Kind = "forbidden"
	OAuthRequired    Kind = "oauth_required"
	OAuthFailed      Kind = "oauth_failed"
	TransportFailed  Kind = "transport_failed"
	DecryptionFailed Kind = "decryption_failed"
	UpstreamError    Kind = "upstream_error"
	Timeout          Kind = "timeout"
	Constraint       Kind = "constraint"
	IO               Kind = "io"
)

// UpstreamSubKind distinguishes a protocol-level upstream error (the MCP
// server answered but reported a failure) from a transport-level one (the
// gateway could not reach it at all).
type UpstreamSubKind string

const (
	UpstreamProtocol  UpstreamSubKind = "protocol"
	UpstreamTransport UpstreamSubKind = "transport"
)

// Error is the typed error mcpmuxd's repositories and services return.
type Error struct {
	Kind     Kind
	Upstream UpstreamSubKind // only meaningful when Kind == UpstreamError
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, apperr.NotFound) style checks against the Kind
// by comparing against a sentinel *Error built with New(kind, "", nil).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Upstream(sub UpstreamSubKind, message string, cause error) *Error {
	return &Error{Kind: UpstreamError, Upstream: sub, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
