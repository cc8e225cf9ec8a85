package authserver

import (
	"context"
	"net/http"

	"github.com/ory/fosite"
)

// handleAuthorize serves GET/POST /oauth/authorize. Approved clients (DCR
// clients that have already completed the desktop shell's consent
// handshake, or pre-registered clients) are granted every scope they
// request without a further prompt; unapproved clients are rejected here —
// the actual consent UI is the desktop shell's deep-link handshake, an
// out-of-scope collaborator, so this handler only enforces the Approved
// flag it leaves behind.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ar, err := s.provider.NewAuthorizeRequest(ctx, r)
	if err != nil {
		s.log.Warnw("authorize request rejected", "error", err)
		s.provider.WriteAuthorizeError(ctx, w, ar, err)
		return
	}

	client, ok, err := s.clients.Get(ctx, ar.GetClient().GetID())
	if err != nil {
		s.provider.WriteAuthorizeError(ctx, w, ar, err)
		return
	}
	if !ok || !client.Approved {
		s.provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrAccessDenied.WithHint("client is not approved"))
		return
	}

	for _, scope := range ar.GetRequestedScopes() {
		ar.GrantScope(scope)
	}

	session := &fosite.DefaultSession{Subject: client.ClientID}
	response, err := s.provider.NewAuthorizeResponse(ctx, ar, session)
	if err != nil {
		s.log.Warnw("authorize response failed", "client_id", client.ClientID, "error", err)
		s.provider.WriteAuthorizeError(ctx, w, ar, err)
		return
	}

	s.provider.WriteAuthorizeResponse(ctx, w, ar, response)
}

// handleToken serves POST /oauth/token for both the authorization_code and
// refresh_token grants.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := &fosite.DefaultSession{}

	accessRequest, err := s.provider.NewAccessRequest(ctx, r, session)
	if err != nil {
		s.log.Warnw("access request rejected", "error", err)
		s.provider.WriteAccessError(ctx, w, accessRequest, err)
		return
	}

	response, err := s.provider.NewAccessResponse(ctx, accessRequest)
	if err != nil {
		s.log.Warnw("access response failed", "error", err)
		s.provider.WriteAccessError(ctx, w, accessRequest, err)
		return
	}

	s.provider.WriteAccessResponse(ctx, w, accessRequest, response)
}

// ValidateToken implements mcpgateway.TokenValidator, letting pkg/mcpgateway
// authenticate inbound MCP requests without importing this package's OAuth
// machinery directly.
func (s *Server) ValidateToken(ctx context.Context, token string) (string, bool) {
	_, ar, err := s.provider.IntrospectToken(ctx, token, fosite.AccessToken, &fosite.DefaultSession{})
	if err != nil {
		return "", false
	}
	return ar.GetClient().GetID(), true
}
