package authserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ory/fosite"
	"go.uber.org/zap"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// Server is mcpmuxd's inbound OAuth 2.1 authorization server.
type Server struct {
	issuer   string
	clients  domain.InboundClientRepository
	clock    domain.Clock
	provider fosite.OAuth2Provider
	log      *zap.SugaredLogger
}

// Deps collects Server's collaborators.
type Deps struct {
	Config  Config
	Clients domain.InboundClientRepository
	OAuth   domain.InboundOAuthRepository
	Clock   domain.Clock
	Log     *zap.SugaredLogger
}

// New builds a Server. Config must already have passed Validate.
func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		issuer:   d.Config.Issuer,
		clients:  d.Clients,
		clock:    d.Clock,
		provider: newProvider(d.Config, d.Clients, d.OAuth, d.Clock),
		log:      log,
	}
}

// OAuthRouter serves /authorize, /token, and /register relative to
// whatever prefix the caller mounts it at (/oauth/authorize,
// /oauth/token, /oauth/register).
func (s *Server) OAuthRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/authorize", s.handleAuthorize)
	r.Post("/authorize", s.handleAuthorize)
	r.Post("/token", s.handleToken)
	r.Post("/register", s.handleRegister)
	return r
}

// WellKnownHandler serves the RFC 8414 metadata document at whatever path
// the caller mounts it at ('s
// /.well-known/oauth-authorization-server).
func (s *Server) WellKnownHandler() http.Handler {
	return http.HandlerFunc(s.handleWellKnown)
}
