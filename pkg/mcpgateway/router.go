package mcpgateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const middlewareTimeout = 60 * time.Second

// Router builds the top-level HTTP handler mcpmuxd listens on: the
// authenticated streamable-HTTP MCP endpoint at /mcp, an unauthenticated
// /health, and (when non-nil) pkg/authserver's OAuth surface — oauthRoutes
// mounted at /oauth, wellKnown served at the fixed discovery path RFC 8414
// requires outside any prefix — sharing one listener per ("the
// gateway and the inbound OAuth surface share one HTTP listener").
// Grounded on the teacher's pkg/api.Serve (chi.NewRouter,
// middleware.RequestID, middleware.Timeout, r.Mount per prefix).
func (g *Gateway) Router(validator TokenValidator, oauthRoutes, wellKnown http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if oauthRoutes != nil {
		r.Mount("/oauth", oauthRoutes)
	}
	if wellKnown != nil {
		r.Mount("/.well-known/oauth-authorization-server", wellKnown)
	}

	mcpHandler := g.Handler()
	r.With(AuthMiddleware(validator, g.spaces)).Mount("/mcp", http.StripPrefix("/mcp", mcpHandler))

	return r
}
