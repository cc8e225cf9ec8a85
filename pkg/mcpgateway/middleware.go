package mcpgateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// TokenValidator authenticates a bearer token issued by the inbound
// OAuth-2.1 surface (pkg/authserver) and returns the client_id it was
// issued to. Kept as a narrow interface here rather than importing
// pkg/authserver directly, matching "small capability interfaces
// per collaborator, injected at construction".
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (clientID string, ok bool)
}

// SpaceResolver resolves an authenticated client's effective Space. Kept
// narrow here for the same reason as TokenValidator: the middleware only
// needs the one method, not all of pkg/authz.
type SpaceResolver interface {
	ResolveForClient(ctx context.Context, clientID string) (domain.Space, error)
}

type contextKey string

const (
	clientIDContextKey contextKey = "mcpmux.client_id"
	spaceIDContextKey  contextKey = "mcpmux.space_id"
)

// ClientIDFromContext retrieves the client id a prior call to
// AuthMiddleware stashed in the request context.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDContextKey).(string)
	return id, ok
}

// SpaceIDFromContext retrieves the space id a prior call to AuthMiddleware
// resolved and stashed in the request context.
func SpaceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(spaceIDContextKey).(string)
	return id, ok
}

// AuthMiddleware validates the Authorization: Bearer header on every
// request except /health, resolves the client's effective Space, and
// propagates both through the request context for getServer and the
// x-mcpmux-client-id/x-mcpmux-space-id response headers alike (two custom
// headers carrying the authenticated client identity and its resolved
// Space to the handler). Grounded on the teacher's
// authenticationMiddlewareMulti (pkg/gateway/auth.go): skip /health,
// require an exact "Bearer " prefix, reject otherwise with
// WWW-Authenticate.
func AuthMiddleware(validator TokenValidator, spaces SpaceResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				unauthorized(w)
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, ok := validator.ValidateToken(r.Context(), token)
			if !ok {
				unauthorized(w)
				return
			}

			space, err := spaces.ResolveForClient(r.Context(), clientID)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), clientIDContextKey, clientID)
			ctx = context.WithValue(ctx, spaceIDContextKey, space.ID)
			w.Header().Set("x-mcpmux-client-id", clientID)
			w.Header().Set("x-mcpmux-space-id", space.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="mcpmux"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
