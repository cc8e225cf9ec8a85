package mcpgateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterServesHealthWithoutAuth(t *testing.T) {
	g := New(Deps{})
	router := g.Router(&fakeValidator{tokens: map[string]string{}}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouterMountsOAuthRoutesWhenProvided(t *testing.T) {
	oauth := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	g := New(Deps{})
	router := g.Router(&fakeValidator{tokens: map[string]string{}}, oauth, nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRouterMountsWellKnownWhenProvided(t *testing.T) {
	wellKnown := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	g := New(Deps{})
	router := g.Router(&fakeValidator{tokens: map[string]string{}}, nil, wellKnown)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
