package authserver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ory/fosite"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// scopeString joins a fosite.Arguments scope list the way 's
// InboundAuthorizationCode/InboundToken persist it: a single
// space-delimited string, matching OAuth's own wire format for scope.
func scopeString(args fosite.Arguments) string {
	return strings.Join([]string(args), " ")
}

// store implements fosite's ClientManager, oauth2.CoreStorage, and
// pkce.PKCERequestStorage. The live fosite.Requester for each in-flight
// code/token/PKCE session is kept in an in-process map — mcpmuxd is a
// single-instance local gateway, so there is nothing to
// replicate across — while the business-relevant facts (a code exists,
// was consumed, a token exists, is revoked) are mirrored into
// domain.InboundOAuthRepository so the rest of the system's audit trail
// ("OAuth inbound artifacts") is exercised the same way the
// outbound OAuth manager exercises its own credential store.
//
// GetAuthorizeCodeSession folds fosite's usual two-phase get-then-invalidate
// into InboundOAuthRepository.ConsumeCode's single atomic consume, since
// that repository method already exists to serve exactly this
// single-use-code invariant ("authorization codes... single-use").
type store struct {
	clients domain.InboundClientRepository
	oauth   domain.InboundOAuthRepository
	clock   domain.Clock

	mu      sync.Mutex
	codes   map[string]fosite.Requester
	access  map[string]fosite.Requester
	refresh map[string]fosite.Requester
	pkce    map[string]fosite.Requester
}

func newStore(clients domain.InboundClientRepository, oauth domain.InboundOAuthRepository, clock domain.Clock) *store {
	return &store{
		clients: clients,
		oauth:   oauth,
		clock:   clock,
		codes:   make(map[string]fosite.Requester),
		access:  make(map[string]fosite.Requester),
		refresh: make(map[string]fosite.Requester),
		pkce:    make(map[string]fosite.Requester),
	}
}

// GetClient implements fosite.ClientManager.
func (s *store) GetClient(ctx context.Context, id string) (fosite.Client, error) {
	c, ok, err := s.clients.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("authserver: get client: %w", err)
	}
	if !ok {
		return nil, fosite.ErrNotFound
	}
	return newLoopbackClient(c), nil
}

// --- authorization codes ---

func (s *store) CreateAuthorizeCodeSession(ctx context.Context, signature string, request fosite.Requester) error {
	s.mu.Lock()
	s.codes[signature] = request
	s.mu.Unlock()

	challenge, method := pkceParams(request)
	return s.oauth.CreateCode(ctx, domain.InboundAuthorizationCode{
		Code:                signature,
		ClientID:            request.GetClient().GetID(),
		RedirectURI:         formValue(request, "redirect_uri"),
		Scope:               scopeString(request.GetRequestedScopes()),
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		ExpiresAt:           request.GetSession().GetExpiresAt(fosite.AuthorizeCode),
	})
}

func (s *store) GetAuthorizeCodeSession(ctx context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	_, found, err := s.oauth.ConsumeCode(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("authserver: consume authorization code: %w", err)
	}

	s.mu.Lock()
	req, cached := s.codes[signature]
	s.mu.Unlock()

	if !found {
		if cached {
			return req, fosite.ErrInvalidatedAuthorizeCode
		}
		return nil, fosite.ErrNotFound
	}
	if !cached {
		return nil, fosite.ErrNotFound
	}
	return req, nil
}

func (s *store) InvalidateAuthorizeCodeSession(_ context.Context, signature string) error {
	s.mu.Lock()
	delete(s.codes, signature)
	s.mu.Unlock()
	return nil
}

// --- access tokens ---

func (s *store) CreateAccessTokenSession(ctx context.Context, signature string, request fosite.Requester) error {
	s.mu.Lock()
	s.access[signature] = request
	s.mu.Unlock()

	return s.oauth.CreateToken(ctx, domain.InboundToken{
		Token:     signature,
		Kind:      "access",
		ClientID:  request.GetClient().GetID(),
		Scope:     scopeString(request.GetGrantedScopes()),
		ExpiresAt: request.GetSession().GetExpiresAt(fosite.AccessToken),
	})
}

func (s *store) GetAccessTokenSession(_ context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	s.mu.Lock()
	req, ok := s.access[signature]
	s.mu.Unlock()
	if !ok {
		return nil, fosite.ErrNotFound
	}
	return req, nil
}

func (s *store) DeleteAccessTokenSession(ctx context.Context, signature string) error {
	s.mu.Lock()
	delete(s.access, signature)
	s.mu.Unlock()
	return s.oauth.RevokeToken(ctx, signature)
}

// --- refresh tokens ---

func (s *store) CreateRefreshTokenSession(ctx context.Context, signature string, request fosite.Requester) error {
	s.mu.Lock()
	s.refresh[signature] = request
	s.mu.Unlock()

	return s.oauth.CreateToken(ctx, domain.InboundToken{
		Token:     signature,
		Kind:      "refresh",
		ClientID:  request.GetClient().GetID(),
		Scope:     scopeString(request.GetGrantedScopes()),
		ExpiresAt: request.GetSession().GetExpiresAt(fosite.RefreshToken),
	})
}

func (s *store) GetRefreshTokenSession(_ context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	s.mu.Lock()
	req, ok := s.refresh[signature]
	s.mu.Unlock()
	if !ok {
		return nil, fosite.ErrNotFound
	}
	return req, nil
}

func (s *store) DeleteRefreshTokenSession(ctx context.Context, signature string) error {
	s.mu.Lock()
	delete(s.refresh, signature)
	s.mu.Unlock()
	return s.oauth.RevokeToken(ctx, signature)
}

func (s *store) RevokeRefreshToken(ctx context.Context, requestID string) error {
	return s.revokeByRequestID(ctx, s.refresh, requestID)
}

func (s *store) RevokeAccessToken(ctx context.Context, requestID string) error {
	return s.revokeByRequestID(ctx, s.access, requestID)
}

func (s *store) revokeByRequestID(ctx context.Context, bucket map[string]fosite.Requester, requestID string) error {
	s.mu.Lock()
	var signature string
	for sig, req := range bucket {
		if req.GetID() == requestID {
			signature = sig
			break
		}
	}
	if signature != "" {
		delete(bucket, signature)
	}
	s.mu.Unlock()

	if signature == "" {
		return nil
	}
	return s.oauth.RevokeToken(ctx, signature)
}

// --- PKCE ---

func (s *store) CreatePKCERequestSession(_ context.Context, signature string, request fosite.Requester) error {
	s.mu.Lock()
	s.pkce[signature] = request
	s.mu.Unlock()
	return nil
}

func (s *store) GetPKCERequestSession(_ context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	s.mu.Lock()
	req, ok := s.pkce[signature]
	s.mu.Unlock()
	if !ok {
		return nil, fosite.ErrNotFound
	}
	return req, nil
}

func (s *store) DeletePKCERequestSession(_ context.Context, signature string) error {
	s.mu.Lock()
	delete(s.pkce, signature)
	s.mu.Unlock()
	return nil
}

func pkceParams(request fosite.Requester) (challenge, method string) {
	return formValue(request, "code_challenge"), formValue(request, "code_challenge_method")
}

func formValue(request fosite.Requester, key string) string {
	form := request.GetRequestForm()
	if form == nil {
		return ""
	}
	return form.Get(key)
}
