package authserver

import (
	"github.com/ory/fosite"
	"github.com/ory/fosite/compose"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// newProvider builds the fosite.OAuth2Provider mcpmuxd's handlers drive.
// Grounded on the teacher's own composition
// (compose.Compose(config, storage, &compose.CommonStrategy{...},
// compose.OAuth2AuthorizeExplicitFactory, compose.OAuth2RefreshTokenGrantFactory,
// compose.OAuth2PKCEFactory)), substituting compose.NewOAuth2HMACStrategy for
// the teacher's JWT strategy: asks for opaque bearer tokens, and
// nothing outside mcpmuxd itself ever verifies one, so there is no
// distributed-verification need a JWT would serve.
func newProvider(cfg Config, clients domain.InboundClientRepository, oauthRepo domain.InboundOAuthRepository, clock domain.Clock) fosite.OAuth2Provider {
	fc := &fosite.Config{
		GlobalSecret:               cfg.GlobalSecret,
		AuthorizeCodeLifespan:      cfg.AuthCodeLifespan,
		AccessTokenLifespan:        cfg.AccessTokenLifespan,
		RefreshTokenLifespan:       cfg.RefreshTokenLifespan,
		EnforcePKCE:                true,
		EnforcePKCEForPublicClients: true,
	}

	st := newStore(clients, oauthRepo, clock)
	strategy := compose.NewOAuth2HMACStrategy(fc)

	return compose.Compose(
		fc,
		st,
		&compose.CommonStrategy{CoreStrategy: strategy},
		compose.OAuth2AuthorizeExplicitFactory,
		compose.OAuth2RefreshTokenGrantFactory,
		compose.OAuth2PKCEFactory,
	)
}
