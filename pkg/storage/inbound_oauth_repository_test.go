package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

func TestInboundOAuthRepositoryConsumeCodeOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewInboundOAuthRepository(newTestDB(t))

	code := domain.InboundAuthorizationCode{
		Code: "auth-code-1", ClientID: "client-1", RedirectURI: "http://127.0.0.1:9876/cb",
		CodeChallenge: "challenge", CodeChallengeMethod: "S256",
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
	}
	require.NoError(t, repo.CreateCode(ctx, code))

	got, ok, err := repo.ConsumeCode(ctx, "auth-code-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "client-1", got.ClientID)

	_, ok, err = repo.ConsumeCode(ctx, "auth-code-1")
	require.NoError(t, err)
	require.False(t, ok, "a code must not be redeemable twice")
}

func TestInboundOAuthRepositoryConsumeMissingCode(t *testing.T) {
	repo := NewInboundOAuthRepository(newTestDB(t))
	_, ok, err := repo.ConsumeCode(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInboundOAuthRepositoryTokenRevocation(t *testing.T) {
	ctx := context.Background()
	repo := NewInboundOAuthRepository(newTestDB(t))

	token := domain.InboundToken{Token: "tok-1", Kind: "access", ClientID: "client-1", ExpiresAt: time.Now().Add(time.Hour).UTC()}
	require.NoError(t, repo.CreateToken(ctx, token))

	got, ok, err := repo.GetToken(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, got.Revoked)

	require.NoError(t, repo.RevokeToken(ctx, "tok-1"))

	got, ok, err = repo.GetToken(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Revoked)
}
