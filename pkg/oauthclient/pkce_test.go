package oauthclient

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPKCEPairChallengeMatchesVerifier(t *testing.T) {
	pair, err := NewPKCEPair()
	require.NoError(t, err)
	require.Len(t, pair.Verifier, 43)

	sum := sha256.Sum256([]byte(pair.Verifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	require.Equal(t, want, pair.Challenge)
}

func TestNewPKCEPairIsRandom(t *testing.T) {
	a, err := NewPKCEPair()
	require.NoError(t, err)
	b, err := NewPKCEPair()
	require.NoError(t, err)
	require.NotEqual(t, a.Verifier, b.Verifier)
}

func TestNewStateIsRandom(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NotEmpty(t, a)
}
