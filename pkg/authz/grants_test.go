package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

func TestEffectiveGrantsUnionsExplicitAndDefault(t *testing.T) {
	clients := newFakeClients()
	featureSets := newFakeFeatureSetsAuthz()

	featureSets.add(domain.FeatureSet{ID: "default-set", SpaceID: "space1", Type: domain.FeatureSetDefault})
	clients.setGrant("c1", "space1", []string{"custom-set"})

	g := NewGrantResolver(clients, featureSets)
	grants, err := g.EffectiveGrants(context.Background(), "c1", "space1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"custom-set", "default-set"}, grants)
}

func TestEffectiveGrantsDedupesWhenDefaultAlreadyExplicit(t *testing.T) {
	clients := newFakeClients()
	featureSets := newFakeFeatureSetsAuthz()

	featureSets.add(domain.FeatureSet{ID: "default-set", SpaceID: "space1", Type: domain.FeatureSetDefault})
	clients.setGrant("c1", "space1", []string{"default-set", "custom-set"})

	g := NewGrantResolver(clients, featureSets)
	grants, err := g.EffectiveGrants(context.Background(), "c1", "space1")
	require.NoError(t, err)
	assert.Len(t, grants, 2)
	assert.ElementsMatch(t, []string{"default-set", "custom-set"}, grants)
}

func TestEffectiveGrantsWithNoDefaultSetReturnsExplicitOnly(t *testing.T) {
	clients := newFakeClients()
	featureSets := newFakeFeatureSetsAuthz()
	clients.setGrant("c1", "space1", []string{"custom-set"})

	g := NewGrantResolver(clients, featureSets)
	grants, err := g.EffectiveGrants(context.Background(), "c1", "space1")
	require.NoError(t, err)
	assert.Equal(t, []string{"custom-set"}, grants)
}

func TestEffectiveGrantsWithNoExplicitGrantsReturnsJustDefault(t *testing.T) {
	clients := newFakeClients()
	featureSets := newFakeFeatureSetsAuthz()
	featureSets.add(domain.FeatureSet{ID: "default-set", SpaceID: "space1", Type: domain.FeatureSetDefault})

	g := NewGrantResolver(clients, featureSets)
	grants, err := g.EffectiveGrants(context.Background(), "c1", "space1")
	require.NoError(t, err)
	assert.Equal(t, []string{"default-set"}, grants)
}
