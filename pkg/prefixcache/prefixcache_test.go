package prefixcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignUsesAliasWhenUnique(t *testing.T) {
	c := New()
	prefix := c.Assign("space1", "srv-figma", "figma")
	assert.Equal(t, "figma", prefix)
}

func TestAssignFallsBackToServerIDOnAliasCollision(t *testing.T) {
	c := New()
	c.Assign("space1", "srv-one", "shared")
	prefix := c.Assign("space1", "srv-two", "shared")
	assert.Equal(t, "srv-two", prefix)
}

func TestAssignDisambiguatesWithSuffix(t *testing.T) {
	c := New()
	c.Assign("space1", "srv", "")
	c.Assign("space1", "srv-x", "srv-other")
	second := c.Assign("space1", "srv-other", "srv")
	assert.Equal(t, "srv-other2", second)
}

func TestAssignIsStableAcrossCalls(t *testing.T) {
	c := New()
	first := c.Assign("space1", "srv-figma", "figma")
	second := c.Assign("space1", "srv-figma", "figma")
	assert.Equal(t, first, second)
}

func TestAssignIsIsolatedPerSpace(t *testing.T) {
	c := New()
	a := c.Assign("space1", "srv", "figma")
	b := c.Assign("space2", "srv", "figma")
	assert.Equal(t, "figma", a)
	assert.Equal(t, "figma", b)
}

func TestParseResolvesLongestPrefixMatch(t *testing.T) {
	c := New()
	c.Assign("space1", "srv-figma", "figma")
	c.Assign("space1", "srv-figma-design", "figma_design")

	serverID, feature, ok := c.Parse("space1", "figma_design_list_files")
	require.True(t, ok)
	assert.Equal(t, "srv-figma-design", serverID)
	assert.Equal(t, "list_files", feature)
}

func TestParseUnknownPrefixFails(t *testing.T) {
	c := New()
	c.Assign("space1", "srv-figma", "figma")

	_, _, ok := c.Parse("space1", "notion_list_pages")
	assert.False(t, ok)
}

func TestReleaseFreesPrefixForReuse(t *testing.T) {
	c := New()
	c.Assign("space1", "srv-figma", "figma")
	c.Release("space1", "srv-figma")

	_, ok := c.PrefixFor("space1", "srv-figma")
	assert.False(t, ok)

	reassigned := c.Assign("space1", "srv-other", "figma")
	assert.Equal(t, "figma", reassigned)
}
