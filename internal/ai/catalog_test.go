package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogLookup(t *testing.T) {
	c := DefaultCatalog()

	m, ok := c.Lookup("claude-sonnet-4")
	require.True(t, ok)
	require.Equal(t, ProviderAnthropic, m.Provider)
	require.Equal(t, "claude-sonnet-4-20250514", m.Name)

	m, ok = c.Lookup("no-such-model")
	require.False(t, ok)
	require.Empty(t, m.ID)
}

func TestCatalogFilters(t *testing.T) {
	c := DefaultCatalog()

	for _, m := range c.ByProvider(ProviderGoogle) {
		require.Equal(t, ProviderGoogle, m.Provider)
	}
	require.NotEmpty(t, c.ByProvider(ProviderGoogle))
	require.Empty(t, c.ByProvider("nobody"))
	require.NotNil(t, c.ByProvider("nobody"))

	for _, m := range c.ByCapability(CapReasoning) {
		require.True(t, m.Has(CapReasoning), m.ID)
	}
	require.NotEmpty(t, c.ByCapability(CapAgentic))
}

func TestCatalogCategoriesOrderAndCoverage(t *testing.T) {
	c := DefaultCatalog()
	groups := c.Categories()
	require.Len(t, groups, 3)
	require.Equal(t, CategoryFlagship, groups[0].Category)
	require.Equal(t, CategoryFast, groups[1].Category)
	require.Equal(t, CategorySpecialized, groups[2].Category)

	total := 0
	for _, g := range groups {
		total += len(g.Models)
	}
	require.Equal(t, len(c.All()), total)
}

func TestCatalogEveryModelHasKnownProvider(t *testing.T) {
	for _, m := range DefaultCatalog().All() {
		_, ok := LookupProvider(m.Provider)
		require.True(t, ok, m.ID)
		require.True(t, m.Has(CapStreaming), m.ID)
	}
}
