package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_RegistersAllCollectors(t *testing.T) {
	reg, pool, cache := NewRegistry("cacherepo")
	require.NotNil(t, pool)
	require.NotNil(t, cache)

	pool.LiveConnections.Set(3)
	cache.Hits.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewRegistry_IsolatedPerInstance(t *testing.T) {
	regA, poolA, _ := NewRegistry("facade_a")
	regB, _, _ := NewRegistry("facade_b")

	poolA.LiveConnections.Set(5)

	familiesA, err := regA.Gather()
	require.NoError(t, err)
	for _, f := range familiesA {
		assert.Contains(t, f.GetName(), "facade_a")
	}

	familiesB, err := regB.Gather()
	require.NoError(t, err)
	for _, f := range familiesB {
		assert.NotContains(t, f.GetName(), "facade_a", "each facade instance must publish into its own registry")
	}
}
