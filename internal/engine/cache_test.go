package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborplan/thts/internal/engine"
	"github.com/arborplan/thts/internal/mdp"
)

func TestStateValueCacheRoundTrip(t *testing.T) {
	cache := engine.NewStateValueCache()
	state := mdp.State{Fluents: []float64{1, 0}, StepsToGo: 3}

	_, ok := cache.Lookup(state)
	require.False(t, ok)

	cache.Store(state, 42.0)
	v, ok := cache.Lookup(state)
	require.True(t, ok)
	require.Equal(t, 42.0, v)
}

func TestStateValueCacheDisableClears(t *testing.T) {
	cache := engine.NewStateValueCache()
	state := mdp.State{Fluents: []float64{1}, StepsToGo: 1}
	cache.Store(state, 7.0)

	cache.Disable()
	_, ok := cache.Lookup(state)
	require.False(t, ok)

	cache.Store(state, 8.0)
	_, ok = cache.Lookup(state)
	require.False(t, ok)
}
