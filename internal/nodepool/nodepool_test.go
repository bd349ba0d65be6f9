package nodepool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborplan/thts/internal/nodepool"
)

func TestCreateRootResetsSlotZero(t *testing.T) {
	pool := nodepool.New(10)
	idx := pool.CreateRoot(5)
	require.Equal(t, 0, idx)
	root := pool.Node(idx)
	require.Equal(t, 5, root.StepsToGo)
	require.Equal(t, 1.0, root.Prob)
	require.False(t, root.Initialized)
	require.Equal(t, 1, pool.LastUsedIndex())
}

func TestChildSlotsGrowOnDemand(t *testing.T) {
	pool := nodepool.New(10)
	root := pool.CreateRoot(3)
	n := pool.Node(root)
	require.Equal(t, nodepool.NoNode, n.Child(2))

	child := pool.CreateChanceNode(1.0, 3, true)
	n.SetChild(2, child)
	require.Equal(t, child, n.Child(2))
	require.Equal(t, nodepool.NoNode, n.Child(0))
	require.Equal(t, nodepool.NoNode, n.Child(1))
}

func TestResetClearsPreviousOccupant(t *testing.T) {
	pool := nodepool.New(10)
	pool.CreateRoot(4)
	a := pool.CreateDecisionNode(0.5, 4, 1.5)
	pool.Node(a).SetChild(0, 99)
	pool.Node(a).NumberOfVisits = 7

	// Rebuilding the root restarts allocation after slot 0, so the next
	// node lands in a's old slot and must come back cleared.
	root := pool.CreateRoot(4)
	require.Equal(t, 0, root)
	freshA := pool.CreateDecisionNode(0.2, 4, 0)
	require.Equal(t, a, freshA)
	n := pool.Node(freshA)
	require.False(t, n.HasAnyChild())
	require.Equal(t, 0, n.NumberOfVisits)
}

func TestExhaustedRespectsCap(t *testing.T) {
	pool := nodepool.New(2)
	require.False(t, pool.Exhausted())
	pool.CreateRoot(1)
	require.False(t, pool.Exhausted())
	pool.CreateDecisionNode(1.0, 1, 0)
	require.True(t, pool.Exhausted())

	// Slack still allows allocation past the cap within the current trial.
	idx := pool.CreateDecisionNode(1.0, 1, 0)
	require.Equal(t, 2, idx)
}
