package tree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborplan/thts/internal/nodepool"
	"github.com/arborplan/thts/internal/tree"
)

func TestExpectedRewardEstimateFallsThroughWithoutClass(t *testing.T) {
	pool := nodepool.New(10)
	idx := pool.CreateDecisionNode(1.0, 3, 2.0)
	pool.Node(idx).FutureReward = 1.5
	acc := &tree.Accessor{Pool: pool}
	require.Equal(t, 3.5, acc.ExpectedRewardEstimate(idx))
}

func TestExpectedRewardEstimateRedirectsThroughClass(t *testing.T) {
	pool := nodepool.New(10)
	idx := pool.CreateDecisionNode(1.0, 3, 2.0)
	pool.Node(idx).FutureReward = 1.5
	pool.Node(idx).EquivalenceClassPos = 0
	acc := &tree.Accessor{Pool: pool, ClassMeans: []float64{9.0}}
	require.Equal(t, 9.0, acc.ExpectedRewardEstimate(idx))
}

func TestIsLeafTrueWhenNoGrandchildren(t *testing.T) {
	pool := nodepool.New(10)
	root := pool.CreateRoot(3)
	chance := pool.CreateChanceNode(1.0, 3, true)
	pool.Node(root).SetChild(0, chance)
	require.True(t, tree.IsLeaf(pool, root))

	decision := pool.CreateDecisionNode(1.0, 2, 0)
	pool.Node(chance).SetChild(0, decision)
	require.False(t, tree.IsLeaf(pool, root))
	require.True(t, tree.IsLeaf(pool, chance))
}

func TestBuildSignatureMergesByClass(t *testing.T) {
	pool := nodepool.New(10)
	root := pool.CreateRoot(3)

	c1 := pool.CreateChanceNode(1.0, 3, true)
	pool.Node(c1).EquivalenceClassPos = 5
	pool.Node(c1).NumberOfVisits = 2

	c2 := pool.CreateChanceNode(1.0, 3, true)
	pool.Node(c2).EquivalenceClassPos = 5
	pool.Node(c2).NumberOfVisits = 1

	c3 := pool.CreateChanceNode(1.0, 3, true)
	pool.Node(c3).EquivalenceClassPos = 7
	pool.Node(c3).NumberOfVisits = 0

	pool.Node(root).SetChild(0, c1)
	pool.Node(root).SetChild(1, c2)
	pool.Node(root).SetChild(2, c3)

	sig := tree.BuildSignature(pool, root)
	require.Equal(t, []tree.ClassWeight{
		{ClassID: 5, Weight: 5}, // (2+1) + (1+1)
		{ClassID: 7, Weight: 1}, // 0+1
	}, sig)
}

func TestSameSignature(t *testing.T) {
	a := []tree.ClassWeight{{ClassID: 1, Weight: 2}, {ClassID: 3, Weight: 4}}
	b := []tree.ClassWeight{{ClassID: 1, Weight: 2}, {ClassID: 3, Weight: 4}}
	c := []tree.ClassWeight{{ClassID: 1, Weight: 2}, {ClassID: 3, Weight: 5}}
	require.True(t, tree.SameSignature(a, b))
	require.False(t, tree.SameSignature(a, c))
}
