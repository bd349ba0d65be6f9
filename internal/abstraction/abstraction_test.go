package abstraction_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborplan/thts/internal/abstraction"
	"github.com/arborplan/thts/internal/nodepool"
)

func TestLeavesAtSameLayerShareAClass(t *testing.T) {
	pool := nodepool.New(10)
	a := pool.CreateDecisionNode(1.0, 1, 3.0)
	b := pool.CreateDecisionNode(1.0, 1, 3.0)

	builder := abstraction.NewBuilder(pool)
	builder.Touch(a)
	builder.Touch(b)
	builder.Rebuild()

	require.Equal(t, pool.Node(a).EquivalenceClassPos, pool.Node(b).EquivalenceClassPos)
}

func TestLeavesAtDifferentLayersGetDifferentClasses(t *testing.T) {
	pool := nodepool.New(10)
	a := pool.CreateDecisionNode(1.0, 1, 3.0)
	b := pool.CreateDecisionNode(1.0, 2, 3.0)

	builder := abstraction.NewBuilder(pool)
	builder.Touch(a)
	builder.Touch(b)
	builder.Rebuild()

	require.NotEqual(t, pool.Node(a).EquivalenceClassPos, pool.Node(b).EquivalenceClassPos)
}

func TestSymmetricArmsMergeIntoOneClassAfterRebuild(t *testing.T) {
	pool := nodepool.New(20)

	// Two sibling arms of a symmetric tree: each chance node's only child
	// is an unexpanded decision-node leaf at the same layer.
	leaf1 := pool.CreateDecisionNode(1.0, 1, 0)
	leaf2 := pool.CreateDecisionNode(1.0, 1, 0)

	c1 := pool.CreateChanceNode(1.0, 2, true)
	pool.Node(c1).SetChild(0, leaf1)
	c2 := pool.CreateChanceNode(1.0, 2, true)
	pool.Node(c2).SetChild(0, leaf2)

	builder := abstraction.NewBuilder(pool)
	builder.Touch(leaf1)
	builder.Touch(leaf2)
	builder.Touch(c1)
	builder.Touch(c2)
	builder.Rebuild()

	require.Equal(t, pool.Node(leaf1).EquivalenceClassPos, pool.Node(leaf2).EquivalenceClassPos)
	require.Equal(t, pool.Node(c1).EquivalenceClassPos, pool.Node(c2).EquivalenceClassPos)
}

func TestMatchingSignaturesShareAClass(t *testing.T) {
	pool := nodepool.New(20)

	// Two chance nodes at StepsToGo=2, each with the same already-classified
	// decision child. That child has a child of its own, so neither chance
	// node is a leaf and both are classified by signature matching.
	leafClassHolder := pool.CreateDecisionNode(1.0, 1, 0)
	pool.Node(leafClassHolder).EquivalenceClassPos = 42 // pretend already classed
	pool.Node(leafClassHolder).SetChild(0, pool.CreateChanceNode(1.0, 1, true))

	c1 := pool.CreateChanceNode(1.0, 2, true)
	pool.Node(c1).SetChild(0, leafClassHolder)
	pool.Node(c1).NumberOfVisits = 3

	c2 := pool.CreateChanceNode(1.0, 2, true)
	pool.Node(c2).SetChild(0, leafClassHolder)
	pool.Node(c2).NumberOfVisits = 3

	builder := abstraction.NewBuilder(pool)
	builder.Touch(c1)
	builder.Touch(c2)
	builder.Rebuild()

	require.Equal(t, pool.Node(c1).EquivalenceClassPos, pool.Node(c2).EquivalenceClassPos)
}

func TestClassMeansAverageTouchedValues(t *testing.T) {
	pool := nodepool.New(10)
	a := pool.CreateDecisionNode(1.0, 1, 0)
	pool.Node(a).FutureReward = 2.0
	b := pool.CreateDecisionNode(1.0, 1, 0)
	pool.Node(b).FutureReward = 6.0

	// Both are leaves of the same layer, so they share one class whose
	// mean is the average of their values: (2+6)/2.
	builder := abstraction.NewBuilder(pool)
	builder.Touch(a)
	builder.Touch(b)
	builder.Rebuild()
	classA := pool.Node(a).EquivalenceClassPos
	require.Equal(t, classA, pool.Node(b).EquivalenceClassPos)

	means := builder.ClassMeans()
	require.NotEmpty(t, means)
	require.Equal(t, 4.0, means[classA])
}
