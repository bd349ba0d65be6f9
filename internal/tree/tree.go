// Package tree provides read-side helpers over a nodepool.Pool: the
// expected-reward value accessor that redirects through an equivalence
// class when one has been assigned, and the signature-collection walks
// the abstraction builder uses to decide which nodes belong together
// (grounded on SearchNode::getExpectedRewardEstimate and
// THTS::collectAllDecisionNodeSuccessor/makeChildrenOnLevel in the
// original THTS source).
package tree

import (
	"sort"

	"github.com/gomlx/exceptions"

	"github.com/arborplan/thts/internal/nodepool"
)

// Accessor reads node values through the current equivalence
// classification. Ingredients take an *Accessor instead of a bare
// *nodepool.Pool so the class-mean redirection is always applied
// consistently and the dependency on the abstraction layer's output is
// explicit in every call site (design note in the specification's §9).
type Accessor struct {
	Pool       *nodepool.Pool
	ClassMeans []float64
}

// ExpectedRewardEstimate is the value used by action selection and
// backup: a node still outside any equivalence class reports its own
// immediate-plus-future reward; a classified node reports the
// population mean for its class instead.
func (a *Accessor) ExpectedRewardEstimate(idx int) float64 {
	n := a.Pool.Node(idx)
	if n.EquivalenceClassPos == nodepool.NoClass {
		return n.ImmediateReward + n.FutureReward
	}
	if n.EquivalenceClassPos < 0 || n.EquivalenceClassPos >= len(a.ClassMeans) {
		exceptions.Panicf("tree: equivalence class %d out of range (have %d classes)", n.EquivalenceClassPos, len(a.ClassMeans))
	}
	return a.ClassMeans[n.EquivalenceClassPos]
}

// IsLeaf mirrors SearchNode::isALeafNode: a node is a leaf for
// classification purposes if none of its children have themselves been
// given children yet, regardless of whether this node's own child slots
// are populated. This treats a not-yet-expanded fringe uniformly even
// when some of its nodes technically have allocated, empty child slots.
func IsLeaf(pool *nodepool.Pool, idx int) bool {
	n := pool.Node(idx)
	for _, c := range n.Children {
		if c == nodepool.NoNode {
			continue
		}
		if pool.Node(c).HasAnyChild() {
			return false
		}
	}
	return true
}

// ClassWeight is one (classID, weight) entry of a node's children
// signature: weight is a visit-style multiplicity for a decision node's
// direct children, or cumulative probability mass for a chance node's
// flattened decision-node descendants.
type ClassWeight struct {
	ClassID int
	Weight  float64
}

// CollectDecisionNodeSuccessors flattens a chance node's subtree down to
// its decision-node descendants, each paired with the cumulative
// probability of reaching it, mirroring
// THTS::collectAllDecisionNodeSuccessor. A chance node's immediate
// children may themselves be chance nodes (dummy chance nodes spliced in
// when more than one fluent is still probabilistic); this walk descends
// through them transparently.
func CollectDecisionNodeSuccessors(pool *nodepool.Pool, chanceIdx int, probSoFar float64, out *[]ClassWeight) {
	n := pool.Node(chanceIdx)
	for _, c := range n.Children {
		if c == nodepool.NoNode {
			continue
		}
		child := pool.Node(c)
		childProb := probSoFar * child.Prob
		if child.IsChanceNode {
			CollectDecisionNodeSuccessors(pool, c, childProb, out)
			continue
		}
		*out = append(*out, ClassWeight{ClassID: child.EquivalenceClassPos, Weight: childProb})
	}
}

// BuildSignature computes the children signature used to test two nodes
// for equivalence, mirroring THTS::makeChildrenOnLevel: for a decision
// node it merges direct children by class, weighted by visit count plus
// one; for a chance node it merges the flattened decision-node
// descendants by class, weighted by cumulative probability. Two nodes
// are equivalent iff their signatures are equal as multisets, which this
// returns in a canonical (sorted) order so callers can compare slices
// directly.
func BuildSignature(pool *nodepool.Pool, idx int) []ClassWeight {
	n := pool.Node(idx)
	merged := map[int]float64{}

	if n.IsChanceNode {
		var flattened []ClassWeight
		CollectDecisionNodeSuccessors(pool, idx, 1.0, &flattened)
		for _, cw := range flattened {
			merged[cw.ClassID] += cw.Weight
		}
	} else {
		for _, c := range n.Children {
			if c == nodepool.NoNode {
				continue
			}
			child := pool.Node(c)
			merged[child.EquivalenceClassPos] += float64(child.NumberOfVisits) + 1.0
		}
	}

	sig := make([]ClassWeight, 0, len(merged))
	for classID, weight := range merged {
		sig = append(sig, ClassWeight{ClassID: classID, Weight: weight})
	}
	sort.Slice(sig, func(i, j int) bool { return sig[i].ClassID < sig[j].ClassID })
	return sig
}

// SameSignature reports whether two canonical signatures describe the
// same equivalence class membership.
func SameSignature(a, b []ClassWeight) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ClassID != b[i].ClassID || a[i].Weight != b[i].Weight {
			return false
		}
	}
	return true
}
