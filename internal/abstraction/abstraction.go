// Package abstraction implements the on-line state abstraction layer:
// periodically re-partitioning every node touched since the builder was
// created (one builder per search step) into equivalence classes by matching children signatures, and
// recomputing the per-class mean value ingredients read through
// tree.Accessor. Grounded on THTS::generateEquivalenceClass,
// THTS::makeChildrenOnLevel and THTS::makeQmean in the original THTS
// source.
package abstraction

import (
	"sort"

	"github.com/gomlx/exceptions"

	"github.com/arborplan/thts/internal/nodepool"
	"github.com/arborplan/thts/internal/tree"
)

// layerKey groups nodes that can only be equivalent to one another:
// same remaining horizon, same chance/decision kind.
type layerKey struct {
	stepsToGo    int
	isChanceNode bool
}

// Builder accumulates touched node indices between rebuilds and performs
// the re-partitioning pass on demand. It owns the class-mean vector that
// tree.Accessor reads.
type Builder struct {
	pool    *nodepool.Pool
	touched []int
	seen    map[int]bool

	classMeans []float64
}

// NewBuilder returns a Builder with no touched nodes and no classes yet.
func NewBuilder(pool *nodepool.Pool) *Builder {
	return &Builder{
		pool: pool,
		seen: make(map[int]bool),
	}
}

// Touch records idx as eligible for every later rebuild. Called by the
// driver both when a node is freshly initialized and whenever a node's
// value changes as a result of a backup, per Open Question (a).
func (b *Builder) Touch(idx int) {
	if b.seen[idx] {
		return
	}
	b.seen[idx] = true
	b.touched = append(b.touched, idx)
}

// ClassMeans exposes the current per-class mean vector for tree.Accessor.
func (b *Builder) ClassMeans() []float64 {
	return b.classMeans
}

// Rebuild re-partitions every touched node into equivalence classes and
// recomputes the class means. The touched set is kept, so every node
// holding a class position is reclassified against the new class-mean
// vector. Layers are processed by ascending StepsToGo, chance layer
// before decision layer at each level, so that a node's signature only
// ever refers to classes already assigned to its children (a decision
// node's action children share its StepsToGo; a chance node's decision
// children have one step fewer).
func (b *Builder) Rebuild() {
	if len(b.touched) == 0 {
		return
	}

	layers := map[layerKey][]int{}
	for _, idx := range b.touched {
		n := b.pool.Node(idx)
		k := layerKey{stepsToGo: n.StepsToGo, isChanceNode: n.IsChanceNode}
		layers[k] = append(layers[k], idx)
	}

	keys := make([]layerKey, 0, len(layers))
	for k := range layers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].stepsToGo != keys[j].stepsToGo {
			return keys[i].stepsToGo < keys[j].stepsToGo
		}
		// chance nodes (true) before decision nodes (false) at the same level
		return keys[i].isChanceNode && !keys[j].isChanceNode
	})

	var qvalueSum, qvalueCount []float64
	nextClassID := 0

	newClass := func() int {
		qvalueSum = append(qvalueSum, 0)
		qvalueCount = append(qvalueCount, 0)
		id := nextClassID
		nextClassID++
		return id
	}

	for _, k := range keys {
		members := layers[k]

		type classed struct {
			idx int
			sig []tree.ClassWeight
		}
		var withSig []classed

		// All leaves at this layer (same stepsToGo, same kind) share one
		// class: the first leaf encountered opens it, the rest join it.
		// Leaves carry no structural information to distinguish them, so
		// splitting them defeats merging of symmetric fringe subtrees.
		leafClassID := -1

		for _, idx := range members {
			n := b.pool.Node(idx)
			if tree.IsLeaf(b.pool, idx) {
				if leafClassID == -1 {
					leafClassID = newClass()
				}
				n.EquivalenceClassPos = leafClassID
				continue
			}
			withSig = append(withSig, classed{idx: idx, sig: tree.BuildSignature(b.pool, idx)})
		}

		// Linear scan: compare every node's signature against every
		// class representative seen so far in this layer. Deliberately
		// O(layer width^2) rather than hash-keyed, to keep the exact
		// first-match tie-break order the driver's determinism guarantee
		// depends on (see SPEC_FULL.md open questions).
		var representatives []classed
		for _, c := range withSig {
			matched := -1
			for _, rep := range representatives {
				if tree.SameSignature(c.sig, rep.sig) {
					matched = b.pool.Node(rep.idx).EquivalenceClassPos
					break
				}
			}
			n := b.pool.Node(c.idx)
			if matched == -1 {
				n.EquivalenceClassPos = newClass()
				representatives = append(representatives, c)
			} else {
				n.EquivalenceClassPos = matched
			}
		}
	}

	for _, idx := range b.touched {
		n := b.pool.Node(idx)
		if n.EquivalenceClassPos < 0 {
			exceptions.Panicf("abstraction: node %d left unclassified after rebuild", idx)
		}
		qvalueSum[n.EquivalenceClassPos] += n.ImmediateReward + n.FutureReward
		qvalueCount[n.EquivalenceClassPos]++
	}

	means := make([]float64, nextClassID)
	for i := range means {
		if qvalueCount[i] > 0 {
			means[i] = qvalueSum[i] / qvalueCount[i]
		}
	}
	b.classMeans = means
}
