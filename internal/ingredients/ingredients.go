// Package ingredients defines the pluggable strategy interfaces the THTS
// driver is built against — action selection, outcome selection, backup,
// initialization and recommendation — and a stock implementation of
// each, grounded on the ingredient pointers declared on the THTS class
// in the original source (actionSelection, outcomeSelection,
// backupFunction, initializer, recommendationFunction).
package ingredients

import (
	"math"
	"math/rand"

	"github.com/arborplan/thts/internal/mdp"
	"github.com/arborplan/thts/internal/nodepool"
	"github.com/arborplan/thts/internal/tree"
)

// Lifecycle is embedded in every ingredient interface (§4.2): besides its
// one specific method, each ingredient is notified at round, step and
// trial boundaries, told when the node pool has run dry and caching must
// stop, and given a chance to learn from a completed round. Stock
// ingredients that need none of these implement them as no-ops; only a
// learning ingredient or one that caches its own state needs to care.
type Lifecycle interface {
	// InitRound is called once before the first trial of a fresh call to
	// SelectAction.
	InitRound()
	// InitStep is called once per SelectAction call, after InitRound.
	InitStep()
	// InitTrial is called at the start of every trial.
	InitTrial()
	// DisableCaching is broadcast once the node pool is exhausted, so an
	// ingredient that memoizes anything keyed by node index can drop it.
	DisableCaching()
	// Learn is called after a round's trials are exhausted, before
	// recommendation, so an ingredient may adapt from what the round saw.
	Learn()
}

// ActionSelection picks which action-chance-node child of a decision
// node to descend into next.
type ActionSelection interface {
	Lifecycle
	SelectAction(acc *tree.Accessor, rng *rand.Rand, decisionIdx int, applicable []int) int
}

// OutcomeSelection picks which outcome of a probabilistic fluent to
// collapse to when sampling a successor.
type OutcomeSelection interface {
	Lifecycle
	SelectOutcome(rng *rand.Rand, d mdp.Distribution) (value float64, chosenIndex int)
}

// BackupFunction propagates a trial's result back up through the nodes
// visited on the way down.
type BackupFunction interface {
	Lifecycle
	BackupDecisionNode(acc *tree.Accessor, idx int)
	BackupChanceNode(acc *tree.Accessor, idx int)
}

// Initializer assigns an initial value estimate to a freshly created
// decision node before it is ever visited, by creating one
// action-chance-node child per applicable action (§4.2) and seeding each
// child's FutureReward with a prior.
type Initializer interface {
	Lifecycle
	Initialize(acc *tree.Accessor, env mdp.Environment, state mdp.State, idx int)
}

// RecommendationFunction picks the action reported to the caller once a
// round's trials are exhausted.
type RecommendationFunction interface {
	Lifecycle
	Recommend(acc *tree.Accessor, rootIdx int, applicable []int) int
}

// NoLifecycle implements Lifecycle as five no-ops. Ingredients that don't
// need round/step/trial hooks, don't cache anything keyed off node
// indices, and don't learn across rounds embed this.
type NoLifecycle struct{}

func (NoLifecycle) InitRound()      {}
func (NoLifecycle) InitStep()       {}
func (NoLifecycle) InitTrial()      {}
func (NoLifecycle) DisableCaching() {}
func (NoLifecycle) Learn()          {}

// ExplorationRate computes the numerator term of a UCB1-style bound as a
// function of the parent's visit count. The four variants named in the
// specification trade off how aggressively exploration decays.
type ExplorationRate func(parentVisits int) float64

func ExplorationLog(parentVisits int) float64 {
	return math.Log(float64(parentVisits))
}

func ExplorationSqrt(parentVisits int) float64 {
	return math.Sqrt(float64(parentVisits))
}

func ExplorationLin(parentVisits int) float64 {
	return float64(parentVisits)
}

func ExplorationLnQuad(parentVisits int) float64 {
	l := math.Log(float64(parentVisits))
	return l * l
}

// UCB1 is the classic upper-confidence-bound action selector, visiting
// every never-visited child once before any bound comparison, as in the
// original THTS implementation.
type UCB1 struct {
	NoLifecycle
	Cp          float64
	Exploration ExplorationRate
	// UniformAtRoot makes the root decision node fall back to uniform
	// random selection instead of UCB1, trading off the deterministic
	// first-moves bias larger magnitudeCp values can otherwise produce.
	UniformAtRoot bool
	rootIdx       int
}

// SetRoot records which node index is the current trial root, consulted
// only when UniformAtRoot is set.
func (u *UCB1) SetRoot(idx int) { u.rootIdx = idx }

func (u *UCB1) SelectAction(acc *tree.Accessor, rng *rand.Rand, decisionIdx int, applicable []int) int {
	if u.UniformAtRoot && decisionIdx == u.rootIdx {
		return applicable[rng.Intn(len(applicable))]
	}

	decision := acc.Pool.Node(decisionIdx)
	for _, a := range applicable {
		childIdx := decision.Child(a)
		if childIdx == nodepool.NoNode || acc.Pool.Node(childIdx).NumberOfVisits == 0 {
			return a
		}
	}

	explorationTerm := u.Exploration(decision.NumberOfVisits)
	bestA, bestValue := applicable[0], math.Inf(-1)
	for _, a := range applicable {
		child := acc.Pool.Node(decision.Child(a))
		value := acc.ExpectedRewardEstimate(decision.Child(a)) +
			2*u.Cp*math.Sqrt(explorationTerm/float64(child.NumberOfVisits))
		if value > bestValue {
			bestValue, bestA = value, a
		}
	}
	return bestA
}

// Uniform selects uniformly among applicable actions, ignoring value estimates.
type Uniform struct{ NoLifecycle }

func (Uniform) SelectAction(acc *tree.Accessor, rng *rand.Rand, decisionIdx int, applicable []int) int {
	return applicable[rng.Intn(len(applicable))]
}

// RoundRobin cycles through applicable actions in a fixed order,
// keyed by how many times the decision node itself has been visited.
type RoundRobin struct{ NoLifecycle }

func (RoundRobin) SelectAction(acc *tree.Accessor, rng *rand.Rand, decisionIdx int, applicable []int) int {
	n := acc.Pool.Node(decisionIdx)
	return applicable[n.NumberOfVisits%len(applicable)]
}

// MonteCarloOutcome samples an outcome proportionally to its probability.
type MonteCarloOutcome struct{ NoLifecycle }

func (MonteCarloOutcome) SelectOutcome(rng *rand.Rand, d mdp.Distribution) (float64, int) {
	if d.IsDeterministic() {
		return d.Values[0], 0
	}
	r := rng.Float64()
	cumulative := 0.0
	for i, p := range d.Probs {
		cumulative += p
		if r <= cumulative {
			return d.Values[i], i
		}
	}
	last := len(d.Values) - 1
	return d.Values[last], last
}

// PreferUnvisited samples proportionally to probability, but returns the
// first outcome with zero incoming samples so far if one has never been
// explored from the calling chance node; callers track per-outcome visit
// counts themselves and pass them in to SelectOutcomeWithCounts. Its
// SelectOutcome, the method the OutcomeSelection interface and the driver
// use, takes no counts and samples exactly like MonteCarloOutcome.
type PreferUnvisited struct {
	MonteCarloOutcome
}

func (p PreferUnvisited) SelectOutcomeWithCounts(rng *rand.Rand, d mdp.Distribution, outcomeVisits []int) (float64, int) {
	for i, v := range outcomeVisits {
		if v == 0 {
			return d.Values[i], i
		}
	}
	return p.MonteCarloOutcome.SelectOutcome(rng, d)
}

// MonteCarloBackup maintains a running mean of the reward estimate at
// each decision and chance node, weighted by visit count.
type MonteCarloBackup struct{ NoLifecycle }

func (MonteCarloBackup) BackupDecisionNode(acc *tree.Accessor, idx int) {
	n := acc.Pool.Node(idx)
	best := math.Inf(-1)
	for _, c := range n.Children {
		if c == nodepool.NoNode {
			continue
		}
		if v := acc.ExpectedRewardEstimate(c); v > best {
			best = v
		}
	}
	if best == math.Inf(-1) {
		best = 0
	}
	n.FutureReward = runningMean(n.FutureReward, n.NumberOfVisits, best)
	n.NumberOfVisits++
}

func (MonteCarloBackup) BackupChanceNode(acc *tree.Accessor, idx int) {
	n := acc.Pool.Node(idx)
	child := n.Child(len(n.Children) - 1)
	var sampled float64
	if child != nodepool.NoNode {
		sampled = acc.ExpectedRewardEstimate(child)
	}
	n.FutureReward = runningMean(n.FutureReward, n.NumberOfVisits, sampled)
	n.NumberOfVisits++
}

func runningMean(previous float64, count int, sample float64) float64 {
	if count == 0 || math.IsInf(previous, -1) {
		return sample
	}
	return previous + (sample-previous)/float64(count+1)
}

// MaxBackup keeps, at a decision node, the maximum child value observed
// so far instead of a running mean, and sets a chance node to the
// probability-weighted mean of its children, matching the "partial
// Bellman" family's greedy variant.
type MaxBackup struct{ NoLifecycle }

func (MaxBackup) BackupDecisionNode(acc *tree.Accessor, idx int) {
	n := acc.Pool.Node(idx)
	best := math.Inf(-1)
	for _, c := range n.Children {
		if c == nodepool.NoNode {
			continue
		}
		if v := acc.ExpectedRewardEstimate(c); v > best {
			best = v
		}
	}
	if best > n.FutureReward {
		n.FutureReward = best
	}
	n.NumberOfVisits++
}

func (MaxBackup) BackupChanceNode(acc *tree.Accessor, idx int) {
	n := acc.Pool.Node(idx)
	total, weight := 0.0, 0.0
	for _, c := range n.Children {
		if c == nodepool.NoNode {
			continue
		}
		child := acc.Pool.Node(c)
		total += child.Prob * acc.ExpectedRewardEstimate(c)
		weight += child.Prob
	}
	if weight > 0 {
		n.FutureReward = total / weight
	}
	n.NumberOfVisits++
}

// initializeChildren creates one action-chance-node child per applicable
// action at idx (leaving inapplicable action slots empty) and seeds each
// child's FutureReward with horizonFactor*q0, as the Initializer contract
// requires (§4.2): a prior that scales a per-step value estimate q0 by
// how many steps remain after this decision, so a decision made early
// carries more prior weight than one made at the tip of the horizon.
func initializeChildren(acc *tree.Accessor, state mdp.State, idx int, applicable []bool, q0 float64) {
	n := acc.Pool.Node(idx)
	horizonFactor := float64(state.StepsToGo - 1)
	if horizonFactor < 0 {
		horizonFactor = 0
	}
	prior := horizonFactor * q0
	for action, ok := range applicable {
		if !ok {
			continue
		}
		childIdx := acc.Pool.CreateChanceNode(1.0, n.StepsToGo, true)
		acc.Pool.Node(childIdx).FutureReward = prior
		n.SetChild(action, childIdx)
	}
}

// ZeroInitializer seeds every applicable action's child with a zero
// prior (q0 = 0), deferring entirely to sampled trials.
type ZeroInitializer struct{ NoLifecycle }

func (ZeroInitializer) Initialize(acc *tree.Accessor, env mdp.Environment, state mdp.State, idx int) {
	initializeChildren(acc, state, idx, env.ApplicableActions(state), 0)
}

// OptimisticInitializer seeds every applicable action's child with a
// prior built from the single-step optimal final reward (q0), giving
// UCB1 something informative to break ties on before any trial has
// reached this node.
type OptimisticInitializer struct{ NoLifecycle }

func (OptimisticInitializer) Initialize(acc *tree.Accessor, env mdp.Environment, state mdp.State, idx int) {
	q0 := env.CalcOptimalFinalReward(state)
	initializeChildren(acc, state, idx, env.ApplicableActions(state), q0)
}

// ExpectedBestArm recommends the applicable action whose child reports
// the highest expected reward estimate, breaking ties toward the
// lowest-indexed action.
type ExpectedBestArm struct{ NoLifecycle }

func (ExpectedBestArm) Recommend(acc *tree.Accessor, rootIdx int, applicable []int) int {
	root := acc.Pool.Node(rootIdx)
	bestA, bestValue := applicable[0], math.Inf(-1)
	for _, a := range applicable {
		c := root.Child(a)
		if c == nodepool.NoNode {
			continue
		}
		if v := acc.ExpectedRewardEstimate(c); v > bestValue {
			bestValue, bestA = v, a
		}
	}
	return bestA
}

// MostVisited recommends the applicable action visited most often,
// the standard low-variance alternative to ExpectedBestArm.
type MostVisited struct{ NoLifecycle }

func (MostVisited) Recommend(acc *tree.Accessor, rootIdx int, applicable []int) int {
	root := acc.Pool.Node(rootIdx)
	bestA, bestVisits := applicable[0], -1
	for _, a := range applicable {
		c := root.Child(a)
		if c == nodepool.NoNode {
			continue
		}
		if v := acc.Pool.Node(c).NumberOfVisits; v > bestVisits {
			bestVisits, bestA = v, a
		}
	}
	return bestA
}
