// Package engine is the THTS search driver: the trial loop that walks
// decision and chance nodes down to a horizon, backs values back up, and
// periodically hands the touched nodes to the abstraction builder.
// Grounded on THTS::estimateBestActions, visitDecisionNode,
// visitChanceNode, currentStateIsSolved, getUniquePolicy and moreTrials
// in the original THTS source.
package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/arborplan/thts/internal/abstraction"
	"github.com/arborplan/thts/internal/config"
	"github.com/arborplan/thts/internal/ingredients"
	"github.com/arborplan/thts/internal/mdp"
	"github.com/arborplan/thts/internal/nodepool"
	"github.com/arborplan/thts/internal/tree"
)

// TerminationMethod picks which of the driver's two budgets (elapsed
// time, trial count) gate the trial loop, mirroring THTS::TerminationMethod.
// Defined in package config, which parses it from the -T flag (§4.6);
// aliased here so existing call sites read as engine.TerminationTime etc.
type TerminationMethod = config.TerminationMethod

const (
	TerminationTime                  = config.TerminationTime
	TerminationNumberOfTrials        = config.TerminationNumberOfTrials
	TerminationTimeAndNumberOfTrials = config.TerminationTimeAndNumberOfTrials
)

// Budget is how long a single call to SelectAction may keep trialing.
type Budget struct {
	MaxTime   time.Duration
	MaxTrials int
}

// Stats reports what one SelectAction call actually did, for printing
// and for tests asserting on search behavior.
type Stats struct {
	Trials    int
	NodesUsed int
	Elapsed   time.Duration
	Shortcut  bool
}

// Driver runs one THTS search per real decision step. It is not safe for
// concurrent use by more than one goroutine at a time; cmd/thts-demo runs
// independent rounds concurrently by giving each round its own Driver.
type Driver struct {
	env mdp.Environment

	pool  *nodepool.Pool
	acc   *tree.Accessor
	cache *StateValueCache

	stopwatch *Stopwatch
	rng       *rand.Rand

	actionSelection  ingredients.ActionSelection
	outcomeSelection ingredients.OutcomeSelection
	backup           ingredients.BackupFunction
	initializer      ingredients.Initializer
	recommendation   ingredients.RecommendationFunction

	termination     TerminationMethod
	rebuildInterval time.Duration

	// maxNewNodesPerTrial is the -ndn tip-of-trial cap (§4.3), copied from
	// config.Settings.NewDecisionNodesPerTrial; unlimitedNewNodesPerTrial
	// means no cap. newNodesThisTrial counts how many
	// previously-uninitialized decision nodes the trial in flight has
	// expanded so far, and is reset at the start of every trial.
	maxNewNodesPerTrial int
	newNodesThisTrial   int

	abstractionBuilder *abstraction.Builder
	outcomeSlots       map[int]map[string]int
}

// unlimitedNewNodesPerTrial mirrors config's "H" sentinel for -ndn: a
// trial can't expand more new decision nodes than the horizon has steps
// anyway, so this disables the tip-of-trial cap rather than capping it.
const unlimitedNewNodesPerTrial = -1

// NewDriver builds a Driver from a fully-resolved configuration.
func NewDriver(env mdp.Environment, settings config.Settings, termination TerminationMethod, rng *rand.Rand) (*Driver, error) {
	actionSel, err := settings.BuildActionSelection()
	if err != nil {
		return nil, errors.Wrap(err, "engine: resolving action selection")
	}
	outcomeSel, err := settings.BuildOutcomeSelection()
	if err != nil {
		return nil, errors.Wrap(err, "engine: resolving outcome selection")
	}
	backupFn, err := settings.BuildBackupFunction()
	if err != nil {
		return nil, errors.Wrap(err, "engine: resolving backup function")
	}
	initFn, err := settings.BuildInitializer()
	if err != nil {
		return nil, errors.Wrap(err, "engine: resolving initializer")
	}
	recFn, err := settings.BuildRecommendation()
	if err != nil {
		return nil, errors.Wrap(err, "engine: resolving recommendation function")
	}

	pool := nodepool.New(settings.MaxNodes)
	return &Driver{
		env:                 env,
		pool:                pool,
		acc:                 &tree.Accessor{Pool: pool},
		cache:               NewStateValueCache(),
		stopwatch:           NewStopwatch(),
		rng:                 rng,
		actionSelection:     actionSel,
		outcomeSelection:    outcomeSel,
		backup:              backupFn,
		initializer:         initFn,
		recommendation:      recFn,
		termination:         termination,
		rebuildInterval:     time.Duration(settings.RebuildIntervalSeconds * float64(time.Second)),
		maxNewNodesPerTrial: settings.NewDecisionNodesPerTrial,
		outcomeSlots:        make(map[int]map[string]int),
	}, nil
}

// Cache exposes the driver's state-value cache, mainly so tests and
// cmd/thts-demo can report on it.
func (d *Driver) Cache() *StateValueCache { return d.cache }

// SelectAction runs one THTS search rooted at state and returns the
// recommended action index. It resets the node pool and the abstraction
// builder at the start of every call: the original implementation
// carries a subtree across steps of the same round for efficiency, which
// this driver trades away for a simpler, still fully general per-step
// search (see the specification's open questions).
func (d *Driver) SelectAction(state mdp.State, budget Budget) (int, Stats, error) {
	applicable := d.env.IndicesOfApplicableActions(state)
	if len(applicable) == 0 {
		return 0, Stats{}, errors.New("engine: no applicable actions at state")
	}
	if a, ok := d.getUniquePolicy(state, applicable); ok {
		return a, Stats{Shortcut: true}, nil
	}

	d.stopwatch.Reset()
	rootIdx := d.pool.CreateRoot(state.StepsToGo)
	d.abstractionBuilder = abstraction.NewBuilder(d.pool)
	d.acc.ClassMeans = nil
	d.outcomeSlots = make(map[int]map[string]int)

	if rooted, ok := d.actionSelection.(interface{ SetRoot(int) }); ok {
		rooted.SetRoot(rootIdx)
	}

	lifecycles := []ingredients.Lifecycle{d.actionSelection, d.outcomeSelection, d.backup, d.initializer, d.recommendation}
	for _, l := range lifecycles {
		l.InitRound()
		l.InitStep()
	}

	trials := 0
	lastRebuild := time.Duration(0)
	cachingDisabled := false
	for d.moreTrials(trials, budget) {
		for _, l := range lifecycles {
			l.InitTrial()
		}
		d.newNodesThisTrial = 0
		d.visitDecisionNode(rootIdx, state.Clone())
		trials++
		if d.pool.Node(rootIdx).Solved {
			break
		}
		if d.stopwatch.Elapsed()-lastRebuild >= d.rebuildInterval {
			d.stopwatch.Pause()
			d.abstractionBuilder.Rebuild()
			d.acc.ClassMeans = d.abstractionBuilder.ClassMeans()
			d.stopwatch.Resume()
			lastRebuild = d.stopwatch.Elapsed()
		}
		if !cachingDisabled && d.pool.Exhausted() {
			cachingDisabled = true
			d.disableCaching()
		}
	}
	if trials > 0 {
		d.stopwatch.Pause()
		d.abstractionBuilder.Rebuild()
		d.acc.ClassMeans = d.abstractionBuilder.ClassMeans()
		d.stopwatch.Resume()
	}
	for _, l := range lifecycles {
		l.Learn()
	}

	action := d.recommendation.Recommend(d.acc, rootIdx, applicable)
	klog.V(4).Infof("engine: selected action %d after %d trials, %d nodes used", action, trials, d.pool.LastUsedIndex())
	return action, Stats{
		Trials:    trials,
		NodesUsed: d.pool.LastUsedIndex(),
		Elapsed:   d.stopwatch.Elapsed(),
	}, nil
}

// getUniquePolicy short-circuits the whole search when the action choice
// is forced regardless of value estimates, mirroring
// THTS::getUniquePolicy: a single remaining step, a reward-locked state,
// or only one applicable action all make search pointless.
func (d *Driver) getUniquePolicy(state mdp.State, applicable []int) (int, bool) {
	if state.StepsToGo == 1 {
		return d.env.OptimalFinalActionIndex(state), true
	}
	if d.env.IsRewardLock(state) {
		return applicable[0], true
	}
	if len(applicable) == 1 {
		return applicable[0], true
	}
	return 0, false
}

// disableCaching is broadcast once the node pool is exhausted (§4.5,
// §7): the state-value cache is dropped, and every ingredient that might
// memoize anything keyed off node indices is told to drop it too, so the
// driver can keep producing a best-effort recommendation off a tree that
// will no longer grow.
func (d *Driver) disableCaching() {
	klog.V(2).Infof("engine: node pool exhausted at %d nodes, disabling caching", d.pool.LastUsedIndex())
	d.cache.Disable()
	d.actionSelection.DisableCaching()
	d.outcomeSelection.DisableCaching()
	d.backup.DisableCaching()
	d.initializer.DisableCaching()
	d.recommendation.DisableCaching()
}

func (d *Driver) moreTrials(trials int, budget Budget) bool {
	if d.pool.Exhausted() {
		return false
	}
	switch d.termination {
	case TerminationTime:
		return d.stopwatch.Elapsed() < budget.MaxTime
	case TerminationNumberOfTrials:
		return trials < budget.MaxTrials
	case TerminationTimeAndNumberOfTrials:
		return d.stopwatch.Elapsed() < budget.MaxTime && trials < budget.MaxTrials
	default:
		return false
	}
}

// visitDecisionNode is one recursive step of a trial through a decision
// node: short-circuit if the state is already solved (before anything
// has initialized it), otherwise initialize on first visit, apply the
// tip-of-trial cap, select an action, descend into its chance node, and
// back up the result. The solved-check must run before Initialize, as in
// THTS::visitDecisionNode in the original source: Initialize populates
// children, and currentStateIsSolved's reward-lock case only applies to
// a still-childless node.
func (d *Driver) visitDecisionNode(idx int, state mdp.State) {
	n := d.pool.Node(idx)
	if state.StepsToGo == 0 {
		n.FutureReward = 0
		return
	}

	if solved, value := d.currentStateIsSolved(idx, state); solved {
		n.FutureReward = value
		n.Solved = true
		d.abstractionBuilder.Touch(idx)
		return
	}

	wasInitialized := n.Initialized
	if !wasInitialized {
		d.initializer.Initialize(d.acc, d.env, state, idx)
		n.Initialized = true
		d.abstractionBuilder.Touch(idx)
	}

	if !d.continueTrial(wasInitialized) {
		// Tip of the trial: the new-decision-nodes-per-trial budget (§4.3)
		// is spent. Stop descending; back the node up once from the priors
		// Initialize just seeded on its children, so its FutureReward holds
		// that estimate and stands in for this trial's contribution.
		d.backup.BackupDecisionNode(d.acc, idx)
		return
	}

	applicable := d.env.IndicesOfApplicableActions(state)
	action := d.actionSelection.SelectAction(d.acc, d.rng, idx, applicable)

	childIdx := n.Child(action)
	if childIdx == nodepool.NoNode {
		exceptions.Panicf("engine: action selection chose action %d with no initialized child at decision node %d", action, idx)
	}
	if d.pool.Node(childIdx).Solved {
		exceptions.Panicf("engine: action selection chose already-solved child %d at decision node %d", childIdx, idx)
	}

	d.visitChanceNode(childIdx, state, action)

	d.backup.BackupDecisionNode(d.acc, idx)
	d.abstractionBuilder.Touch(idx)
}

// continueTrial mirrors THTS::continueTrial: a trial may initialize at
// most maxNewNodesPerTrial previously-uninitialized decision nodes (the
// "tip" of the trial, per the glossary); descending through nodes
// already initialized by an earlier trial is always allowed.
func (d *Driver) continueTrial(wasInitialized bool) bool {
	if wasInitialized {
		return true
	}
	d.newNodesThisTrial++
	if d.maxNewNodesPerTrial == unlimitedNewNodesPerTrial {
		return true
	}
	return d.newNodesThisTrial < d.maxNewNodesPerTrial
}

// currentStateIsSolved mirrors THTS::currentStateIsSolved: the final
// step of the horizon and a cached state both resolve immediately; a
// still-childless, reward-locked state resolves to reward*stepsToGo and
// is cached so a later trial reaching it skips straight through too.
func (d *Driver) currentStateIsSolved(idx int, state mdp.State) (bool, float64) {
	n := d.pool.Node(idx)
	if state.StepsToGo == 1 {
		return true, d.env.CalcOptimalFinalReward(state)
	}
	if v, ok := d.cache.Lookup(state); ok {
		return true, v
	}
	if !n.HasAnyChild() && d.env.IsRewardLock(state) {
		applicable := d.env.IndicesOfApplicableActions(state)
		reward := d.env.CalcReward(state, applicable[0])
		value := reward * float64(state.StepsToGo)
		d.cache.Store(state, value)
		return true, value
	}
	return false, 0
}

// visitChanceNode samples a successor state, creating the decision-node
// child the sampled outcome maps to if this is the first trial to reach
// it, then recurses and backs up. Distinct probabilistic fluents are
// resolved together into one joint outcome per visit rather than chained
// through intermediate per-fluent chance nodes, which is a simplification
// of the original's dummy-chance-node chaining that produces the same
// joint distribution over successor decision nodes.
func (d *Driver) visitChanceNode(idx int, parentState mdp.State, actionIndex int) {
	n := d.pool.Node(idx)

	var ps mdp.ProbabilisticState
	d.env.CalcSuccessorState(parentState, actionIndex, &ps)

	jointProb := 1.0
	var key strings.Builder
	for i := 0; i < ps.NumProbabilisticFluents(); i++ {
		dist := ps.ProbabilisticStateFluentAsPD(i)
		if dist.IsDeterministic() {
			ps.CollapseDeterministic(i)
			continue
		}
		value, chosen := d.outcomeSelection.SelectOutcome(d.rng, dist)
		ps.CollapseSampled(i, value)
		jointProb *= dist.Probs[chosen]
		fmt.Fprintf(&key, "%d:%d|", i, chosen)
	}
	successor := ps.Collapsed()

	slot := d.slotFor(idx, key.String())
	childIdx := n.Child(slot)
	if childIdx == nodepool.NoNode {
		reward := d.env.CalcReward(parentState, actionIndex)
		childIdx = d.pool.CreateDecisionNode(jointProb, successor.StepsToGo, reward)
		n.SetChild(slot, childIdx)
	}

	d.visitDecisionNode(childIdx, successor)

	d.backup.BackupChanceNode(d.acc, idx)
	d.abstractionBuilder.Touch(idx)
}

// slotFor assigns a stable small integer to each distinct joint outcome
// key sampled from a given chance node, so repeated visits reuse the
// same child slot instead of re-allocating a node every time.
func (d *Driver) slotFor(chanceIdx int, key string) int {
	m, ok := d.outcomeSlots[chanceIdx]
	if !ok {
		m = make(map[string]int)
		d.outcomeSlots[chanceIdx] = m
	}
	if slot, ok := m[key]; ok {
		return slot
	}
	slot := len(m)
	m[key] = slot
	return slot
}
