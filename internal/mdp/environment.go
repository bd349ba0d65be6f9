package mdp

// Environment is the set of external collaborators the THTS engine
// consumes (§6 of the specification): reward and transition models,
// reward-lock and applicability tests, and the action-state table used
// for printing and submission. State hash keys are not part of it: the
// engine keys its state-value cache with State.Key. The engine never
// implements these itself — they are produced by whatever parses and
// instantiates a domain/problem pair (out of scope here; see
// mdp/toydomain for a hand-built stand-in).
type Environment interface {
	// CalcReward returns the deterministic reward of applying the action
	// at actionIndex to state.
	CalcReward(state State, actionIndex int) float64

	// CalcOptimalFinalReward returns the reward of the best last action
	// when state.StepsToGo == 1.
	CalcOptimalFinalReward(state State) float64

	// CalcSuccessorState populates out with the probabilistic successor
	// of applying the action at actionIndex to current.
	CalcSuccessorState(current State, actionIndex int, out *ProbabilisticState)

	// IsRewardLock reports whether every applicable action at state
	// yields the same reward forever.
	IsRewardLock(state State) bool

	// ApplicableActions returns an indicator sequence, one entry per
	// action in ActionStates, true where the action may be applied.
	ApplicableActions(state State) []bool

	// IndicesOfApplicableActions returns the indices of actions
	// considered "reasonable" to apply at state (a subset of the
	// applicable actions that excludes actions dominated on their face).
	IndicesOfApplicableActions(state State) []int

	// OptimalFinalActionIndex returns the index of the best action when
	// state.StepsToGo == 1.
	OptimalFinalActionIndex(state State) int

	// ActionStates is the global indexed sequence of concrete action
	// tuples, used for printing and for submission at the system boundary.
	ActionStates() []ActionState

	// NumProbabilisticFluents returns the fixed arity of the
	// probabilistic-fluent vector CalcSuccessorState populates.
	NumProbabilisticFluents() int
}
