// Package mdp defines the data model the THTS search engine is built
// against: states, probabilistic states, actions, and the external
// collaborator interfaces (§6 of the specification) the engine
// consumes but does not implement. Parsing a relational domain into
// these types, simplifying conditional probability expressions, and
// determinization are explicitly out of scope here; see mdp/toydomain
// for a hand-built domain that plays the role a parser's output would.
package mdp

import (
	"fmt"
	"strings"
)

// Distribution is a discrete probability distribution over the values a
// single probabilistic fluent may take after a transition. A fluent that
// has collapsed to a single value (IsDeterministic) no longer needs
// outcome selection.
type Distribution struct {
	Values []float64
	Probs  []float64
}

// IsDeterministic reports whether the distribution has a single outcome.
func (d Distribution) IsDeterministic() bool {
	return len(d.Values) == 1
}

// NewDeterministic returns the distribution that always yields v.
func NewDeterministic(v float64) Distribution {
	return Distribution{Values: []float64{v}, Probs: []float64{1.0}}
}

// State is a fully collapsed fluent assignment plus the number of
// decision steps remaining in the horizon. Invariant: StepsToGo >= 0.
type State struct {
	Fluents   []float64
	StepsToGo int
}

// Clone returns a deep copy, since States are mutated in place along a trial.
func (s State) Clone() State {
	return State{Fluents: append([]float64(nil), s.Fluents...), StepsToGo: s.StepsToGo}
}

// Key returns a hashable identity for the state-value cache. Grounded on
// State::calcStateHashKey in the original THTS source: a cheap, exact key
// recomputed whenever a state is finalized.
func (s State) Key() StateKey {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|", s.StepsToGo)
	for _, f := range s.Fluents {
		fmt.Fprintf(&b, "%.12g,", f)
	}
	return StateKey(b.String())
}

// StateKey is an opaque, comparable identity for a State, suitable as a map key.
type StateKey string

// ProbabilisticState is a State some of whose fluents have not yet
// collapsed to a single value: ProbFluents[i] is the distribution pending
// for the fluent stored at Fluents[ProbIndex[i]]. CollapseSampled (for a
// value OutcomeSelection sampled) and CollapseDeterministic (for a
// deterministic Distribution) write the resolved values back into
// Fluents, after which the ProbabilisticState can be read as a plain
// State via Collapsed().
type ProbabilisticState struct {
	Fluents     []float64
	ProbFluents []Distribution
	ProbIndex   []int
	StepsToGo   int
}

// ProbabilisticStateFluentAsPD returns the pending distribution for the
// i-th probabilistic fluent slot.
func (ps ProbabilisticState) ProbabilisticStateFluentAsPD(i int) Distribution {
	return ps.ProbFluents[i]
}

// CollapseDeterministic writes the i-th probabilistic fluent's value into
// Fluents if its distribution is already deterministic, mirroring the THTS
// driver's pass over probabilisticStateFluentAsPD before chance-node descent.
func (ps *ProbabilisticState) CollapseDeterministic(i int) {
	d := ps.ProbFluents[i]
	if d.IsDeterministic() {
		ps.Fluents[ps.ProbIndex[i]] = d.Values[0]
	}
}

// CollapseSampled writes a sampled value for the i-th probabilistic fluent.
func (ps *ProbabilisticState) CollapseSampled(i int, value float64) {
	ps.Fluents[ps.ProbIndex[i]] = value
}

// Collapsed returns the State view once every probabilistic fluent has a
// resolved value in Fluents.
func (ps ProbabilisticState) Collapsed() State {
	return State{Fluents: append([]float64(nil), ps.Fluents...), StepsToGo: ps.StepsToGo}
}

// NumProbabilisticFluents reports how many probabilistic fluent slots the
// state carries. Collapsing a slot does not remove it, so the count does
// not drop as fluents are resolved.
func (ps ProbabilisticState) NumProbabilisticFluents() int {
	return len(ps.ProbFluents)
}

// Reset clears any pending distributions and sets the steps-to-go counter,
// preparing the state to be overwritten by CalcSuccessorState.
func (ps *ProbabilisticState) Reset(stepsToGo int) {
	ps.ProbFluents = ps.ProbFluents[:0]
	ps.ProbIndex = ps.ProbIndex[:0]
	ps.StepsToGo = stepsToGo
}

// SetTo copies a State into the probabilistic state, leaving it fully resolved.
func (ps *ProbabilisticState) SetTo(s State) {
	ps.Fluents = append(ps.Fluents[:0], s.Fluents...)
	ps.ProbFluents = ps.ProbFluents[:0]
	ps.ProbIndex = ps.ProbIndex[:0]
	ps.StepsToGo = s.StepsToGo
}

// FluentAssignment is a single action-fluent assignment (one conjunct of a
// simultaneously-applicable action).
type FluentAssignment struct {
	FluentName string
	Value      float64
}

// ActionState names the concrete action tuple used for printing and for
// submission at the system boundary (§6: "a global indexed sequence
// actionStates[i]").
type ActionState struct {
	Name        string
	Assignments []FluentAssignment
}

func (a ActionState) String() string {
	if len(a.Assignments) == 0 {
		return a.Name
	}
	parts := make([]string, len(a.Assignments))
	for i, fa := range a.Assignments {
		parts[i] = fmt.Sprintf("%s=%g", fa.FluentName, fa.Value)
	}
	return fmt.Sprintf("%s(%s)", a.Name, strings.Join(parts, ", "))
}
