package mdp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborplan/thts/internal/mdp"
)

func TestDistributionIsDeterministic(t *testing.T) {
	require.True(t, mdp.NewDeterministic(3.0).IsDeterministic())
	require.False(t, mdp.Distribution{Values: []float64{0, 1}, Probs: []float64{0.5, 0.5}}.IsDeterministic())
}

func TestStateCloneIsIndependent(t *testing.T) {
	s := mdp.State{Fluents: []float64{1, 2}, StepsToGo: 4}
	c := s.Clone()
	c.Fluents[0] = 99
	require.Equal(t, 1.0, s.Fluents[0])
}

func TestStateKeyDistinguishesStepsToGoAndFluents(t *testing.T) {
	a := mdp.State{Fluents: []float64{1, 0}, StepsToGo: 3}
	b := mdp.State{Fluents: []float64{1, 0}, StepsToGo: 2}
	c := mdp.State{Fluents: []float64{0, 1}, StepsToGo: 3}
	require.NotEqual(t, a.Key(), b.Key())
	require.NotEqual(t, a.Key(), c.Key())
	require.Equal(t, a.Key(), a.Clone().Key())
}

func TestProbabilisticStateCollapseDeterministic(t *testing.T) {
	ps := mdp.ProbabilisticState{
		Fluents:     []float64{0, 0},
		ProbFluents: []mdp.Distribution{mdp.NewDeterministic(1.0)},
		ProbIndex:   []int{1},
		StepsToGo:   2,
	}
	ps.CollapseDeterministic(0)
	require.Equal(t, []float64{0, 1}, ps.Fluents)
	require.Equal(t, mdp.State{Fluents: []float64{0, 1}, StepsToGo: 2}, ps.Collapsed())
}

func TestProbabilisticStateCollapseSampled(t *testing.T) {
	ps := mdp.ProbabilisticState{
		Fluents:     []float64{0},
		ProbFluents: []mdp.Distribution{{Values: []float64{0, 1}, Probs: []float64{0.5, 0.5}}},
		ProbIndex:   []int{0},
		StepsToGo:   1,
	}
	ps.CollapseSampled(0, 1.0)
	require.Equal(t, 1.0, ps.Fluents[0])
}

func TestProbabilisticStateResetClearsPending(t *testing.T) {
	ps := mdp.ProbabilisticState{}
	ps.SetTo(mdp.State{Fluents: []float64{1, 2}, StepsToGo: 5})
	ps.ProbFluents = append(ps.ProbFluents, mdp.NewDeterministic(1))
	ps.ProbIndex = append(ps.ProbIndex, 0)

	ps.Reset(4)
	require.Equal(t, 4, ps.StepsToGo)
	require.Empty(t, ps.ProbFluents)
	require.Empty(t, ps.ProbIndex)
	require.Equal(t, []float64{1, 2}, ps.Fluents)
}

func TestActionStateString(t *testing.T) {
	bare := mdp.ActionState{Name: "noop"}
	require.Equal(t, "noop", bare.String())

	withArgs := mdp.ActionState{
		Name:        "reboot",
		Assignments: []mdp.FluentAssignment{{FluentName: "a", Value: 1}},
	}
	require.Equal(t, "reboot(a=1)", withArgs.String())
}
