// Package toydomain is a hand-built mdp.Environment standing in for the
// output of a relational-domain parser (parsing, conditional-probability
// simplification, and determinization are out of scope for this
// repository; see SPEC_FULL.md). It implements a ring network of
// computers in the style of the classic SysAdmin planning domain: each
// computer is either running or down, a reboot always brings it back up
// next step at a cost, and a down computer drags down its neighbors'
// chance of staying up.
package toydomain

import "github.com/arborplan/thts/internal/mdp"

// Config parameterizes a Network's dynamics.
type Config struct {
	NumComputers   int
	RebootCost     float64
	BaseSurvival   float64 // chance an already-running computer stays up with no help from neighbors
	NeighborBonus  float64 // additional survival chance scaled by the fraction of the two ring neighbors running (full bonus when both run); the total is capped at 1
	RestartChance  float64 // chance a down, non-rebooted computer spontaneously comes back up
}

// DefaultConfig returns reasonable parameters for a ring of n computers.
func DefaultConfig(n int) Config {
	return Config{
		NumComputers:  n,
		RebootCost:    0.75,
		BaseSurvival:  0.45,
		NeighborBonus: 0.4,
		RestartChance: 0.1,
	}
}

// Network is a ring-topology SysAdmin domain: Fluents[i] is 1.0 if
// computer i is running, 0.0 if it is down. Action 0 is noop; action
// 1+i is "reboot computer i".
type Network struct {
	cfg          Config
	actionStates []mdp.ActionState
}

var _ mdp.Environment = (*Network)(nil)

// New builds a Network for the given configuration.
func New(cfg Config) *Network {
	n := &Network{cfg: cfg}
	n.actionStates = make([]mdp.ActionState, 0, cfg.NumComputers+1)
	n.actionStates = append(n.actionStates, mdp.ActionState{Name: "noop"})
	for i := 0; i < cfg.NumComputers; i++ {
		n.actionStates = append(n.actionStates, mdp.ActionState{
			Name:        "reboot",
			Assignments: []mdp.FluentAssignment{{FluentName: computerName(i), Value: 1}},
		})
	}
	return n
}

func computerName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return string(letters[i])
	}
	return string(rune('a'+i%26)) + string(rune('0'+i/26))
}

// InitialState returns the all-running start state for a horizon of stepsToGo steps.
func (n *Network) InitialState(stepsToGo int) mdp.State {
	f := make([]float64, n.cfg.NumComputers)
	for i := range f {
		f[i] = 1.0
	}
	return mdp.State{Fluents: f, StepsToGo: stepsToGo}
}

func (n *Network) ActionStates() []mdp.ActionState {
	return n.actionStates
}

func (n *Network) NumProbabilisticFluents() int {
	return n.cfg.NumComputers
}

// CalcReward sums the number of running computers and subtracts the
// reboot cost when the applied action is a reboot. This makes reward
// depend on the chosen action, so IsRewardLock is false whenever
// RebootCost is nonzero.
func (n *Network) CalcReward(state mdp.State, actionIndex int) float64 {
	reward := 0.0
	for _, f := range state.Fluents {
		reward += f
	}
	if actionIndex > 0 {
		reward -= n.cfg.RebootCost
	}
	return reward
}

func (n *Network) CalcOptimalFinalReward(state mdp.State) float64 {
	best := n.CalcReward(state, 0)
	for a := 1; a < len(n.actionStates); a++ {
		if r := n.CalcReward(state, a); r > best {
			best = r
		}
	}
	return best
}

func (n *Network) OptimalFinalActionIndex(state mdp.State) int {
	best, bestA := n.CalcReward(state, 0), 0
	for a := 1; a < len(n.actionStates); a++ {
		if r := n.CalcReward(state, a); r > best {
			best, bestA = r, a
		}
	}
	return bestA
}

// CalcSuccessorState fills out with one Distribution per computer. The
// rebooted computer (if any) collapses deterministically to running;
// every other computer's survival chance depends on BaseSurvival,
// RestartChance, and the fraction of its two ring neighbors currently
// running.
func (n *Network) CalcSuccessorState(current mdp.State, actionIndex int, out *mdp.ProbabilisticState) {
	out.Reset(current.StepsToGo - 1)
	rebooted := actionIndex - 1 // -1 means no reboot this step
	for i := 0; i < n.cfg.NumComputers; i++ {
		out.Fluents = append(out.Fluents, current.Fluents[i])
		if i == rebooted {
			out.ProbFluents = append(out.ProbFluents, mdp.NewDeterministic(1.0))
			out.ProbIndex = append(out.ProbIndex, i)
			continue
		}
		left := current.Fluents[(i-1+n.cfg.NumComputers)%n.cfg.NumComputers]
		right := current.Fluents[(i+1)%n.cfg.NumComputers]
		neighborFrac := (left + right) / 2.0

		var pUp float64
		if current.Fluents[i] > 0.5 {
			pUp = n.cfg.BaseSurvival + n.cfg.NeighborBonus*neighborFrac
		} else {
			pUp = n.cfg.RestartChance + n.cfg.NeighborBonus*neighborFrac*0.5
		}
		if pUp < 0 {
			pUp = 0
		}
		if pUp > 1 {
			pUp = 1
		}

		switch pUp {
		case 0:
			out.ProbFluents = append(out.ProbFluents, mdp.NewDeterministic(0.0))
		case 1:
			out.ProbFluents = append(out.ProbFluents, mdp.NewDeterministic(1.0))
		default:
			out.ProbFluents = append(out.ProbFluents, mdp.Distribution{
				Values: []float64{0.0, 1.0},
				Probs:  []float64{1 - pUp, pUp},
			})
		}
		out.ProbIndex = append(out.ProbIndex, i)
	}
}

// IsRewardLock reports whether every action (noop and every reboot)
// yields the same immediate reward at state. Since a reboot always costs
// RebootCost more than noop, this is true only when RebootCost is zero
// (or there are no computers to reboot), whatever the fluent values.
func (n *Network) IsRewardLock(state mdp.State) bool {
	first := n.CalcReward(state, 0)
	for a := 1; a < len(n.actionStates); a++ {
		if n.CalcReward(state, a) != first {
			return false
		}
	}
	return true
}

func (n *Network) ApplicableActions(state mdp.State) []bool {
	applicable := make([]bool, len(n.actionStates))
	for i := range applicable {
		applicable[i] = true
	}
	return applicable
}

// IndicesOfApplicableActions excludes rebooting a computer that is
// already running, since noop dominates it on its face.
func (n *Network) IndicesOfApplicableActions(state mdp.State) []int {
	indices := []int{0}
	for i := 0; i < n.cfg.NumComputers; i++ {
		if state.Fluents[i] < 0.5 {
			indices = append(indices, i+1)
		}
	}
	return indices
}
