// Command thts-demo runs THTS search rounds against the bundled
// SysAdmin-network toy domain and prints the recommended action at every
// step. Flag surface grounded on the original planner's CLI: -act, -out,
// -backup, -init, -rec, -cp, -er, -T, -r, -ndn, -node-limit and -uf
// select the search itself, all parsed through the single -ingredients
// configuration string; -t, -st, -tra, -minsd and -hw are accepted the
// same way so existing invocations keep working but, per the
// specification's Non-goals, have no effect (they configured an
// iterative-deepening search this driver does not implement).
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/janpfeifer/must"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/arborplan/thts/internal/config"
	"github.com/arborplan/thts/internal/engine"
	"github.com/arborplan/thts/internal/ingredients"
	"github.com/arborplan/thts/internal/mdp"
	"github.com/arborplan/thts/internal/mdp/toydomain"
)

var (
	flagIngredients = flag.String("ingredients", "",
		"Comma-separated search configuration, e.g. "+
			"act=ucb1,cp=1.5,out=mc,backup=mc,init=optimistic,rec=expected,T=TRIALS,r=5000,ndn=H,uf=0.1,node-limit=5000000")
	flagComputers = flag.Int("computers", 6, "Number of computers in the ring network")
	flagHorizon   = flag.Int("horizon", 15, "Planning horizon in steps")
	flagRounds    = flag.Int("rounds", 1, "Independent rounds to run concurrently")
	flagMaxTime   = flag.Duration("max-time", 200*time.Millisecond, "Per-step search time budget")
	flagSeed      = flag.Int64("seed", 1, "Random seed for the first round; subsequent rounds offset from it")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	settings := must.M1(config.NewSettings(*flagIngredients))
	termination := must.M1(config.ParseTerminationMethod(settings.Termination))

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)
	results := make([][]engine.Stats, *flagRounds)
	for round := 0; round < *flagRounds; round++ {
		round := round
		g.Go(func() error {
			stats, err := runRound(round, settings, termination)
			results[round] = stats
			return err
		})
	}
	must.M(g.Wait())

	for round, stats := range results {
		fmt.Printf("round %d:\n", round)
		engine.PrintStats(stats)
	}
}

func runRound(round int, settings config.Settings, termination engine.TerminationMethod) ([]engine.Stats, error) {
	domain := toydomain.New(toydomain.DefaultConfig(*flagComputers))
	rng := rand.New(rand.NewSource(*flagSeed + int64(round)))
	driver, err := engine.NewDriver(domain, settings, termination, rng)
	if err != nil {
		return nil, err
	}

	budget := engine.Budget{MaxTime: *flagMaxTime, MaxTrials: settings.MaxTrials}
	state := domain.InitialState(*flagHorizon)
	var stepStats []engine.Stats
	for state.StepsToGo > 0 {
		action, stats, err := driver.SelectAction(state, budget)
		if err != nil {
			return stepStats, err
		}
		stepStats = append(stepStats, stats)
		klog.V(2).Infof("round %d: step %d chose %s", round, *flagHorizon-state.StepsToGo, domain.ActionStates()[action])

		var successor mdp.ProbabilisticState
		domain.CalcSuccessorState(state, action, &successor)
		outcomeSelection := ingredients.MonteCarloOutcome{}
		for i := 0; i < successor.NumProbabilisticFluents(); i++ {
			dist := successor.ProbabilisticStateFluentAsPD(i)
			if dist.IsDeterministic() {
				successor.CollapseDeterministic(i)
				continue
			}
			value, _ := outcomeSelection.SelectOutcome(rng, dist)
			successor.CollapseSampled(i, value)
		}
		state = successor.Collapsed()
	}
	return stepStats, nil
}
