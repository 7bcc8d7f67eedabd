package policy

import (
	"math/rand"

	"github.com/talgya/semester-sim/internal/agents"
)

// baselinePreferred is the fallback pool once no rule fires.
var baselinePreferred = []agents.Action{
	agents.ActionStudy, agents.ActionSocialize, agents.ActionRest, agents.ActionPlayGame,
}

// Baseline is an ordered rule cascade with epsilon exploration:
// low energy → rest, low mood → play_game, behind on knowledge → study,
// low social → socialize, otherwise a preferred pick.
type Baseline struct {
	Epsilon float64
	rng     *rand.Rand
}

// NewBaseline creates a Baseline policy.
func NewBaseline(rng *rand.Rand, epsilon float64) *Baseline {
	return &Baseline{Epsilon: epsilon, rng: rng}
}

func (*Baseline) Name() string { return KindBaseline }

// Choose implements Policy.
func (p *Baseline) Choose(a *agents.Agent, actions []agents.Action, week int) agents.Action {
	if act, ok := explore(p.rng, p.Epsilon, actions); ok {
		return act
	}

	if a.Energy < 35 && agents.Contains(actions, agents.ActionRest) {
		return agents.ActionRest
	}
	if a.Mood < 45 && agents.Contains(actions, agents.ActionPlayGame) {
		return agents.ActionPlayGame
	}
	// Linear target: the closer the exams, the more studying looks urgent.
	target := 20 + float64(week)*3
	if a.Knowledge < target && agents.Contains(actions, agents.ActionStudy) {
		return agents.ActionStudy
	}
	if a.Social < 40 && agents.Contains(actions, agents.ActionSocialize) {
		return agents.ActionSocialize
	}

	preferred := filter(baselinePreferred, actions)
	if len(preferred) == 0 {
		return pick(p.rng, actions)
	}
	return pick(p.rng, preferred)
}
