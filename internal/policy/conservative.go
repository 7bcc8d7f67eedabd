package policy

import (
	"math/rand"

	"github.com/talgya/semester-sim/internal/agents"
)

// balanceMargin is how far below the vitals average an attribute may sit
// before the second-pass cascade tops it up.
const balanceMargin = 15

// Conservative keeps every attribute in a healthy band. It rescues anything
// under a hard floor, keeps knowledge on a gentle weekly target, and then
// lifts whichever vital lags the average by more than balanceMargin.
type Conservative struct {
	Epsilon float64
	rng     *rand.Rand
}

// NewConservative creates a Conservative policy.
func NewConservative(rng *rand.Rand, epsilon float64) *Conservative {
	return &Conservative{Epsilon: epsilon, rng: rng}
}

func (*Conservative) Name() string { return KindConservative }

// Choose implements Policy.
func (p *Conservative) Choose(a *agents.Agent, actions []agents.Action, week int) agents.Action {
	if act, ok := explore(p.rng, p.Epsilon, actions); ok {
		return act
	}

	avg := float64(a.Energy+a.Mood+a.Social) / 3

	// Floors.
	if a.Energy < 40 && agents.Contains(actions, agents.ActionRest) {
		return agents.ActionRest
	}
	if a.Social < 35 && agents.Contains(actions, agents.ActionSocialize) {
		return agents.ActionSocialize
	}
	if a.Mood < 40 && agents.Contains(actions, agents.ActionPlayGame) {
		return agents.ActionPlayGame
	}

	target := 25 + float64(week)*2.5
	if a.Knowledge < target && agents.Contains(actions, agents.ActionStudy) {
		return agents.ActionStudy
	}

	// Balance.
	if avg-float64(a.Energy) > balanceMargin && agents.Contains(actions, agents.ActionRest) {
		return agents.ActionRest
	}
	if avg-float64(a.Mood) > balanceMargin && agents.Contains(actions, agents.ActionPlayGame) {
		return agents.ActionPlayGame
	}
	if avg-float64(a.Social) > balanceMargin && agents.Contains(actions, agents.ActionSocialize) {
		return agents.ActionSocialize
	}

	return pick(p.rng, actions)
}
