package policy

import (
	"math/rand"

	"github.com/talgya/semester-sim/internal/agents"
)

// Per-action preference weights for the mood-banded pick.
var casualWeights = map[agents.Action]float64{
	agents.ActionPlayGame:  1.5,
	agents.ActionSocialize: 1.2,
}

var (
	casualGoodMood = []agents.Action{agents.ActionSocialize, agents.ActionPlayGame, agents.ActionStudy}
	casualLowMood  = []agents.Action{agents.ActionRest, agents.ActionPlayGame}
)

// Casual follows its gut. It explores often, only reacts when close to
// collapse, sometimes crams when behind, and otherwise picks by mood with a
// soft preference for fun.
type Casual struct {
	Epsilon float64
	rng     *rand.Rand
}

// NewCasual creates a Casual policy.
func NewCasual(rng *rand.Rand, epsilon float64) *Casual {
	return &Casual{Epsilon: epsilon, rng: rng}
}

func (*Casual) Name() string { return KindCasual }

// Choose implements Policy.
func (p *Casual) Choose(a *agents.Agent, actions []agents.Action, week int) agents.Action {
	if act, ok := explore(p.rng, p.Epsilon, actions); ok {
		return act
	}

	if a.Energy < 25 && p.rng.Float64() < 0.7 && agents.Contains(actions, agents.ActionRest) {
		return agents.ActionRest
	}
	if a.Mood < 30 && p.rng.Float64() < 0.8 && agents.Contains(actions, agents.ActionPlayGame) {
		return agents.ActionPlayGame
	}

	target := 15 + float64(week)*2
	if a.Knowledge < target && p.rng.Float64() < 0.5 && agents.Contains(actions, agents.ActionStudy) {
		return agents.ActionStudy
	}

	var preferred []agents.Action
	switch {
	case a.Mood > 70:
		preferred = filter(casualGoodMood, actions)
	case a.Mood < 40:
		preferred = filter(casualLowMood, actions)
	default:
		preferred = actions
	}
	if len(preferred) == 0 {
		preferred = actions
	}

	weights := make([]float64, len(preferred))
	for i, act := range preferred {
		w, ok := casualWeights[act]
		if !ok {
			w = 1.0
		}
		weights[i] = w
	}
	return weightedPick(p.rng, preferred, weights)
}
