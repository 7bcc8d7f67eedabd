package policy

import (
	"log/slog"
	"math/rand"

	"github.com/talgya/semester-sim/internal/agents"
)

// rescueFor maps a vital attribute to the action that restores it.
var rescueFor = map[string]agents.Action{
	"energy": agents.ActionRest,
	"mood":   agents.ActionPlayGame,
	"social": agents.ActionSocialize,
}

// Aggressive commits to a single focus action and repeats it until a
// one-step lookahead shows it would drive a vital attribute below zero.
// It has no exploration roll.
type Aggressive struct {
	// Focus is the committed action. Empty until the first Choose when no
	// valid action was configured.
	Focus agents.Action

	rng *rand.Rand
}

// NewAggressive creates an Aggressive policy. An invalid or empty focus is
// replaced by a random available action on first use.
func NewAggressive(rng *rand.Rand, focus agents.Action) *Aggressive {
	if !focus.Valid() {
		focus = ""
	}
	return &Aggressive{Focus: focus, rng: rng}
}

func (*Aggressive) Name() string { return KindAggressive }

// SetFocus replaces the committed action.
func (p *Aggressive) SetFocus(action agents.Action) {
	p.Focus = action
}

// Choose implements Policy.
func (p *Aggressive) Choose(a *agents.Agent, actions []agents.Action, week int) agents.Action {
	if p.Focus == "" {
		p.Focus = pick(p.rng, actions)
	}

	candidate := p.Focus
	if !agents.Contains(actions, candidate) {
		// Focus is not on offer this week; commit to nothing and pick blind.
		candidate = pick(p.rng, actions)
	}

	rescue, safe, err := p.lookahead(*a, candidate, actions)
	switch {
	case err != nil:
		slog.Debug("aggressive lookahead failed", "action", candidate, "week", week, "error", err)
	case safe:
		return candidate
	case rescue != "":
		return rescue
	}

	if act := lowestVitalRescue(a, actions); act != "" {
		return act
	}
	return candidate
}

// lookahead applies action to a private copy of the agent and checks the
// raw projected vitals. safe is true when none would go negative; otherwise
// rescue is the available corrective action for the most negative one, or
// empty when no mapped rescue is available.
func (p *Aggressive) lookahead(sim agents.Agent, action agents.Action, actions []agents.Action) (rescue agents.Action, safe bool, err error) {
	eff, err := sim.Effect(action, 1)
	if err != nil {
		return "", false, err
	}
	next := eff.Project(sim.Snapshot())

	projected := []struct {
		attr  string
		value int
	}{
		{"energy", next.Energy},
		{"mood", next.Mood},
		{"social", next.Social},
	}

	safe = true
	worst := 0
	for _, pr := range projected {
		if pr.value >= 0 {
			continue
		}
		safe = false
		act := rescueFor[pr.attr]
		if !agents.Contains(actions, act) {
			continue
		}
		if rescue == "" || pr.value < worst {
			rescue, worst = act, pr.value
		}
	}
	return rescue, safe, nil
}

// lowestVitalRescue returns the available corrective action for the lowest
// current vital attribute, trying the next-lowest when one is unavailable.
func lowestVitalRescue(a *agents.Agent, actions []agents.Action) agents.Action {
	vitals := []struct {
		attr  string
		value int
	}{
		{"energy", a.Energy},
		{"mood", a.Mood},
		{"social", a.Social},
	}
	// Insertion sort keeps ties in energy, mood, social order.
	for i := 1; i < len(vitals); i++ {
		for j := i; j > 0 && vitals[j].value < vitals[j-1].value; j-- {
			vitals[j], vitals[j-1] = vitals[j-1], vitals[j]
		}
	}
	for _, v := range vitals {
		if act := rescueFor[v.attr]; agents.Contains(actions, act) {
			return act
		}
	}
	return ""
}
