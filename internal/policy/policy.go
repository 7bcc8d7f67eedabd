// Package policy provides the decision policies a simulated student uses to
// pick one action per week, and the state machine that switches between them.
//
// Every policy owns its random source and is meant to serve exactly one
// agent. Choose never mutates the agent it inspects.
package policy

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/talgya/semester-sim/internal/agents"
)

// Policy picks the action for one simulated week. The returned action is
// always a member of actions; actions must be non-empty.
type Policy interface {
	Name() string
	Choose(a *agents.Agent, actions []agents.Action, week int) agents.Action
}

// Kind names for New.
const (
	KindBaseline     = "baseline"
	KindConservative = "conservative"
	KindAggressive   = "aggressive"
	KindCasual       = "casual"
	KindFSM          = "fsm"
)

// Default exploration rates.
const (
	DefaultBaselineEpsilon     = 0.1
	DefaultConservativeEpsilon = 0.1
	DefaultCasualEpsilon       = 0.4
	PostExamCasualEpsilon      = 0.6
)

// ErrUnknownPolicy is returned by New for an unrecognized kind.
var ErrUnknownPolicy = errors.New("unknown policy")

// Kinds lists every kind New accepts.
func Kinds() []string {
	return []string{KindBaseline, KindConservative, KindAggressive, KindCasual, KindFSM}
}

// Options tunes policies built by New. Zero values select defaults.
type Options struct {
	Focus   agents.Action // Aggressive only
	FSMRule string        // "calendar" (default) or "stress"
	Initial State         // FSM initial state, default CONSERVATIVE
	Epsilon float64       // overrides the variant's default when > 0
}

// New builds a fresh policy of the given kind around rng.
func New(kind string, rng *rand.Rand, opts Options) (Policy, error) {
	eps := func(def float64) float64 {
		if opts.Epsilon > 0 {
			return opts.Epsilon
		}
		return def
	}
	switch kind {
	case KindBaseline, "":
		return NewBaseline(rng, eps(DefaultBaselineEpsilon)), nil
	case KindConservative:
		return NewConservative(rng, eps(DefaultConservativeEpsilon)), nil
	case KindAggressive:
		return NewAggressive(rng, opts.Focus), nil
	case KindCasual:
		return NewCasual(rng, eps(DefaultCasualEpsilon)), nil
	case KindFSM:
		rule, err := RuleFromName(opts.FSMRule)
		if err != nil {
			return nil, err
		}
		return NewStateMachine(rng, rule, opts.Initial), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, kind)
	}
}

// explore is the exploration roll shared by the epsilon-driven variants.
// With probability epsilon it returns a uniform pick from actions.
func explore(rng *rand.Rand, epsilon float64, actions []agents.Action) (agents.Action, bool) {
	if epsilon > 0 && rng.Float64() < epsilon {
		return pick(rng, actions), true
	}
	return "", false
}

// pick returns a uniform random element of actions, or "" when empty.
func pick(rng *rand.Rand, actions []agents.Action) agents.Action {
	if len(actions) == 0 {
		return ""
	}
	return actions[rng.Intn(len(actions))]
}

// filter keeps the members of preferred that are also in actions, in
// preferred's order.
func filter(preferred, actions []agents.Action) []agents.Action {
	out := make([]agents.Action, 0, len(preferred))
	for _, p := range preferred {
		if agents.Contains(actions, p) {
			out = append(out, p)
		}
	}
	return out
}

// weightedPick samples from actions using weights, which must be the same
// length and positive.
func weightedPick(rng *rand.Rand, actions []agents.Action, weights []float64) agents.Action {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return actions[i]
		}
		r -= w
	}
	return actions[len(actions)-1]
}
