// Package agents provides the simulated student: four vital attributes,
// a fixed intelligence trait, the weekly actions that move them, and the
// archetype roster agents are spawned from.
package agents

import "errors"

// Attribute bounds. Every vital attribute is clamped into [MinAttr, MaxAttr]
// after each action.
const (
	MinAttr = 0
	MaxAttr = 100
)

// Action is one of the weekly activities an agent can spend a week on.
type Action string

const (
	ActionStudy     Action = "study"
	ActionRest      Action = "rest"
	ActionPlayGame  Action = "play_game"
	ActionSocialize Action = "socialize"
)

// AllActions is the full candidate set in canonical order.
var AllActions = []Action{ActionStudy, ActionRest, ActionPlayGame, ActionSocialize}

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionStudy, ActionRest, ActionPlayGame, ActionSocialize:
		return true
	}
	return false
}

var (
	// ErrDegenerate marks a growth or scoring formula evaluated at inputs
	// where it has no meaningful value (non-finite, non-positive degree,
	// negative radicand). Callers recover locally.
	ErrDegenerate = errors.New("degenerate formula input")

	// ErrUnknownAction is returned when an action name is not one of AllActions.
	ErrUnknownAction = errors.New("unknown action")
)

// Agent is the simulated student. Mood, Energy and Social are integers in
// [0,100]; Knowledge is fractional in [0,100]. Intelligence never changes
// after spawn. Week is the simulation clock: 0 at creation, incremented once
// per simulated week by the runner.
type Agent struct {
	Name      string `json:"name"`
	Archetype string `json:"archetype"`

	Intelligence int `json:"intelligence"`

	Mood      int     `json:"mood"`
	Energy    int     `json:"energy"`
	Social    int     `json:"social"`
	Knowledge float64 `json:"knowledge"`

	Week int `json:"week"`
}

// Vitals is a read-only snapshot of the mutable attributes.
type Vitals struct {
	Mood      int     `json:"mood"`
	Energy    int     `json:"energy"`
	Social    int     `json:"social"`
	Knowledge float64 `json:"knowledge"`
}

// Snapshot returns the agent's current vitals.
func (a *Agent) Snapshot() Vitals {
	return Vitals{Mood: a.Mood, Energy: a.Energy, Social: a.Social, Knowledge: a.Knowledge}
}

// Contains reports whether action is a member of actions.
func Contains(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// Without returns a copy of actions with every occurrence of drop removed.
func Without(actions []Action, drop Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a != drop {
			out = append(out, a)
		}
	}
	return out
}

func clampInt(v int) int {
	if v < MinAttr {
		return MinAttr
	}
	if v > MaxAttr {
		return MaxAttr
	}
	return v
}

func clampFloat(v float64) float64 {
	if v < MinAttr {
		return MinAttr
	}
	if v > MaxAttr {
		return MaxAttr
	}
	return v
}
