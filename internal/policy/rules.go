package policy

import (
	"fmt"
	"math/rand"

	"github.com/talgya/semester-sim/internal/agents"
)

// Rule names accepted by RuleFromName.
const (
	RuleCalendar = "calendar"
	RuleStress   = "stress"
)

// TransitionRule decides which state a StateMachine should be in and may
// layer per-week overrides on top of the delegated policy.
type TransitionRule interface {
	Name() string

	// Target returns the state for this week. weeksInState is the machine's
	// counter before this week's update.
	Target(current State, weeksInState int, a *agents.Agent, week int, rng *rand.Rand) State

	// Enter runs after a logged transition into state.
	Enter(m *StateMachine, state State)

	// Prepare runs after the state update. It returns the candidate set to
	// delegate with, or a non-empty forced action that bypasses delegation.
	Prepare(m *StateMachine, actions []agents.Action, week int) (candidates []agents.Action, forced agents.Action)
}

// RuleFromName returns the rule for name. Empty selects calendar. A name
// listing both rules ("calendar+stress") resolves to calendar.
func RuleFromName(name string) (TransitionRule, error) {
	switch name {
	case "", RuleCalendar, "calendar+stress", "stress+calendar":
		return CalendarRule{}, nil
	case RuleStress:
		return StressRule{}, nil
	default:
		return nil, fmt.Errorf("unknown fsm rule %q", name)
	}
}

var (
	crammingWeeks   = map[int]bool{5: true, 6: true, 12: true, 13: true}
	decompressWeeks = map[int]bool{8: true, 9: true, 15: true, 16: true}
)

// CalendarRule derives the state from the week alone: cramming before each
// exam, decompression after, balance otherwise.
type CalendarRule struct{}

func (CalendarRule) Name() string { return RuleCalendar }

// Target implements TransitionRule.
func (CalendarRule) Target(_ State, _ int, _ *agents.Agent, week int, _ *rand.Rand) State {
	switch {
	case crammingWeeks[week]:
		return StateAggressive
	case decompressWeeks[week]:
		return StateCasual
	default:
		return StateConservative
	}
}

// Enter implements TransitionRule. Week-driven setup lives in Prepare.
func (CalendarRule) Enter(*StateMachine, State) {}

// Prepare implements TransitionRule.
func (CalendarRule) Prepare(m *StateMachine, actions []agents.Action, week int) ([]agents.Action, agents.Action) {
	switch {
	case crammingWeeks[week]:
		if agg, ok := m.policies[StateAggressive].(*Aggressive); ok {
			agg.SetFocus(agents.ActionStudy)
		}
		if agents.Contains(actions, agents.ActionStudy) {
			return actions, agents.ActionStudy
		}
	case decompressWeeks[week]:
		m.policies[StateCasual] = NewCasual(m.rng, PostExamCasualEpsilon)
		if rest := agents.Without(actions, agents.ActionStudy); len(rest) > 0 {
			return rest, ""
		}
	}
	return actions, ""
}

// StressRule is the probabilistic rule driven by the agent's composite
// stress and exam proximity. Kept as an alternative to CalendarRule.
type StressRule struct{}

func (StressRule) Name() string { return RuleStress }

// Target implements TransitionRule.
func (StressRule) Target(current State, weeksInState int, a *agents.Agent, week int, rng *rand.Rand) State {
	stayed := weeksInState + 1
	stress := a.Stress(week)

	switch current {
	case StateConservative:
		if (week == 6 || week == 7 || week == 13 || week == 14) && a.Knowledge < 40 {
			return StateAggressive
		}
		if stress < 0.3 && stayed > 2 && rng.Float64() < 0.3 {
			return StateCasual
		}
	case StateAggressive:
		if stress > 0.7 {
			return StateConservative
		}
		if decompressWeeks[week] && rng.Float64() < 0.4 {
			return StateCasual
		}
	case StateCasual:
		if stress > 0.6 {
			return StateConservative
		}
		if crammingWeeks[week] && rng.Float64() < 0.25 {
			return StateAggressive
		}
		if stayed > 4 && rng.Float64() < 0.2 {
			if rng.Intn(2) == 0 {
				return StateConservative
			}
			return StateAggressive
		}
	}
	return current
}

// Enter implements TransitionRule. Entering AGGRESSIVE starts a fresh
// commitment.
func (StressRule) Enter(m *StateMachine, state State) {
	if state == StateAggressive {
		m.policies[StateAggressive] = NewAggressive(m.rng, "")
	}
}

// Prepare implements TransitionRule. The stress rule has no overrides.
func (StressRule) Prepare(_ *StateMachine, actions []agents.Action, _ int) ([]agents.Action, agents.Action) {
	return actions, ""
}
