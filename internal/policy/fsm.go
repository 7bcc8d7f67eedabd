package policy

import (
	"fmt"
	"math/rand"

	"github.com/talgya/semester-sim/internal/agents"
)

// State is a PolicyStateMachine state; each selects one delegated policy.
type State string

const (
	StateConservative State = "CONSERVATIVE"
	StateAggressive   State = "AGGRESSIVE"
	StateCasual       State = "CASUAL"
)

// States lists every state.
var States = []State{StateConservative, StateAggressive, StateCasual}

// Transition records one state change.
type Transition struct {
	From        State `json:"from"`
	To          State `json:"to"`
	WeeksStayed int   `json:"weeks_stayed"`
	Week        int   `json:"week"`
}

// StateMachine delegates Choose to one of three policies and moves between
// them according to its TransitionRule. Exactly one state is active at a
// time; every transition is logged before the state pointer moves.
type StateMachine struct {
	Current      State
	WeeksInState int
	History      []Transition

	rule     TransitionRule
	rng      *rand.Rand
	policies map[State]Policy
}

// NewStateMachine creates a state machine. A nil rule selects the calendar
// rule; an empty initial state selects CONSERVATIVE.
func NewStateMachine(rng *rand.Rand, rule TransitionRule, initial State) *StateMachine {
	if rule == nil {
		rule = CalendarRule{}
	}
	if initial == "" {
		initial = StateConservative
	}
	return &StateMachine{
		Current: initial,
		rule:    rule,
		rng:     rng,
		policies: map[State]Policy{
			StateConservative: NewConservative(rng, DefaultConservativeEpsilon),
			StateAggressive:   NewAggressive(rng, ""),
			StateCasual:       NewCasual(rng, DefaultCasualEpsilon),
		},
	}
}

func (*StateMachine) Name() string { return KindFSM }

// Rule returns the active transition rule.
func (m *StateMachine) Rule() TransitionRule { return m.rule }

// Delegate returns the policy bound to state.
func (m *StateMachine) Delegate(s State) Policy { return m.policies[s] }

// Choose updates the state for this week, then applies the rule's
// overrides and delegates to the active policy.
func (m *StateMachine) Choose(a *agents.Agent, actions []agents.Action, week int) agents.Action {
	target := m.rule.Target(m.Current, m.WeeksInState, a, week, m.rng)
	if target != m.Current {
		m.transitionTo(target, week)
	} else {
		m.WeeksInState++
	}

	candidates, forced := m.rule.Prepare(m, actions, week)
	if forced != "" {
		return forced
	}
	return m.policies[m.Current].Choose(a, candidates, week)
}

func (m *StateMachine) transitionTo(next State, week int) {
	m.History = append(m.History, Transition{
		From:        m.Current,
		To:          next,
		WeeksStayed: m.WeeksInState,
		Week:        week,
	})
	m.Current = next
	m.WeeksInState = 0
	m.rule.Enter(m, next)
}

// StateStats is a telemetry view of the machine.
type StateStats struct {
	Current      State        `json:"current_state"`
	WeeksInState int          `json:"weeks_in_current"`
	History      []Transition `json:"transition_history"`
}

// Stats returns the current state, time in state and transition history.
func (m *StateMachine) Stats() StateStats {
	hist := make([]Transition, len(m.History))
	copy(hist, m.History)
	return StateStats{Current: m.Current, WeeksInState: m.WeeksInState, History: hist}
}

// String renders the machine for logs.
func (m *StateMachine) String() string {
	return fmt.Sprintf("fsm(%s, %s, %d weeks, %d transitions)", m.rule.Name(), m.Current, m.WeeksInState, len(m.History))
}
