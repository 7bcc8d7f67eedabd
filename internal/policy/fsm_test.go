package policy

import (
	"testing"

	"github.com/talgya/semester-sim/internal/agents"
)

func boundaryAgents() []*agents.Agent {
	return []*agents.Agent{
		{Intelligence: 0, Mood: 0, Energy: 0, Social: 0, Knowledge: 0},
		{Intelligence: 100, Mood: 100, Energy: 100, Social: 100, Knowledge: 100},
	}
}

func TestCalendarCrammingOverride(t *testing.T) {
	for _, week := range []int{5, 6, 12, 13} {
		for seed := int64(0); seed < 20; seed++ {
			for _, a := range boundaryAgents() {
				m := NewStateMachine(newRNG(seed), CalendarRule{}, "")
				if got := m.Choose(a, agents.AllActions, week); got != agents.ActionStudy {
					t.Fatalf("week %d: expected study, got=%q", week, got)
				}
				if m.Current != StateAggressive {
					t.Fatalf("week %d: expected AGGRESSIVE, got=%s", week, m.Current)
				}
				if focus := m.Delegate(StateAggressive).(*Aggressive).Focus; focus != agents.ActionStudy {
					t.Fatalf("week %d: expected study focus, got=%q", week, focus)
				}
			}
		}
	}
}

func TestCalendarPostExamExcludesStudy(t *testing.T) {
	for _, week := range []int{8, 9, 15, 16} {
		for seed := int64(0); seed < 200; seed++ {
			m := NewStateMachine(newRNG(seed), CalendarRule{}, "")
			// Far behind on knowledge: Casual would happily cram if it could.
			a := &agents.Agent{Intelligence: 70, Mood: 60, Energy: 80, Social: 60}
			got := m.Choose(a, agents.AllActions, week)
			if got == agents.ActionStudy {
				t.Fatalf("week %d seed %d: study returned after exams", week, seed)
			}
			if m.Current != StateCasual {
				t.Fatalf("week %d: expected CASUAL, got=%s", week, m.Current)
			}
		}
	}
	// Study is the only action: it is still returned.
	m := NewStateMachine(newRNG(1), CalendarRule{}, "")
	if got := m.Choose(&agents.Agent{}, []agents.Action{agents.ActionStudy}, 8); got != agents.ActionStudy {
		t.Fatalf("expected study as the only option, got=%q", got)
	}
}

func TestCalendarPostExamCasualIsFresh(t *testing.T) {
	m := NewStateMachine(newRNG(1), CalendarRule{}, "")
	m.Choose(&agents.Agent{Mood: 50, Energy: 50, Social: 50}, agents.AllActions, 8)
	c, ok := m.Delegate(StateCasual).(*Casual)
	if !ok {
		t.Fatal("expected casual delegate")
	}
	if c.Epsilon <= DefaultCasualEpsilon {
		t.Fatalf("expected post-exam epsilon above default, got=%v", c.Epsilon)
	}
}

func TestCalendarTransitionHistory(t *testing.T) {
	m := NewStateMachine(newRNG(1), CalendarRule{}, "")
	a := &agents.Agent{Intelligence: 70, Mood: 70, Energy: 70, Social: 70}
	var states []State
	for week := 1; week <= 16; week++ {
		m.Choose(a, agents.AllActions, week)
		states = append(states, m.Current)
	}

	// C = conservative, A = aggressive (cramming), K = casual (decompression).
	codes := map[byte]State{'C': StateConservative, 'A': StateAggressive, 'K': StateCasual}
	plan := "CCCCAACKKCCAACKK"
	for i := range plan {
		if want := codes[plan[i]]; states[i] != want {
			t.Fatalf("week %d: expected %s, got=%s", i+1, want, states[i])
		}
	}

	wantHist := []Transition{
		{From: StateConservative, To: StateAggressive, WeeksStayed: 4, Week: 5},
		{From: StateAggressive, To: StateConservative, WeeksStayed: 1, Week: 7},
		{From: StateConservative, To: StateCasual, WeeksStayed: 0, Week: 8},
		{From: StateCasual, To: StateConservative, WeeksStayed: 1, Week: 10},
		{From: StateConservative, To: StateAggressive, WeeksStayed: 1, Week: 12},
		{From: StateAggressive, To: StateConservative, WeeksStayed: 1, Week: 14},
		{From: StateConservative, To: StateCasual, WeeksStayed: 0, Week: 15},
	}
	if len(m.History) != len(wantHist) {
		t.Fatalf("expected %d transitions, got=%d (%+v)", len(wantHist), len(m.History), m.History)
	}
	for i, tr := range wantHist {
		if m.History[i] != tr {
			t.Fatalf("transition %d: expected %+v, got=%+v", i, tr, m.History[i])
		}
	}
	if m.WeeksInState != 1 {
		t.Fatalf("expected 1 week in final state, got=%d", m.WeeksInState)
	}

	stats := m.Stats()
	if stats.Current != StateCasual || len(stats.History) != len(wantHist) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestStressRuleEscalatesAndCoolsDown(t *testing.T) {
	m := NewStateMachine(newRNG(1), StressRule{}, StateConservative)
	behind := &agents.Agent{Intelligence: 70, Mood: 70, Energy: 70, Social: 70, Knowledge: 10}
	m.Choose(behind, agents.AllActions, 6)
	if m.Current != StateAggressive {
		t.Fatalf("expected AGGRESSIVE before the exam, got=%s", m.Current)
	}
	if focus := m.Delegate(StateAggressive).(*Aggressive).Focus; focus == "" {
		t.Fatal("expected the fresh aggressive policy to pick a focus")
	}

	burnt := &agents.Agent{Intelligence: 70}
	m.Choose(burnt, agents.AllActions, 10)
	if m.Current != StateConservative {
		t.Fatalf("expected CONSERVATIVE under stress, got=%s", m.Current)
	}
	if len(m.History) != 2 {
		t.Fatalf("expected 2 transitions, got=%d", len(m.History))
	}
}

func TestRuleFromName(t *testing.T) {
	for name, want := range map[string]string{
		"":                RuleCalendar,
		"calendar":        RuleCalendar,
		"stress":          RuleStress,
		"calendar+stress": RuleCalendar,
	} {
		r, err := RuleFromName(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if r.Name() != want {
			t.Fatalf("%q: expected %s, got=%s", name, want, r.Name())
		}
	}
}
