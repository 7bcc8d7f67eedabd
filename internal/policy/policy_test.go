package policy

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/semester-sim/internal/agents"
)

func newRNG(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

func allPolicies(seed int64) []Policy {
	rng := newRNG(seed)
	return []Policy{
		NewBaseline(rng, DefaultBaselineEpsilon),
		NewConservative(rng, DefaultConservativeEpsilon),
		NewAggressive(rng, agents.ActionStudy),
		NewCasual(rng, DefaultCasualEpsilon),
		NewStateMachine(rng, CalendarRule{}, ""),
		NewStateMachine(rng, StressRule{}, ""),
	}
}

// subsets returns every non-empty subset of agents.AllActions.
func subsets() [][]agents.Action {
	var out [][]agents.Action
	n := len(agents.AllActions)
	for mask := 1; mask < 1<<n; mask++ {
		var s []agents.Action
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				s = append(s, agents.AllActions[i])
			}
		}
		out = append(out, s)
	}
	return out
}

func randomAgent(rng *rand.Rand) *agents.Agent {
	return &agents.Agent{
		Intelligence: rng.Intn(101),
		Mood:         rng.Intn(101),
		Energy:       rng.Intn(101),
		Social:       rng.Intn(101),
		Knowledge:    float64(rng.Intn(101)),
	}
}

func TestChooseReturnsMemberAndDoesNotMutate(t *testing.T) {
	rng := newRNG(99)
	for _, p := range allPolicies(5) {
		for trial := 0; trial < 60; trial++ {
			for _, actions := range subsets() {
				a := randomAgent(rng)
				before := *a
				week := 1 + rng.Intn(16)
				got := p.Choose(a, actions, week)
				if !agents.Contains(actions, got) {
					t.Fatalf("%s: expected member of %v, got=%q", p.Name(), actions, got)
				}
				if *a != before {
					t.Fatalf("%s: expected agent unchanged, before=%+v after=%+v", p.Name(), before, *a)
				}
			}
		}
	}
}

func TestBaselineLowEnergyRescue(t *testing.T) {
	p := NewBaseline(newRNG(1), 0)
	a := &agents.Agent{Intelligence: 70, Energy: 10, Mood: 80, Social: 80, Knowledge: 50}
	if got := p.Choose(a, agents.AllActions, 1); got != agents.ActionRest {
		t.Fatalf("expected rest, got=%q", got)
	}
}

func TestBaselineCascade(t *testing.T) {
	p := NewBaseline(newRNG(1), 0)
	cases := []struct {
		name  string
		agent agents.Agent
		week  int
		want  agents.Action
	}{
		{"low mood", agents.Agent{Energy: 80, Mood: 30, Social: 80, Knowledge: 90}, 1, agents.ActionPlayGame},
		{"behind target", agents.Agent{Energy: 80, Mood: 80, Social: 80, Knowledge: 30}, 5, agents.ActionStudy},
		{"lonely", agents.Agent{Energy: 80, Mood: 80, Social: 20, Knowledge: 90}, 5, agents.ActionSocialize},
	}
	for _, tc := range cases {
		a := tc.agent
		if got := p.Choose(&a, agents.AllActions, tc.week); got != tc.want {
			t.Fatalf("%s: expected %q, got=%q", tc.name, tc.want, got)
		}
	}
	// Rest missing from the set: low energy falls through to mood.
	a := &agents.Agent{Energy: 10, Mood: 30, Social: 80, Knowledge: 90}
	if got := p.Choose(a, []agents.Action{agents.ActionPlayGame, agents.ActionStudy}, 1); got != agents.ActionPlayGame {
		t.Fatalf("expected play_game, got=%q", got)
	}
}

func TestConservativeFloorsAndBalance(t *testing.T) {
	p := NewConservative(newRNG(1), 0)
	a := &agents.Agent{Energy: 80, Mood: 80, Social: 30, Knowledge: 100}
	if got := p.Choose(a, agents.AllActions, 3); got != agents.ActionSocialize {
		t.Fatalf("expected socialize floor, got=%q", got)
	}
	a = &agents.Agent{Energy: 80, Mood: 80, Social: 80, Knowledge: 10}
	if got := p.Choose(a, agents.AllActions, 3); got != agents.ActionStudy {
		t.Fatalf("expected study, got=%q", got)
	}
	// avg = (45+90+90)/3 = 75; energy trails by 30.
	a = &agents.Agent{Energy: 45, Mood: 90, Social: 90, Knowledge: 100}
	if got := p.Choose(a, agents.AllActions, 3); got != agents.ActionRest {
		t.Fatalf("expected rest for balance, got=%q", got)
	}
}

func TestAggressiveLookaheadRescue(t *testing.T) {
	p := NewAggressive(newRNG(1), agents.ActionStudy)
	a := &agents.Agent{Intelligence: 70, Energy: 5, Mood: 80, Social: 80, Knowledge: 10}
	before := *a
	if got := p.Choose(a, agents.AllActions, 3); got != agents.ActionRest {
		t.Fatalf("expected rest, got=%q", got)
	}
	if *a != before {
		t.Fatal("expected lookahead to leave the agent untouched")
	}
	if p.Focus != agents.ActionStudy {
		t.Fatalf("expected focus to stay study, got=%q", p.Focus)
	}
}

func TestAggressiveKeepsFocusWhenSafe(t *testing.T) {
	p := NewAggressive(newRNG(1), agents.ActionStudy)
	a := &agents.Agent{Intelligence: 70, Energy: 90, Mood: 90, Social: 90}
	for week := 1; week <= 3; week++ {
		if got := p.Choose(a, agents.AllActions, week); got != agents.ActionStudy {
			t.Fatalf("week %d: expected study, got=%q", week, got)
		}
	}
}

func TestAggressiveHasNoExploration(t *testing.T) {
	// Safe state, focus available: the same answer every time, whatever the seed.
	for seed := int64(0); seed < 50; seed++ {
		p := NewAggressive(newRNG(seed), agents.ActionSocialize)
		a := &agents.Agent{Intelligence: 70, Energy: 90, Mood: 90, Social: 90}
		if got := p.Choose(a, agents.AllActions, 2); got != agents.ActionSocialize {
			t.Fatalf("seed %d: expected socialize, got=%q", seed, got)
		}
	}
}

func TestAggressiveInvalidFocus(t *testing.T) {
	p := NewAggressive(newRNG(3), "sleep_in")
	if p.Focus != "" {
		t.Fatalf("expected invalid focus dropped, got=%q", p.Focus)
	}
	a := &agents.Agent{Intelligence: 70, Energy: 90, Mood: 90, Social: 90}
	actions := []agents.Action{agents.ActionRest, agents.ActionSocialize}
	got := p.Choose(a, actions, 1)
	if !agents.Contains(actions, got) {
		t.Fatalf("expected valid action, got=%q", got)
	}
	if !agents.Contains(actions, p.Focus) {
		t.Fatalf("expected focus drawn from actions, got=%q", p.Focus)
	}
}

func TestAggressiveRescueUnavailable(t *testing.T) {
	p := NewAggressive(newRNG(1), agents.ActionStudy)
	a := &agents.Agent{Intelligence: 70, Energy: 5, Mood: 20, Social: 80}
	// No rest on offer: the lowest-vital fallback moves on to mood.
	actions := []agents.Action{agents.ActionStudy, agents.ActionPlayGame}
	if got := p.Choose(a, actions, 3); got != agents.ActionPlayGame {
		t.Fatalf("expected play_game, got=%q", got)
	}
}

func TestCasualOnlyPicksFromSet(t *testing.T) {
	p := NewCasual(newRNG(11), DefaultCasualEpsilon)
	a := &agents.Agent{Energy: 80, Mood: 90, Social: 50}
	actions := []agents.Action{agents.ActionRest}
	for i := 0; i < 100; i++ {
		if got := p.Choose(a, actions, 4); got != agents.ActionRest {
			t.Fatalf("expected rest, got=%q", got)
		}
	}
}

func TestCasualPrefersFun(t *testing.T) {
	p := NewCasual(newRNG(4), 0)
	a := &agents.Agent{Energy: 80, Mood: 50, Social: 50, Knowledge: 100}
	counts := map[agents.Action]int{}
	for i := 0; i < 5000; i++ {
		counts[p.Choose(a, agents.AllActions, 4)]++
	}
	if counts[agents.ActionPlayGame] <= counts[agents.ActionStudy] {
		t.Fatalf("expected play_game weighted above study, got=%v", counts)
	}
}

func TestNew(t *testing.T) {
	for _, kind := range Kinds() {
		p, err := New(kind, newRNG(1), Options{})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if p.Name() != kind {
			t.Fatalf("expected name %q, got=%q", kind, p.Name())
		}
	}
	if _, err := New("yolo", newRNG(1), Options{}); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got=%v", err)
	}
	if _, err := New(KindFSM, newRNG(1), Options{FSMRule: "moon"}); err == nil {
		t.Fatal("expected unknown rule error")
	}
	p, err := New(KindAggressive, newRNG(1), Options{Focus: agents.ActionRest})
	if err != nil {
		t.Fatalf("aggressive: %v", err)
	}
	if p.(*Aggressive).Focus != agents.ActionRest {
		t.Fatalf("expected configured focus, got=%q", p.(*Aggressive).Focus)
	}
}
