package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/semester-sim/internal/agents"
	"github.com/talgya/semester-sim/internal/policy"
	"github.com/talgya/semester-sim/internal/scoring"
)

func newAgent(t *testing.T, archetype string) *agents.Agent {
	t.Helper()
	tpl, err := agents.Lookup(archetype)
	if err != nil {
		t.Fatalf("lookup %s: %v", archetype, err)
	}
	return tpl.NewAgent()
}

func newPolicy(t *testing.T, kind string, rng *rand.Rand) policy.Policy {
	t.Helper()
	p, err := policy.New(kind, rng, policy.Options{})
	if err != nil {
		t.Fatalf("policy %s: %v", kind, err)
	}
	return p
}

// recordingScorer wraps Standard and remembers when each checkpoint ran.
type recordingScorer struct {
	scoring.Standard
	midtermWeek, finalWeek int
	gradedKnowledge        float64
}

func (s *recordingScorer) Midterm(a *agents.Agent, rng *rand.Rand) (float64, error) {
	s.midtermWeek = a.Week
	return s.Standard.Midterm(a, rng)
}

func (s *recordingScorer) Final(a *agents.Agent, rng *rand.Rand) (float64, error) {
	s.finalWeek = a.Week
	return s.Standard.Final(a, rng)
}

func (s *recordingScorer) Grade(m, f, k float64) (scoring.Result, error) {
	s.gradedKnowledge = k
	return s.Standard.Grade(m, f, k)
}

func TestSemesterLogsEveryWeek(t *testing.T) {
	for _, kind := range policy.Kinds() {
		rng := rand.New(rand.NewSource(7))
		a := newAgent(t, agents.ArchYier)
		res := NewSemester().Run(0, a, newPolicy(t, kind, rng), rng)

		if len(res.Weekly) != TotalWeeks || len(res.Actions) != TotalWeeks {
			t.Fatalf("%s: expected %d weeks, got=%d/%d", kind, TotalWeeks, len(res.Weekly), len(res.Actions))
		}
		if a.Week != TotalWeeks {
			t.Fatalf("%s: expected agent at week %d, got=%d", kind, TotalWeeks, a.Week)
		}
		prev := 0.0
		for i, w := range res.Weekly {
			if w.Week != i+1 {
				t.Fatalf("%s: entry %d: expected week %d, got=%d", kind, i, i+1, w.Week)
			}
			if w.Action != res.Actions[i] || !w.Action.Valid() {
				t.Fatalf("%s: week %d: bad action %q", kind, w.Week, w.Action)
			}
			for _, v := range []int{w.Mood, w.Energy, w.Social} {
				if v < agents.MinAttr || v > agents.MaxAttr {
					t.Fatalf("%s: week %d: attribute out of range: %+v", kind, w.Week, w)
				}
			}
			if w.Knowledge < prev {
				t.Fatalf("%s: week %d: knowledge dropped from %v to %v", kind, w.Week, prev, w.Knowledge)
			}
			prev = w.Knowledge
		}
		if res.Knowledge != res.Weekly[TotalWeeks-1].Knowledge {
			t.Fatalf("%s: expected terminal knowledge %v, got=%v", kind, res.Weekly[TotalWeeks-1].Knowledge, res.Knowledge)
		}
		if res.GPA != scoring.GradePoints(res.Grade) {
			t.Fatalf("%s: gpa %v does not match grade %s", kind, res.GPA, res.Grade)
		}
		if res.Degenerate || res.Fallbacks != 0 {
			t.Fatalf("%s: unexpected recovery in a clean run: %+v", kind, res)
		}
	}
}

func TestSemesterCheckpointTiming(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	sc := &recordingScorer{}
	s := NewSemester()
	s.Scorer = sc
	res := s.Run(0, newAgent(t, agents.ArchBubu), newPolicy(t, policy.KindBaseline, rng), rng)

	if sc.midtermWeek != MidtermWeek {
		t.Fatalf("expected midterm after week %d, got=%d", MidtermWeek, sc.midtermWeek)
	}
	if sc.finalWeek != FinalWeek {
		t.Fatalf("expected final after week %d, got=%d", FinalWeek, sc.finalWeek)
	}
	if want := res.Weekly[FinalWeek-1].Knowledge; sc.gradedKnowledge != want {
		t.Fatalf("expected grading on week-%d knowledge %v, got=%v", FinalWeek, want, sc.gradedKnowledge)
	}
}

func TestSemesterFailingActionFallsBackToRest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := NewSemester()
	s.Actor = func(a *agents.Agent, action agents.Action, degree float64) error {
		if action == agents.ActionStudy {
			return agents.ErrDegenerate
		}
		return a.Do(action, degree)
	}
	// A study-focused aggressive player with plenty of slack picks study often.
	res := s.Run(0, newAgent(t, agents.ArchHuihui), policy.NewAggressive(rng, agents.ActionStudy), rng)

	if len(res.Weekly) != TotalWeeks {
		t.Fatalf("expected %d weeks, got=%d", TotalWeeks, len(res.Weekly))
	}
	if res.Fallbacks == 0 {
		t.Fatal("expected at least one fallback")
	}
	n := 0
	for _, w := range res.Weekly {
		if w.Action == agents.ActionStudy {
			t.Fatalf("week %d: failed study recorded as study", w.Week)
		}
		if w.Fallback {
			n++
			if w.Action != agents.ActionRest {
				t.Fatalf("week %d: expected rest fallback, got=%q", w.Week, w.Action)
			}
		}
	}
	if n != res.Fallbacks {
		t.Fatalf("expected %d fallbacks, got=%d", n, res.Fallbacks)
	}
}

type brokenScorer struct{ scoring.Standard }

func (brokenScorer) Grade(float64, float64, float64) (scoring.Result, error) {
	return scoring.Result{}, errors.New("no curve")
}

func TestSemesterDegenerateScoring(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := NewSemester()
	s.Scorer = brokenScorer{}
	res := s.Run(4, newAgent(t, agents.ArchMitao), newPolicy(t, policy.KindCasual, rng), rng)

	if !res.Degenerate {
		t.Fatal("expected degenerate flag")
	}
	if res.GPA != 0 || res.TotalScore != 0 || res.Grade != "F" {
		t.Fatalf("expected zero score, got=%+v", res)
	}
	if len(res.Weekly) != TotalWeeks || res.Index != 4 {
		t.Fatalf("expected a complete run, got %d weeks index %d", len(res.Weekly), res.Index)
	}
}

func TestSemesterStateMachineTrace(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	res := NewSemester().Run(0, newAgent(t, agents.ArchYier), newPolicy(t, policy.KindFSM, rng), rng)

	if len(res.States) != 7 {
		t.Fatalf("expected 7 calendar transitions, got=%d (%+v)", len(res.States), res.States)
	}
	for _, week := range []int{5, 6, 12, 13} {
		w := res.Weekly[week-1]
		if w.State != string(policy.StateAggressive) || w.Action != agents.ActionStudy {
			t.Fatalf("week %d: expected AGGRESSIVE/study, got=%s/%s", week, w.State, w.Action)
		}
	}
	for _, week := range []int{8, 9, 15, 16} {
		w := res.Weekly[week-1]
		if w.State != string(policy.StateCasual) || w.Action == agents.ActionStudy {
			t.Fatalf("week %d: expected CASUAL without study, got=%s/%s", week, w.State, w.Action)
		}
	}
}

func TestPhaseOf(t *testing.T) {
	cases := map[int]Phase{
		0:  PhaseInit,
		1:  PhaseFirstHalf,
		7:  PhaseMidterm,
		10: PhaseSecondHalf,
		14: PhaseFinal,
		16: PhaseWindDown,
		17: PhaseTerminal,
	}
	for week, want := range cases {
		if got := PhaseOf(week); got != want {
			t.Fatalf("week %d: expected %s, got=%s", week, want, got)
		}
	}
	if got := WeekLabel(7); got != "Week 7 (midterm)" {
		t.Fatalf("unexpected label %q", got)
	}
}
