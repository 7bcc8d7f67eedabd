package engine

import (
	"log/slog"
	"math/rand"

	"github.com/talgya/semester-sim/internal/agents"
	"github.com/talgya/semester-sim/internal/policy"
	"github.com/talgya/semester-sim/internal/scoring"
)

// Actor applies an action to an agent. The default is (*agents.Agent).Do.
type Actor func(a *agents.Agent, action agents.Action, degree float64) error

// WeekLog is the post-action snapshot of one simulated week.
type WeekLog struct {
	Week      int           `json:"week"`
	State     string        `json:"state"`
	Action    agents.Action `json:"action"`
	Mood      int           `json:"mood"`
	Energy    int           `json:"energy"`
	Social    int           `json:"social"`
	Knowledge float64       `json:"knowledge"`
	Fallback  bool          `json:"fallback,omitempty"` // action failed, rest substituted
}

// Result is the outcome of one agent's semester.
type Result struct {
	Index      int                 `json:"index"`
	Archetype  string              `json:"archetype"`
	Policy     string              `json:"policy"`
	Midterm    float64             `json:"midterm"`
	Final      float64             `json:"final"`
	TotalScore float64             `json:"total_score"`
	Grade      string              `json:"grade"`
	GPA        float64             `json:"gpa"`
	Knowledge  float64             `json:"knowledge"` // at the end of the last week
	Actions    []agents.Action     `json:"actions"`
	Weekly     []WeekLog           `json:"weekly,omitempty"`
	States     []policy.Transition `json:"transitions,omitempty"`
	Fallbacks  int                 `json:"fallbacks,omitempty"`
	Degenerate bool                `json:"degenerate,omitempty"` // a scoring call failed
}

// Semester runs single agents through the schedule.
type Semester struct {
	Actions []agents.Action
	Degree  float64
	Scorer  scoring.Scorer
	Actor   Actor
}

// NewSemester creates a semester with the full action set, degree 1, the
// standard scorer and the agent's own Do.
func NewSemester() *Semester {
	return &Semester{
		Actions: agents.AllActions,
		Degree:  1,
		Scorer:  scoring.Standard{},
		Actor:   (*agents.Agent).Do,
	}
}

// Run plays a full semester for a and returns its result. It always
// completes all TotalWeeks weeks: failing actions are replaced by rest and
// failing scoring calls leave a zero score with Degenerate set.
func (s *Semester) Run(index int, a *agents.Agent, pol policy.Policy, rng *rand.Rand) Result {
	res := Result{
		Index:     index,
		Archetype: a.Archetype,
		Policy:    pol.Name(),
		Actions:   make([]agents.Action, 0, TotalWeeks),
		Weekly:    make([]WeekLog, 0, TotalWeeks),
	}

	var midterm float64
	for i := 0; i < TotalWeeks; i++ {
		week := a.Week + 1
		entry := s.step(a, pol, week)
		res.Actions = append(res.Actions, entry.Action)
		res.Weekly = append(res.Weekly, entry)
		if entry.Fallback {
			res.Fallbacks++
		}
		a.Week++

		switch week {
		case MidtermWeek:
			m, err := s.Scorer.Midterm(a, rng)
			if err != nil {
				slog.Debug("midterm scoring failed", "index", index, "error", err)
				res.Degenerate = true
			}
			midterm = m
		case FinalWeek:
			s.grade(&res, a, midterm, rng)
		}
	}

	res.Knowledge = a.Knowledge
	if m, ok := pol.(*policy.StateMachine); ok {
		res.States = m.Stats().History
	}
	return res
}

func (s *Semester) step(a *agents.Agent, pol policy.Policy, week int) WeekLog {
	action := pol.Choose(a, s.Actions, week)
	fallback := false
	if err := s.Actor(a, action, s.Degree); err != nil {
		slog.Debug("action failed, resting instead", "week", week, "action", action, "error", err)
		action = agents.ActionRest
		fallback = true
		// Rest at degree 1 has no failure mode.
		_ = a.Do(agents.ActionRest, 1)
	}

	state := pol.Name()
	if m, ok := pol.(*policy.StateMachine); ok {
		state = string(m.Current)
	}
	return WeekLog{
		Week:      week,
		State:     state,
		Action:    action,
		Mood:      a.Mood,
		Energy:    a.Energy,
		Social:    a.Social,
		Knowledge: a.Knowledge,
		Fallback:  fallback,
	}
}

func (s *Semester) grade(res *Result, a *agents.Agent, midterm float64, rng *rand.Rand) {
	final, err := s.Scorer.Final(a, rng)
	if err != nil {
		slog.Debug("final scoring failed", "index", res.Index, "error", err)
		res.Degenerate = true
	}
	g, err := s.Scorer.Grade(midterm, final, a.Knowledge)
	if err != nil {
		slog.Debug("grading failed", "index", res.Index, "error", err)
		res.Degenerate = true
		g = scoring.Result{Midterm: midterm, Final: final, Letter: "F"}
	}
	res.Midterm = g.Midterm
	res.Final = g.Final
	res.TotalScore = g.TotalScore
	res.Grade = g.Letter
	res.GPA = g.GPA
}
