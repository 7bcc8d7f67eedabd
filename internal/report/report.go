// Package report summarizes finished populations: mean and spread of each
// score series, leaderboards and action mixes, plus file exports.
package report

import (
	"math"
	"sort"

	"github.com/talgya/semester-sim/internal/agents"
	"github.com/talgya/semester-sim/internal/engine"
)

// Series is the mean and sample standard deviation of one score series.
type Series struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Describe computes a Series. The deviation is zero for fewer than two values.
func Describe(xs []float64) Series {
	if len(xs) == 0 {
		return Series{}
	}
	s := Series{Min: xs[0], Max: xs[0]}
	sum := 0.0
	for _, x := range xs {
		sum += x
		s.Min = math.Min(s.Min, x)
		s.Max = math.Max(s.Max, x)
	}
	s.Mean = sum / float64(len(xs))
	if len(xs) > 1 {
		ss := 0.0
		for _, x := range xs {
			d := x - s.Mean
			ss += d * d
		}
		s.StdDev = math.Sqrt(ss / float64(len(xs)-1))
	}
	return s
}

// Summary describes a population.
type Summary struct {
	Players    int                   `json:"players"`
	Policy     string                `json:"policy"`
	Midterm    Series                `json:"midterm"`
	Final      Series                `json:"final"`
	Knowledge  Series                `json:"knowledge"`
	GPA        Series                `json:"gpa"`
	Grades     map[string]int        `json:"grades"`
	Actions    map[agents.Action]int `json:"actions"`
	Degenerate int                   `json:"degenerate"`
	Fallbacks  int                   `json:"fallbacks"`
}

// Summarize builds the summary of pop.
func Summarize(pop *engine.Population) Summary {
	st := pop.Stats
	return Summary{
		Players:    st.Players,
		Policy:     pop.Policy,
		Midterm:    Describe(st.Midterm),
		Final:      Describe(st.Final),
		Knowledge:  Describe(st.Knowledge),
		GPA:        Describe(st.GPA),
		Grades:     GradeCounts(pop.Results),
		Actions:    ActionCounts(pop.Results),
		Degenerate: st.Degenerate,
		Fallbacks:  st.Fallbacks,
	}
}

// ActionCounts tallies every action taken across results.
func ActionCounts(results []engine.Result) map[agents.Action]int {
	counts := make(map[agents.Action]int, len(agents.AllActions))
	for _, r := range results {
		for _, a := range r.Actions {
			counts[a]++
		}
	}
	return counts
}

// GradeCounts tallies letter grades.
func GradeCounts(results []engine.Result) map[string]int {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Grade]++
	}
	return counts
}

// ranked returns a copy of results ordered by GPA, then total score, then
// index. desc flips the score comparison; index always breaks ties upward.
func ranked(results []engine.Result, desc bool) []engine.Result {
	out := make([]engine.Result, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.GPA != b.GPA {
			return (a.GPA > b.GPA) == desc
		}
		if a.TotalScore != b.TotalScore {
			return (a.TotalScore > b.TotalScore) == desc
		}
		return a.Index < b.Index
	})
	return out
}

// Top returns the n best results by GPA.
func Top(results []engine.Result, n int) []engine.Result {
	return head(ranked(results, true), n)
}

// Bottom returns the n worst results by GPA, worst first.
func Bottom(results []engine.Result, n int) []engine.Result {
	return head(ranked(results, false), n)
}

// TopByArchetype returns the n best results of each archetype present.
func TopByArchetype(results []engine.Result, n int) map[string][]engine.Result {
	groups := make(map[string][]engine.Result)
	for _, r := range results {
		groups[r.Archetype] = append(groups[r.Archetype], r)
	}
	for k, g := range groups {
		groups[k] = Top(g, n)
	}
	return groups
}

func head(rs []engine.Result, n int) []engine.Result {
	if n < 0 {
		n = 0
	}
	if n < len(rs) {
		return rs[:n]
	}
	return rs
}
