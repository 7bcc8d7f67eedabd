// Package scoring grades a simulated semester: the midterm and final exam
// checkpoints, the weighted total score, its letter grade and grade points.
package scoring

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/semester-sim/internal/agents"
)

// Result is the final grading of a semester.
type Result struct {
	Midterm    float64 `json:"midterm"`
	Final      float64 `json:"final"`
	TotalScore float64 `json:"total_score"`
	Letter     string  `json:"grade"`
	GPA        float64 `json:"gpa"`
}

// Scorer turns checkpoint knowledge into exam scores and a final grade.
// Implementations may fail on degenerate inputs; the semester runner
// recovers from any error.
type Scorer interface {
	Midterm(a *agents.Agent, rng *rand.Rand) (float64, error)
	Final(a *agents.Agent, rng *rand.Rand) (float64, error)
	Grade(midterm, final, knowledge float64) (Result, error)
}

// Standard is the game's grading scheme. Exam scores blend knowledge with
// the agent's state on exam day plus a small random bonus.
type Standard struct{}

// examScore is the shared exam-day score: a rounded blend of attributes
// plus a uniform bonus in [6,10].
func examScore(a *agents.Agent, rng *rand.Rand) (float64, error) {
	base := math.Round(a.Knowledge*0.55 + float64(a.Mood)*0.2 + float64(a.Energy)*0.1 + float64(a.Intelligence)*0.2)
	if math.IsNaN(base) || math.IsInf(base, 0) {
		return 0, fmt.Errorf("exam base %v: %w", base, agents.ErrDegenerate)
	}
	return base + 6 + float64(rng.Intn(5)), nil
}

// Midterm implements Scorer. Midterms reward knowledge a little more.
func (Standard) Midterm(a *agents.Agent, rng *rand.Rand) (float64, error) {
	exam, err := examScore(a, rng)
	if err != nil {
		return 0, err
	}
	return math.Round(exam + a.Knowledge*0.25), nil
}

// Final implements Scorer. Finals are five points harder.
func (Standard) Final(a *agents.Agent, rng *rand.Rand) (float64, error) {
	exam, err := examScore(a, rng)
	if err != nil {
		return 0, err
	}
	return exam - 5, nil
}

// Grade implements Scorer. The weighted total is curved through a square
// root; a negative weighted total has no curve and is reported degenerate.
func (Standard) Grade(midterm, final, knowledge float64) (Result, error) {
	weighted := midterm*0.4 + final*0.4 + knowledge*0.2
	if weighted < 0 || math.IsNaN(weighted) || math.IsInf(weighted, 0) {
		return Result{}, fmt.Errorf("weighted total %v: %w", weighted, agents.ErrDegenerate)
	}
	total := math.Max(0, math.Round(math.Sqrt(weighted)*15.5-55))
	letter := Letter(total)
	return Result{
		Midterm:    midterm,
		Final:      final,
		TotalScore: total,
		Letter:     letter,
		GPA:        GradePoints(letter),
	}, nil
}

var letterCutoffs = []struct {
	min    float64
	letter string
	points float64
}{
	{90, "A+", 4.3},
	{85, "A", 4.0},
	{80, "A-", 3.7},
	{77, "B+", 3.3},
	{73, "B", 3.0},
	{70, "B-", 2.7},
	{67, "C+", 2.3},
	{63, "C", 2.0},
	{60, "C-", 1.7},
}

// Letter maps a total score to its letter grade.
func Letter(total float64) string {
	for _, c := range letterCutoffs {
		if total >= c.min {
			return c.letter
		}
	}
	return "F"
}

// GradePoints maps a letter grade to grade points; unknown letters are 0.
func GradePoints(letter string) float64 {
	for _, c := range letterCutoffs {
		if c.letter == letter {
			return c.points
		}
	}
	return 0
}
