package scoring

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/semester-sim/internal/agents"
)

func TestExamScoresInRange(t *testing.T) {
	s := Standard{}
	a := &agents.Agent{Intelligence: 80, Mood: 60, Energy: 50, Knowledge: 40}
	// base = round(22 + 12 + 5 + 16) = 55
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		mid, err := s.Midterm(a, rng)
		if err != nil {
			t.Fatalf("midterm: %v", err)
		}
		if mid < 71 || mid > 75 {
			t.Fatalf("expected midterm in [71,75], got=%v", mid)
		}
		fin, err := s.Final(a, rng)
		if err != nil {
			t.Fatalf("final: %v", err)
		}
		if fin < 56 || fin > 60 {
			t.Fatalf("expected final in [56,60], got=%v", fin)
		}
	}
}

func TestGrade(t *testing.T) {
	s := Standard{}
	// weighted = 40 + 36 + 16 = 92; sqrt(92)*15.5-55 = 93.67 → 94
	r, err := s.Grade(100, 90, 80)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if r.TotalScore != 94 || r.Letter != "A+" || r.GPA != 4.3 {
		t.Fatalf("unexpected result: %+v", r)
	}
	r, err = s.Grade(0, 0, 0)
	if err != nil {
		t.Fatalf("grade zero: %v", err)
	}
	if r.TotalScore != 0 || r.Letter != "F" || r.GPA != 0 {
		t.Fatalf("expected clamped F, got=%+v", r)
	}
}

func TestGradeDegenerate(t *testing.T) {
	s := Standard{}
	for _, in := range [][3]float64{{-50, -50, 0}, {math.NaN(), 0, 0}, {math.Inf(1), 0, 0}} {
		if _, err := s.Grade(in[0], in[1], in[2]); !errors.Is(err, agents.ErrDegenerate) {
			t.Fatalf("%v: expected ErrDegenerate, got=%v", in, err)
		}
	}
}

func TestLetterCutoffs(t *testing.T) {
	cases := map[float64]string{95: "A+", 90: "A+", 89: "A", 80: "A-", 77: "B+", 73: "B", 70: "B-", 67: "C+", 63: "C", 60: "C-", 59: "F"}
	for score, want := range cases {
		if got := Letter(score); got != want {
			t.Fatalf("score %v: expected %s, got=%s", score, want, got)
		}
	}
	if GradePoints("B") != 3.0 || GradePoints("Z") != 0 {
		t.Fatal("unexpected grade points")
	}
}
