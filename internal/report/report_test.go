package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/semester-sim/internal/agents"
	"github.com/talgya/semester-sim/internal/engine"
)

func fixture() []engine.Result {
	return []engine.Result{
		{Index: 0, Archetype: agents.ArchBubu, GPA: 3.0, TotalScore: 82, Grade: "B", Actions: []agents.Action{agents.ActionStudy, agents.ActionRest}},
		{Index: 1, Archetype: agents.ArchYier, GPA: 4.3, TotalScore: 95, Grade: "A+", Actions: []agents.Action{agents.ActionStudy, agents.ActionStudy}},
		{Index: 2, Archetype: agents.ArchBubu, GPA: 3.0, TotalScore: 84, Grade: "B", Actions: []agents.Action{agents.ActionPlayGame}},
		{Index: 3, Archetype: agents.ArchYier, GPA: 0, TotalScore: 40, Grade: "F"},
	}
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 {
		t.Fatalf("expected mean 5, got=%v", s.Mean)
	}
	// Sample deviation: sqrt(32/7).
	if math.Abs(s.StdDev-math.Sqrt(32.0/7)) > 1e-12 {
		t.Fatalf("expected sample stddev, got=%v", s.StdDev)
	}
	if s.Min != 2 || s.Max != 9 {
		t.Fatalf("unexpected range %v..%v", s.Min, s.Max)
	}
	if got := Describe([]float64{3}); got.StdDev != 0 || got.Mean != 3 {
		t.Fatalf("expected single value series, got=%+v", got)
	}
	if got := Describe(nil); got != (Series{}) {
		t.Fatalf("expected zero series, got=%+v", got)
	}
}

func TestRankings(t *testing.T) {
	rs := fixture()
	top := Top(rs, 2)
	if len(top) != 2 || top[0].Index != 1 || top[1].Index != 2 {
		t.Fatalf("unexpected top: %+v", top)
	}
	bottom := Bottom(rs, 2)
	if bottom[0].Index != 3 || bottom[1].Index != 0 {
		t.Fatalf("unexpected bottom: %+v", bottom)
	}
	if got := Top(rs, 10); len(got) != len(rs) {
		t.Fatalf("expected all results, got=%d", len(got))
	}
	if rs[0].Index != 0 {
		t.Fatal("expected input order untouched")
	}

	by := TopByArchetype(rs, 1)
	if len(by) != 2 || by[agents.ArchYier][0].Index != 1 || by[agents.ArchBubu][0].Index != 2 {
		t.Fatalf("unexpected per-archetype top: %+v", by)
	}
}

func TestCounts(t *testing.T) {
	rs := fixture()
	ac := ActionCounts(rs)
	if ac[agents.ActionStudy] != 3 || ac[agents.ActionRest] != 1 || ac[agents.ActionPlayGame] != 1 {
		t.Fatalf("unexpected action counts: %v", ac)
	}
	gc := GradeCounts(rs)
	if gc["B"] != 2 || gc["A+"] != 1 || gc["F"] != 1 {
		t.Fatalf("unexpected grade counts: %v", gc)
	}
}

func TestWriteGPACSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGPACSV(&buf, fixture()); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header + 4 rows, got=%d", len(rows))
	}
	if rows[2][1] != agents.ArchYier || rows[2][3] != "4.3" || rows[2][4] != "A+" {
		t.Fatalf("unexpected row: %v", rows[2])
	}
}

func population(t *testing.T, keepWeekly bool) *engine.Population {
	t.Helper()
	r, err := engine.NewRunner(engine.Config{Players: 6, Seed: 11, KeepWeekly: keepWeekly, Policy: "fsm"})
	if err != nil {
		t.Fatal(err)
	}
	pop, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return pop
}

func TestWeeklyJSONLRoundTrip(t *testing.T) {
	pop := population(t, true)
	var buf bytes.Buffer
	if err := WriteWeeklyJSONL(&buf, pop.Results); err != nil {
		t.Fatal(err)
	}
	recs, err := ReadWeeklyJSONL(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 6*engine.TotalWeeks {
		t.Fatalf("expected %d records, got=%d", 6*engine.TotalWeeks, len(recs))
	}
	last := recs[len(recs)-1]
	want := pop.Results[5].Weekly[engine.TotalWeeks-1]
	if last.Index != 5 || last.WeekLog != want {
		t.Fatalf("expected %+v, got=%+v", want, last)
	}
}

func TestExportDir(t *testing.T) {
	dir := t.TempDir()
	if err := ExportDir(dir, population(t, false)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, GPAFile)); err != nil {
		t.Fatalf("expected gpa file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, WeeklyFile)); !os.IsNotExist(err) {
		t.Fatalf("expected no weekly file without logs, got=%v", err)
	}

	dir = t.TempDir()
	if err := ExportDir(dir, population(t, true)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, WeeklyFile)); err != nil {
		t.Fatalf("expected weekly file: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	pop := population(t, false)
	s := Summarize(pop)
	if s.Players != 6 || s.Policy != "fsm" {
		t.Fatalf("unexpected summary header: %+v", s)
	}
	total := 0
	for _, n := range s.Actions {
		total += n
	}
	if total != 6*engine.TotalWeeks {
		t.Fatalf("expected %d actions, got=%d", 6*engine.TotalWeeks, total)
	}
}
