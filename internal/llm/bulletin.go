package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/talgya/semester-sim/internal/engine"
	"github.com/talgya/semester-sim/internal/report"
)

// BulletinData holds the figures a bulletin is written from.
type BulletinData struct {
	RunID   string
	Policy  string
	Players int
	Seed    int64

	MeanGPA, StdGPA             float64
	MeanMidterm, MeanFinal      float64
	MeanKnowledge, StdKnowledge float64

	Grades  map[string]int
	Actions map[string]int

	TopPlayers    []PlayerSummary
	BottomPlayers []PlayerSummary

	Degenerate int
	Fallbacks  int
}

// PlayerSummary is one line of a leaderboard.
type PlayerSummary struct {
	Index     int
	Archetype string
	GPA       float64
	Grade     string
	Knowledge float64
}

// NewBulletinData collects the bulletin figures of a finished run.
func NewBulletinData(runID string, seed int64, sum report.Summary, results []engine.Result) *BulletinData {
	actions := make(map[string]int, len(sum.Actions))
	for a, n := range sum.Actions {
		actions[string(a)] = n
	}
	return &BulletinData{
		RunID:         runID,
		Policy:        sum.Policy,
		Players:       sum.Players,
		Seed:          seed,
		MeanGPA:       sum.GPA.Mean,
		StdGPA:        sum.GPA.StdDev,
		MeanMidterm:   sum.Midterm.Mean,
		MeanFinal:     sum.Final.Mean,
		MeanKnowledge: sum.Knowledge.Mean,
		StdKnowledge:  sum.Knowledge.StdDev,
		Grades:        sum.Grades,
		Actions:       actions,
		TopPlayers:    playerSummaries(report.Top(results, 3)),
		BottomPlayers: playerSummaries(report.Bottom(results, 3)),
		Degenerate:    sum.Degenerate,
		Fallbacks:     sum.Fallbacks,
	}
}

func playerSummaries(rs []engine.Result) []PlayerSummary {
	out := make([]PlayerSummary, len(rs))
	for i, r := range rs {
		out[i] = PlayerSummary{Index: r.Index, Archetype: r.Archetype, GPA: r.GPA, Grade: r.Grade, Knowledge: r.Knowledge}
	}
	return out
}

// Bulletin is a generated issue.
type Bulletin struct {
	GeneratedAt time.Time `json:"generated_at"`
	RunID       string    `json:"run_id"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
}

const bulletinSystem = `You are the editor of "The Campus Weekly", the student paper of a small university.
Write an upbeat end-of-semester report on how the class did: grades, study habits and who stood out.
Keep it under 300 words. Do not mention simulations, seeds or policies by name.`

// GenerateBulletin writes a bulletin for data, using Haiku when available.
func GenerateBulletin(ctx context.Context, client *Client, data *BulletinData) *Bulletin {
	if client.Enabled() {
		content, err := client.Complete(ctx, bulletinSystem, buildBulletinPrompt(data), 600)
		if err == nil && strings.TrimSpace(content) != "" {
			return &Bulletin{GeneratedAt: time.Now(), RunID: data.RunID, Content: content, Source: SourceLLM}
		}
	}
	return &Bulletin{
		GeneratedAt: time.Now(),
		RunID:       data.RunID,
		Content:     fallbackBulletin(data),
		Source:      SourceHeuristic,
	}
}

var gradeOrder = []string{"A+", "A", "A-", "B+", "B", "B-", "C+", "C", "C-", "F"}

func buildBulletinPrompt(data *BulletinData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write this semester's class report.\n\n")
	fmt.Fprintf(&b, "CLASS: %d students\n", data.Players)
	fmt.Fprintf(&b, "GPA: mean %.2f (spread %.2f)\n", data.MeanGPA, data.StdGPA)
	fmt.Fprintf(&b, "EXAMS: midterm mean %.1f, final mean %.1f\n", data.MeanMidterm, data.MeanFinal)
	fmt.Fprintf(&b, "KNOWLEDGE: mean %.1f (spread %.1f)\n\n", data.MeanKnowledge, data.StdKnowledge)

	fmt.Fprintf(&b, "GRADE DISTRIBUTION:\n")
	for _, g := range gradeOrder {
		if n := data.Grades[g]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", g, n)
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "HOW THE WEEKS WERE SPENT:\n")
	for _, a := range []string{"study", "rest", "socialize", "play_game"} {
		fmt.Fprintf(&b, "- %s: %d weeks\n", a, data.Actions[a])
	}
	b.WriteString("\n")

	if len(data.TopPlayers) > 0 {
		fmt.Fprintf(&b, "TOP OF THE CLASS:\n")
		for _, p := range data.TopPlayers {
			fmt.Fprintf(&b, "- %s #%d: GPA %.2f (%s), knowledge %.0f\n", p.Archetype, p.Index, p.GPA, p.Grade, p.Knowledge)
		}
	}
	return b.String()
}

func fallbackBulletin(data *BulletinData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "THE CAMPUS WEEKLY\n")
	fmt.Fprintf(&b, "=================\n")
	fmt.Fprintf(&b, "End of semester report, %d students\n\n", data.Players)

	fmt.Fprintf(&b, "GRADES\n")
	fmt.Fprintf(&b, "The class finished with a mean GPA of %.2f (±%.2f).\n", data.MeanGPA, data.StdGPA)
	fmt.Fprintf(&b, "Midterms averaged %.1f and finals %.1f.\n", data.MeanMidterm, data.MeanFinal)
	var dist []string
	for _, g := range gradeOrder {
		if n := data.Grades[g]; n > 0 {
			dist = append(dist, fmt.Sprintf("%s %d", g, n))
		}
	}
	if len(dist) > 0 {
		fmt.Fprintf(&b, "Distribution: %s\n", strings.Join(dist, ", "))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "STUDY HABITS\n")
	fmt.Fprintf(&b, "study %d, rest %d, socialize %d, play_game %d weeks\n\n",
		data.Actions["study"], data.Actions["rest"], data.Actions["socialize"], data.Actions["play_game"])

	if len(data.TopPlayers) > 0 {
		fmt.Fprintf(&b, "HONOR ROLL\n")
		for _, p := range data.TopPlayers {
			fmt.Fprintf(&b, "- %s #%d: GPA %.2f (%s)\n", p.Archetype, p.Index, p.GPA, p.Grade)
		}
		b.WriteString("\n")
	}

	if len(data.BottomPlayers) > 0 {
		fmt.Fprintf(&b, "OFFICE HOURS RECOMMENDED\n")
		for _, p := range data.BottomPlayers {
			fmt.Fprintf(&b, "- %s #%d: GPA %.2f (%s)\n", p.Archetype, p.Index, p.GPA, p.Grade)
		}
		b.WriteString("\n")
	}

	if data.Degenerate > 0 || data.Fallbacks > 0 {
		fmt.Fprintf(&b, "NOTICES\n")
		fmt.Fprintf(&b, "%d transcripts could not be graded; %d planned weeks turned into rest.\n", data.Degenerate, data.Fallbacks)
	}

	return strings.TrimRight(b.String(), "\n")
}
