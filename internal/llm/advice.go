// Package llm writes study advice and run bulletins. Advice is a persona
// read, learning-style tips and next-step micro-actions for one player.
// Both use Haiku when configured and fall back to local heuristics.
// Nothing here feeds back into a player's decisions.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/semester-sim/internal/agents"
	"github.com/talgya/semester-sim/internal/engine"
)

// Advice sources.
const (
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
)

// Advice is generated advice text.
type Advice struct {
	Week   int    `json:"week"` // 0 for end-of-semester advice
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Snapshot is what advice is written from.
type Snapshot struct {
	Archetype string
	Week      int
	Mood      int
	Energy    int
	Social    int
	Knowledge float64
	Counts    map[agents.Action]int

	// End of semester only.
	GPA     float64
	Grade   string
	Midterm float64
	Final   float64
}

// WeeklySnapshot builds the snapshot after week from a result that kept its
// weekly log.
func WeeklySnapshot(r engine.Result, week int) (Snapshot, error) {
	if week < 1 || week > len(r.Weekly) {
		return Snapshot{}, fmt.Errorf("week %d not in log of %d weeks", week, len(r.Weekly))
	}
	w := r.Weekly[week-1]
	return Snapshot{
		Archetype: r.Archetype,
		Week:      week,
		Mood:      w.Mood,
		Energy:    w.Energy,
		Social:    w.Social,
		Knowledge: w.Knowledge,
		Counts:    countActions(r.Actions, week),
	}, nil
}

// FinalSnapshot builds the end-of-semester snapshot. Vitals are only known
// when the weekly log was kept.
func FinalSnapshot(r engine.Result) Snapshot {
	s := Snapshot{
		Archetype: r.Archetype,
		Knowledge: r.Knowledge,
		Counts:    countActions(r.Actions, len(r.Actions)),
		GPA:       r.GPA,
		Grade:     r.Grade,
		Midterm:   r.Midterm,
		Final:     r.Final,
	}
	if n := len(r.Weekly); n > 0 {
		last := r.Weekly[n-1]
		s.Mood, s.Energy, s.Social = last.Mood, last.Energy, last.Social
	}
	return s
}

func countActions(actions []agents.Action, until int) map[agents.Action]int {
	counts := make(map[agents.Action]int, len(agents.AllActions))
	for i, a := range actions {
		if i >= until {
			break
		}
		counts[a]++
	}
	return counts
}

const adviceSystem = `You are a warm, practical study and wellbeing coach inside a campus life game.
Write plain prose and short bullet lists. Never output JSON or code.`

// WeeklyAdvice writes advice for s. A disabled client or a failed call
// yields heuristic advice; the error is only logged.
func WeeklyAdvice(ctx context.Context, c *Client, s Snapshot) Advice {
	if c.Enabled() {
		text, err := c.Complete(ctx, adviceSystem, weeklyPrompt(s), 400)
		if err == nil && strings.TrimSpace(text) != "" {
			return Advice{Week: s.Week, Text: text, Source: SourceLLM}
		}
		slog.Debug("weekly advice fell back to heuristics", "error", err)
	}
	return Advice{Week: s.Week, Text: HeuristicWeekly(s), Source: SourceHeuristic}
}

// FinalAdvice writes end-of-semester advice for s.
func FinalAdvice(ctx context.Context, c *Client, s Snapshot) Advice {
	if c.Enabled() {
		text, err := c.Complete(ctx, adviceSystem, finalPrompt(s), 500)
		if err == nil && strings.TrimSpace(text) != "" {
			return Advice{Text: text, Source: SourceLLM}
		}
		slog.Debug("final advice fell back to heuristics", "error", err)
	}
	return Advice{Text: HeuristicFinal(s), Source: SourceHeuristic}
}

func weeklyPrompt(s Snapshot) string {
	return fmt.Sprintf(`Write three short sections for a player after week %d of 16:
1) A gentle personality read (30-60 words).
2) Their likely learning style and 2-3 concrete strategies.
3) Three micro-actions for next week, each under 12 words.

Character: %s
Current state: mood %d, energy %d, social %d, knowledge %.2f
Actions so far: study %d, rest %d, socialize %d, play_game %d`,
		s.Week, s.Archetype, s.Mood, s.Energy, s.Social, s.Knowledge,
		s.Counts[agents.ActionStudy], s.Counts[agents.ActionRest],
		s.Counts[agents.ActionSocialize], s.Counts[agents.ActionPlayGame])
}

func finalPrompt(s Snapshot) string {
	return fmt.Sprintf(`Write three short sections summing up a finished semester:
1) A personality summary (50-80 words, positive and neutral).
2) Learning style and the three best strategies.
3) Three micro-actions for the next two weeks, each under 12 words.

Character: %s
GPA %.2f (%s), midterm %.0f, final %.0f
Final state: mood %d, energy %d, social %d, knowledge %.0f
Actions: study %d, rest %d, socialize %d, play_game %d`,
		s.Archetype, s.GPA, s.Grade, s.Midterm, s.Final,
		s.Mood, s.Energy, s.Social, s.Knowledge,
		s.Counts[agents.ActionStudy], s.Counts[agents.ActionRest],
		s.Counts[agents.ActionSocialize], s.Counts[agents.ActionPlayGame])
}

// HeuristicWeekly is the local weekly advice.
func HeuristicWeekly(s Snapshot) string {
	study, rest := s.Counts[agents.ActionStudy], s.Counts[agents.ActionRest]
	social, play := s.Counts[agents.ActionSocialize], s.Counts[agents.ActionPlayGame]

	var persona string
	switch {
	case study >= max(rest, social, play):
		persona = "You are goal-driven and answer pressure with a plan."
	case social > study:
		persona = "People recharge you; group work and discussion keep you moving."
	case rest > study:
		persona = "You value your own rhythm and come back stronger after a break."
	default:
		persona = "You like to stay flexible; variety keeps your curiosity alive."
	}

	var style []string
	if s.Knowledge < 35 && study >= 3 {
		style = append(style, "Visual learning: map the week's goals on one page")
	}
	if s.Social >= 60 {
		style = append(style, "Social learning: quiz a friend or read together")
	}
	if s.Energy < 50 {
		style = append(style, "Pomodoro with real breaks: 25 on, 5 off")
	}
	if s.Mood < 50 {
		style = append(style, "Warm up: write down three things you are grateful for")
	}
	if len(style) == 0 {
		style = append(style, "Learn by doing: try the problems first, then review notes")
	}

	micro := []string{
		"List three small goals you can finish",
		"Thirty focused minutes of study every day",
		"Plan one short meetup or workout",
	}
	return render("Personality", persona, "Learning style", style, "Next week", micro, "")
}

// HeuristicFinal is the local end-of-semester advice.
func HeuristicFinal(s Snapshot) string {
	var persona string
	switch {
	case s.GPA >= 3.8:
		persona = "You are steady and demanding of yourself, and you keep moving toward your goals."
	case s.GPA >= 3.2:
		persona = "You balance flexibility with discipline and adjust your pace to reality."
	default:
		persona = "You value experience and exploration; simple, sustainable habits will carry you further."
	}

	var style []string
	if s.Counts[agents.ActionStudy] >= 6 {
		style = append(style, "Visual notes: chapter trees and keyword cards")
	}
	if s.Social >= 70 {
		style = append(style, "Peer teaching: take turns explaining problems")
	}
	if s.Energy < 55 {
		style = append(style, "Sleep first: a fixed sleep window and a morning routine")
	}
	if s.Mood < 55 {
		style = append(style, "Mood reset: three minutes of breathing and journaling")
	}
	if len(style) == 0 {
		style = append(style, "Practice first, then tidy up your notes")
	}

	micro := []string{
		"Two 45-minute deep-practice sessions a week",
		"A one-page mind map of the week",
		"One workout or social outing to recharge",
	}
	footer := fmt.Sprintf("(GPA %.2f | Mid %.0f | Final %.0f)", s.GPA, s.Midterm, s.Final)
	return render("Personality summary", persona, "Learning style", style, "Next two weeks", micro, footer)
}

func render(personaTitle, persona, styleTitle string, style []string, microTitle string, micro []string, footer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n\n%s:\n", personaTitle, persona, styleTitle)
	for _, s := range style {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	fmt.Fprintf(&b, "\n%s:\n", microTitle)
	for _, m := range micro {
		fmt.Fprintf(&b, "- %s\n", m)
	}
	if footer != "" {
		fmt.Fprintf(&b, "\n%s\n", footer)
	}
	return strings.TrimRight(b.String(), "\n")
}
