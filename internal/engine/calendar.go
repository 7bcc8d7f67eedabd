// Package engine runs simulated semesters: one agent under one policy for
// sixteen weeks with two scored checkpoints, repeated across a population.
package engine

import "fmt"

// Semester schedule. Weeks are numbered 1..TotalWeeks; the midterm is sat
// at the end of MidtermWeek and the final at the end of FinalWeek.
const (
	TotalWeeks  = 16
	MidtermWeek = 7
	FinalWeek   = 14
)

// Phase is where a run sits in the semester.
type Phase uint8

const (
	PhaseInit Phase = iota
	PhaseFirstHalf
	PhaseMidterm
	PhaseSecondHalf
	PhaseFinal
	PhaseWindDown
	PhaseTerminal
)

var phaseNames = [...]string{"init", "first_half", "midterm", "second_half", "final", "wind_down", "terminal"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// PhaseOf returns the phase a run is in while playing week. Week 0 is the
// pre-game state; anything past TotalWeeks is terminal.
func PhaseOf(week int) Phase {
	switch {
	case week <= 0:
		return PhaseInit
	case week < MidtermWeek:
		return PhaseFirstHalf
	case week == MidtermWeek:
		return PhaseMidterm
	case week < FinalWeek:
		return PhaseSecondHalf
	case week == FinalWeek:
		return PhaseFinal
	case week <= TotalWeeks:
		return PhaseWindDown
	default:
		return PhaseTerminal
	}
}

// WeekLabel returns a human-readable label for week.
func WeekLabel(week int) string {
	switch PhaseOf(week) {
	case PhaseInit:
		return "Orientation"
	case PhaseMidterm:
		return fmt.Sprintf("Week %d (midterm)", week)
	case PhaseFinal:
		return fmt.Sprintf("Week %d (final)", week)
	case PhaseTerminal:
		return "Semester over"
	default:
		return fmt.Sprintf("Week %d", week)
	}
}
