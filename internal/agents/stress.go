// Stress condenses attribute deficits into a single [0,1]
// pressure reading. Only the stress-driven transition rule consumes it.
package agents

// examPressureWeeks amplify the knowledge component of stress.
var examPressureWeeks = map[int]bool{7: true, 8: true, 14: true, 15: true}

// Stress returns the composite stress level for the given week, in [0,1].
// Energy and mood start contributing below 40, social below 30, and knowledge
// below a target that rises by two points per week.
func (a *Agent) Stress(week int) float64 {
	energy := deficit(40, float64(a.Energy))
	mood := deficit(40, float64(a.Mood))
	social := deficit(30, float64(a.Social))

	target := 30 + float64(week)*2
	knowledge := deficit(target, a.Knowledge)
	if examPressureWeeks[week] {
		knowledge *= 1.5
	}

	total := (energy + mood + social + knowledge) / 4
	if total > 1 {
		return 1
	}
	return total
}

// deficit is the relative shortfall of v below floor, zero when v >= floor.
func deficit(floor, v float64) float64 {
	if floor <= 0 || v >= floor {
		return 0
	}
	return (floor - v) / floor
}
