// Weekly actions. Each action computes a truncated integer growth term from
// the current attributes, turns it into raw deltas scaled by degree, and only
// then clamps. Truncation happens before clamping; changing that order shifts
// outcomes at boundary values.
package agents

import (
	"fmt"
	"math"
)

// Effect holds the raw, unclamped attribute deltas an action would produce.
type Effect struct {
	Mood      int
	Energy    int
	Social    int
	Knowledge float64
}

// Project returns the vitals that would result from adding e to v without
// clamping. Lookahead uses this to see attributes about to go negative.
func (e Effect) Project(v Vitals) Vitals {
	return Vitals{
		Mood:      v.Mood + e.Mood,
		Energy:    v.Energy + e.Energy,
		Social:    v.Social + e.Social,
		Knowledge: v.Knowledge + e.Knowledge,
	}
}

// Effect computes the raw deltas of doing action at the given degree. It
// does not touch the agent.
func (a Agent) Effect(action Action, degree float64) (Effect, error) {
	if math.IsNaN(degree) || math.IsInf(degree, 0) || degree <= 0 {
		return Effect{}, fmt.Errorf("%s degree %v: %w", action, degree, ErrDegenerate)
	}

	I := float64(a.Intelligence)
	M := float64(a.Mood)
	E := float64(a.Energy)
	S := float64(a.Social)

	switch action {
	case ActionStudy:
		growth := int(I*0.11 + M*0.05 + E*0.08 + S*0.03)
		g := float64(growth)
		return Effect{
			Mood:      -int(g * 0.8 * degree),
			Energy:    -int(g*0.5*degree) - 3,
			Knowledge: float64(growth+1) * degree,
		}, nil

	case ActionRest:
		growth := int((100-E)*0.15 + (100-M)*0.02 + (I-50)*0.2 - (S-30)*0.01)
		g := float64(growth)
		return Effect{
			Mood:      int(g * 0.6 * degree),
			Energy:    int(g * degree),
			Knowledge: 2,
		}, nil

	case ActionPlayGame:
		growth := int((100-M)*0.2 + (I-30)*0.02 + E*0.01 - S*0.01)
		g := float64(growth)
		return Effect{
			Mood:      int(g * degree),
			Energy:    int(g * 0.2 * degree),
			Knowledge: 1,
		}, nil

	case ActionSocialize:
		growth := int((S-30)*0.1 + (M-50)*0.03 + E*0.01)
		g := float64(growth)
		return Effect{
			Mood:      int(4 * degree),
			Energy:    -int(5 * degree),
			Social:    int(g * degree),
			Knowledge: 4,
		}, nil
	}

	return Effect{}, fmt.Errorf("%q: %w", action, ErrUnknownAction)
}

// Do applies action at the given degree and clamps every attribute into
// [0,100]. On error the agent is left unchanged.
func (a *Agent) Do(action Action, degree float64) error {
	eff, err := a.Effect(action, degree)
	if err != nil {
		return err
	}
	a.apply(eff)
	return nil
}

func (a *Agent) apply(e Effect) {
	a.Mood = clampInt(a.Mood + e.Mood)
	a.Energy = clampInt(a.Energy + e.Energy)
	a.Social = clampInt(a.Social + e.Social)
	a.Knowledge = clampFloat(a.Knowledge + e.Knowledge)
}

// Study spends the week studying.
func (a *Agent) Study(degree float64) error { return a.Do(ActionStudy, degree) }

// Rest spends the week recovering energy and mood.
func (a *Agent) Rest(degree float64) error { return a.Do(ActionRest, degree) }

// PlayGame spends the week gaming.
func (a *Agent) PlayGame(degree float64) error { return a.Do(ActionPlayGame, degree) }

// Socialize spends the week with friends.
func (a *Agent) Socialize(degree float64) error { return a.Do(ActionSocialize, degree) }
