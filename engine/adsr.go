package engine

import "sort"

// ADSR holds the envelope parameters in seconds (attack, decay, release)
// and the sustain level in [0,1]. The zero value with Sustain 1 is a pure
// step gate: no interpolation, 1 while open, 0 otherwise.
type ADSR struct {
	Attack  float64 `json:"attack"`
	Decay   float64 `json:"decay"`
	Sustain float64 `json:"sustain"`
	Release float64 `json:"release"`
}

// DefaultADSR returns the instantaneous step envelope.
func DefaultADSR() ADSR {
	return ADSR{Attack: 0, Decay: 0, Sustain: 1, Release: 0}
}

// Clamp forces every parameter into its defined range. There is no
// ordering constraint between the four values.
func (a *ADSR) Clamp() {
	if a.Attack < 0 {
		a.Attack = 0
	}
	if a.Decay < 0 {
		a.Decay = 0
	}
	if a.Sustain < 0 {
		a.Sustain = 0
	}
	if a.Sustain > 1 {
		a.Sustain = 1
	}
	if a.Release < 0 {
		a.Release = 0
	}
}

// locate returns the index of the last transition with Time <= t, or -1
// if the query precedes every transition.
func locate(ts []Transition, t float64) int {
	return sort.Search(len(ts), func(i int) bool { return ts[i].Time > t }) - 1
}

// anchorOpen walks back from index i to the Open transition that anchors
// the current hold. Updates never re-anchor, so the walk skips them.
func anchorOpen(ts []Transition, i int) int {
	for ; i >= 0; i-- {
		if ts[i].Kind == GateOpen {
			return i
		}
		if ts[i].Kind == GateClose {
			return -1
		}
	}
	return -1
}

// openValue is the unscaled envelope value elapsed seconds after an Open.
func (a ADSR) openValue(elapsed float64) float64 {
	if elapsed < 0 {
		return 0
	}
	if elapsed < a.Attack {
		return elapsed / a.Attack
	}
	elapsed -= a.Attack
	if elapsed < a.Decay {
		return 1 + (a.Sustain-1)*(elapsed/a.Decay)
	}
	return a.Sustain
}

// Evaluate computes the envelope brightness in [0,1] at query time t from
// the ordered transition history. It is a pure function of its arguments:
// the same history, time, and parameters always produce the same value.
//
// Velocity sensitivity scales the result by the velocity (or CC value)
// captured at the anchoring Open, not at later Updates.
func (a ADSR) Evaluate(ts []Transition, t float64, velocitySensitive bool) float64 {
	i := locate(ts, t)
	if i < 0 {
		return 0
	}

	tr := ts[i]
	if tr.Kind == GateUpdate {
		// Timing and velocity come from the anchoring Open.
		i = anchorOpen(ts, i)
		if i < 0 {
			return 0
		}
		tr = ts[i]
	}

	switch tr.Kind {
	case GateOpen:
		return a.openValue(t-tr.Time) * velocityScale(tr.Value, velocitySensitive)

	case GateClose:
		if a.Release <= 0 {
			// Documented step: zero immediately at Close.
			return 0
		}
		open := anchorOpen(ts, i-1)
		if open < 0 {
			return 0
		}
		v0 := a.openValue(tr.Time-ts[open].Time) * velocityScale(ts[open].Value, velocitySensitive)
		frac := 1 - (t-tr.Time)/a.Release
		if frac <= 0 {
			return 0
		}
		// Linear release from whatever level held at release start, which
		// is below sustain if the gate closed mid-attack or mid-decay.
		return v0 * frac
	}
	return 0
}

// ActiveNote returns the color-reference note (or CC number) governing
// time t: the note of the last transition at or before t. During release
// this is the note recorded on the Close.
func ActiveNote(ts []Transition, t float64) (uint8, bool) {
	i := locate(ts, t)
	if i < 0 {
		return 0, false
	}
	return ts[i].Note, true
}

func velocityScale(value uint8, enabled bool) float64 {
	if !enabled {
		return 1
	}
	return float64(value) / 127
}
