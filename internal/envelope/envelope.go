// Package envelope implements the per-voice ADSR amplitude contour shared
// by every melodic oscillator: attack/peak/decay/sustain/release expressed
// in frames, driven one sample at a time by the audio thread.
package envelope

// Envelope is a linear ADSR contour. Times are in frames (at 44.1 kHz);
// levels are in [0,1].
type Envelope struct {
	Attack, Peak, Decay, Release int
	PeakLevel, SustainLevel      float64
	// ForceSilenceAtStart, when set, makes a fresh release phase output 0
	// immediately instead of ramping down from SustainLevel.
	ForceSilenceAtStart bool

	envPos, relPos       int
	adFinished, rFinish  bool
	resting              bool
}

// NoteOn resets the attack/decay/sustain phase for a new note.
func (e *Envelope) NoteOn() {
	e.envPos = 0
	e.adFinished = false
	e.relPos = 0
	e.rFinish = false
	e.resting = false
}

// Rest transitions the envelope into its release phase.
func (e *Envelope) Rest() {
	e.resting = true
}

// Resting reports whether the envelope is currently in its release phase.
func (e *Envelope) Resting() bool { return e.resting }

// Advance produces the next envelope sample and advances internal position.
func (e *Envelope) Advance() float64 {
	if !e.resting {
		return e.advanceAD()
	}
	return e.advanceRelease()
}

func (e *Envelope) advanceAD() float64 {
	switch {
	case e.envPos < e.Attack:
		var out float64
		if e.Attack > 0 {
			out = e.PeakLevel * float64(e.envPos) / float64(e.Attack)
		} else {
			out = e.PeakLevel
		}
		e.envPos++
		return out
	case e.envPos < e.Attack+e.Peak:
		e.envPos++
		return e.PeakLevel
	case e.envPos < e.Attack+e.Peak+e.Decay:
		d := e.envPos - e.Attack - e.Peak
		var out float64
		if e.Decay > 0 {
			out = e.PeakLevel + (e.SustainLevel-e.PeakLevel)*float64(d)/float64(e.Decay)
		} else {
			out = e.SustainLevel
		}
		e.envPos++
		return out
	default:
		e.adFinished = true
		return e.SustainLevel
	}
}

func (e *Envelope) advanceRelease() float64 {
	if e.ForceSilenceAtStart {
		return 0
	}
	if e.relPos < e.Release {
		var out float64
		if e.Release > 0 {
			out = e.SustainLevel * (1 - float64(e.relPos)/float64(e.Release))
		}
		e.relPos++
		return out
	}
	e.rFinish = true
	return 0
}

// ReleaseFinished reports whether the release phase has reached silence.
func (e *Envelope) ReleaseFinished() bool {
	return e.resting && (e.rFinish || e.ForceSilenceAtStart)
}
