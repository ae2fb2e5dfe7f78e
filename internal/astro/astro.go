// Package astro implements the square-wave octave-toggle pitch modulator
// ("Astro") evocative of early arcade sound: it flips a voice's frequency
// between its base and double on a fixed-rate square cycle.
package astro

import "github.com/cbegin/chiptune-mml/internal/tuning"

// Astro toggles a voice's output frequency between freq and 2*freq at a
// configurable rate.
type Astro struct {
	Enabled bool
	CPS     float64 // cycles per second, clamped to [1,100] by the caller

	frameCount  int
	cycleFrames int
	doubled     bool
	// StateChanged is true only on the samples where the toggle flips,
	// signalling the oscillator to recompute its phase increment.
	StateChanged bool
}

// NoteOn resets the toggle phase for a new note.
func (a *Astro) NoteOn() {
	a.frameCount = 0
	a.doubled = false
	cps := a.CPS
	if cps < 1 {
		cps = 1
	}
	if cps > 100 {
		cps = 100
	}
	a.cycleFrames = int(tuning.SampleRate / cps)
	if a.cycleFrames < 2 {
		a.cycleFrames = 2
	}
}

// Process returns freq or 2*freq depending on the current toggle state and
// advances the internal frame counter.
func (a *Astro) Process(freq float64) float64 {
	a.StateChanged = false
	switch a.frameCount {
	case 0:
		a.doubled = false
		a.StateChanged = true
	case a.cycleFrames / 2:
		a.doubled = true
		a.StateChanged = true
	}
	a.frameCount++
	if a.frameCount >= a.cycleFrames {
		a.frameCount = 0
	}
	if a.doubled {
		return 2 * freq
	}
	return freq
}
