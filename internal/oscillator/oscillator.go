// Package oscillator implements a single melodic voice: a wavetable phase
// accumulator integrating an ADSR envelope, an LFO, an Astro modulator,
// Fall/Rise pitch glides, a pop-guard cross-fade at note starts, and an
// optional beef-up soft-knee pre-gain.
package oscillator

import (
	"github.com/cbegin/chiptune-mml/internal/astro"
	"github.com/cbegin/chiptune-mml/internal/envelope"
	"github.com/cbegin/chiptune-mml/internal/glide"
	"github.com/cbegin/chiptune-mml/internal/lfo"
	"github.com/cbegin/chiptune-mml/internal/softclip"
	"github.com/cbegin/chiptune-mml/internal/tuning"
	"github.com/cbegin/chiptune-mml/internal/wavetable"
)

const popGuardFrames = 60
const historyStride = 8

// Oscillator is one of the nine melodic voices.
type Oscillator struct {
	Envelope envelope.Envelope
	LFO      lfo.LFO
	Astro    astro.Astro
	Fall     glide.Fall
	Rise     glide.Rise

	TableID    int
	Gain       float64
	Detune     float64
	YFlip      bool
	BeefUp     float64 // 0 disables; else pre-gain factor (1 + 3*v/100)
	Muted      bool // enabled/silenced
	RingMuted  bool // auto-muted because it feeds a ring-mod target

	bank  *wavetable.Bank
	phase float64
	freq  float64
	increment float64

	popGuardCount int
	lastOut       float64

	historyCount int
	history      []float64

	resting bool
}

// New creates an oscillator backed by the shared wavetable bank.
func New(bank *wavetable.Bank) *Oscillator {
	return &Oscillator{bank: bank, Gain: 1, TableID: wavetable.Sine}
}

// SetNewNote arms the voice for a new note at freq, resetting the per-note
// modulators and the pop-guard cross-fade.
func (o *Oscillator) SetNewNote(freq float64) {
	o.freq = freq
	o.recomputeIncrement(freq)
	o.Envelope.NoteOn()
	o.LFO.NoteOn()
	o.Astro.NoteOn()
	o.Fall.NoteOn()
	o.Rise.NoteOn()
	o.resting = false
	o.popGuardCount = popGuardFrames
}

// SetToRest releases the current note into the envelope's release phase.
func (o *Oscillator) SetToRest() {
	o.resting = true
	o.Envelope.Rest()
}

func (o *Oscillator) recomputeIncrement(freq float64) {
	o.increment = wavetable.Length * (freq + o.Detune) / tuning.SampleRate
}

// ReleaseFinished reports whether the voice's envelope has fully decayed
// after a rest, i.e. it is contributing silence.
func (o *Oscillator) ReleaseFinished() bool {
	return o.Envelope.ReleaseFinished()
}

// Advance produces the next sample and advances all internal state by one
// frame.
func (o *Oscillator) Advance() float64 {
	table := o.bank.Table(o.TableID)
	n := float64(len(table))

	o.phase += o.increment
	for o.phase >= n {
		o.phase -= n
	}
	for o.phase < 0 {
		o.phase += n
	}

	adjusted := o.freq
	if o.Astro.Enabled {
		adjusted = o.Astro.Process(o.freq)
		if o.Astro.StateChanged {
			o.recomputeIncrement(adjusted)
		}
	}
	if o.Fall.Active {
		adjusted = o.Fall.Process(adjusted)
		o.recomputeIncrement(adjusted)
	}
	if o.Rise.Active {
		adjusted = o.Rise.Process(adjusted)
		o.recomputeIncrement(adjusted)
	} else if o.LFO.Enabled && !o.Astro.Enabled {
		adjusted = o.LFO.Process(o.freq)
		if adjusted < 10 {
			adjusted = 10
		}
		o.recomputeIncrement(adjusted)
	}

	env := o.Envelope.Advance()

	idx := int(o.phase)
	if idx >= len(table) {
		idx = len(table) - 1
	}
	sample := table[idx]
	if o.YFlip {
		sample = -sample
	}
	out := sample * env

	if o.BeefUp > 0 {
		out = softclip.VoiceBeefUp.Compress(out * o.BeefUp)
	}
	out *= o.Gain

	if o.popGuardCount > 0 {
		weight := float64(o.popGuardCount) / popGuardFrames
		out = weight*o.lastOut + (1-weight)*out
		o.popGuardCount--
	}
	o.lastOut = out

	o.historyCount++
	if o.historyCount >= historyStride {
		o.historyCount = 0
		o.history = append(o.history, out)
		if len(o.history) > 256 {
			o.history = o.history[len(o.history)-256:]
		}
	}

	if out > 0.99 {
		out = 0.99
	} else if out < -0.99 {
		out = -0.99
	}
	return out
}

// Output returns the last sample computed by Advance (taken before
// Advance's final ±0.99 clamp) without advancing state; used by ring modulation to read another voice's current output
// within the same frame.
func (o *Oscillator) Output() float64 { return o.lastOut }

// Silent reports whether the voice should be excluded from the main mix
// (explicitly muted, silenced, or auto-muted as a ring-mod feeder).
func (o *Oscillator) Silent() bool { return o.Muted || o.RingMuted }

// MeterHistory returns recent output samples (one every eighth frame, at
// most 256) for metering/visualization.
func (o *Oscillator) MeterHistory() []float64 { return o.history }
