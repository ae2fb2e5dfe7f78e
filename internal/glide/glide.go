// Package glide implements the melodic voice's one-shot pitch glides: Fall
// (a downward octave slide armed by a ',' token) and Rise (an upward octave
// slide armed by a '*' token).
package glide

import (
	"math"

	"github.com/cbegin/chiptune-mml/internal/tuning"
)

const maxOctaveTravel = 8
const minFreq = 20.0

// Fall is a monotonic downward pitch glide, one-shot per note.
type Fall struct {
	Active    bool
	SpeedCPS  float64 // cents/sec; Start converts it to octaves per frame
	WaitMs    float64

	waitFrames   int
	waitPos      int
	octTraveled  float64
	deltaPerFrm  float64
	started      bool
}

// Start arms the glide for the current note.
func (f *Fall) Start() {
	f.started = true
	f.waitPos = 0
	f.octTraveled = 0
	f.waitFrames = int(tuning.SampleRate * f.WaitMs / 1000)
	f.deltaPerFrm = (f.SpeedCPS / 1200.0) / tuning.SampleRate
}

// NoteOn clears any in-progress glide (Fall is one-shot per note).
func (f *Fall) NoteOn() {
	f.started = false
	f.octTraveled = 0
	f.waitPos = 0
}

// Process returns the glided frequency for the current sample.
func (f *Fall) Process(freq float64) float64 {
	if !f.started {
		return freq
	}
	if f.waitPos < f.waitFrames {
		f.waitPos++
		return freq
	}
	f.octTraveled += f.deltaPerFrm
	if f.octTraveled > maxOctaveTravel {
		f.octTraveled = maxOctaveTravel
	}
	out := freq * math.Pow(2, -f.octTraveled)
	if out < minFreq {
		out = minFreq
	}
	return out
}

// Rise is a one-shot upward pitch glide that begins deviated above target
// and decays to zero deviation.
type Rise struct {
	Active        bool
	SpeedCPS      float64 // cents/sec decay rate
	RangeCents    float64

	deviation   float64
	deltaPerFrm float64
	started     bool
}

// Start arms the glide for the current note.
func (r *Rise) Start() {
	r.started = true
	r.deviation = r.RangeCents / 1200.0
	r.deltaPerFrm = (r.SpeedCPS / 1200.0) / tuning.SampleRate
}

// NoteOn clears any in-progress glide (Rise is one-shot per note).
func (r *Rise) NoteOn() {
	r.started = false
	r.deviation = 0
}

// Process returns the glided frequency for the current sample.
func (r *Rise) Process(freq float64) float64 {
	if !r.started {
		return freq
	}
	if r.deviation > 0 {
		r.deviation -= r.deltaPerFrm
		if r.deviation < 0 {
			r.deviation = 0
		}
	}
	return freq * math.Pow(2, r.deviation)
}
