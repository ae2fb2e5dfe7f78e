// Package noiseosc implements the single drum voice: white and pink noise
// tables plus a pitched square element whose frequency falls during the
// transient, driven by six presets (loud/quiet kick, snare, hi-hat).
package noiseosc

import (
	"math/rand"

	"github.com/cbegin/chiptune-mml/internal/envelope"
	"github.com/cbegin/chiptune-mml/internal/tuning"
)

type Kind int

const (
	Kick Kind = iota
	Snare
	HiHat
	KickQuiet
	SnareQuiet
	HiHatQuiet
	Rest
	End
)

const whiteLen = 9999
const squareLen = 4096

type NoiseKind int

const (
	NoiseWhite NoiseKind = iota
	NoisePink
)

// Preset holds the tunables for one of the six drum kinds.
type Preset struct {
	AttackFrames, PeakFrames, DecayFrames int
	PeakLevel                             float64
	BaseFreq                              float64
	PitchTransientFrames                  int
	PitchStartLevel                       float64
	PitchFallRatio                        float64
	Noise                                 NoiseKind
}

// DefaultPresets returns the factory drum-preset table, used both to
// initialize a new NoiseOscillator and to service RESETDRUMS.
func DefaultPresets() [6]Preset {
	return [6]Preset{
		Kick:       {AttackFrames: 5, PeakFrames: 20, DecayFrames: 8800, PeakLevel: 0.95, BaseFreq: 150, PitchTransientFrames: 1500, PitchStartLevel: 1, PitchFallRatio: 8, Noise: NoiseWhite},
		Snare:      {AttackFrames: 5, PeakFrames: 20, DecayFrames: 6600, PeakLevel: 0.9, BaseFreq: 330, PitchTransientFrames: 900, PitchStartLevel: 0.7, PitchFallRatio: 6, Noise: NoiseWhite},
		HiHat:      {AttackFrames: 2, PeakFrames: 10, DecayFrames: 4400, PeakLevel: 0.85, BaseFreq: 2400, PitchTransientFrames: 400, PitchStartLevel: 0.4, PitchFallRatio: 4, Noise: NoisePink},
		KickQuiet:  {AttackFrames: 5, PeakFrames: 20, DecayFrames: 8800, PeakLevel: 0.45, BaseFreq: 150, PitchTransientFrames: 1500, PitchStartLevel: 1, PitchFallRatio: 8, Noise: NoiseWhite},
		SnareQuiet: {AttackFrames: 5, PeakFrames: 20, DecayFrames: 6600, PeakLevel: 0.4, BaseFreq: 330, PitchTransientFrames: 900, PitchStartLevel: 0.7, PitchFallRatio: 6, Noise: NoiseWhite},
		HiHatQuiet: {AttackFrames: 2, PeakFrames: 10, DecayFrames: 4400, PeakLevel: 0.35, BaseFreq: 2400, PitchTransientFrames: 400, PitchStartLevel: 0.4, PitchFallRatio: 4, Noise: NoisePink},
	}
}

// NoiseOscillator is the single drum voice.
type NoiseOscillator struct {
	Presets [6]Preset

	SquareLevel float64
	NoiseLevel  float64
	Gain        float64
	BeefUp      float64

	whiteTable  [whiteLen]float64
	pinkTable   [whiteLen]float64
	squareTable [squareLen]float64

	envelope envelope.Envelope

	kind       Kind
	preset     Preset
	noisePhase float64
	pitchPhase float64
	pitchFall  float64
	pitchLevel float64
	resting    bool
}

// New builds a drum voice with freshly generated noise tables.
func New() *NoiseOscillator {
	n := &NoiseOscillator{Presets: DefaultPresets(), SquareLevel: 1, NoiseLevel: 1, Gain: 1}
	for i := range n.whiteTable {
		n.whiteTable[i] = rand.Float64()*2 - 1
	}
	generatePink(n.pinkTable[:])
	for i := range n.squareTable {
		if i < squareLen/2 {
			n.squareTable[i] = 0.85
		} else {
			n.squareTable[i] = -0.85
		}
	}
	return n
}

// generatePink fills buf with pink noise via Paul Kellet's 3-pole economy
// method.
func generatePink(buf []float64) {
	var b0, b1, b2 float64
	for i := range buf {
		white := rand.Float64()*2 - 1
		b0 = 0.99765*b0 + white*0.0990460
		b1 = 0.96300*b1 + white*0.2965164
		b2 = 0.57000*b2 + white*1.0526913
		pink := b0 + b1 + b2 + white*0.1848
		buf[i] = pink * 0.11
	}
}

// NoteOn selects a preset and starts a fresh drum hit.
func (n *NoiseOscillator) NoteOn(kind Kind) {
	n.kind = kind
	idx := int(kind)
	if idx < 0 || idx > 5 {
		return
	}
	n.preset = n.Presets[idx]
	n.noisePhase = 0
	n.pitchPhase = 0
	n.pitchFall = 0
	n.pitchLevel = n.preset.PitchStartLevel
	n.envelope = envelope.Envelope{
		Attack:      n.preset.AttackFrames,
		Peak:        n.preset.PeakFrames,
		Decay:       n.preset.DecayFrames,
		PeakLevel:   n.preset.PeakLevel,
		SustainLevel: 0,
	}
	n.envelope.NoteOn()
	n.resting = false
}

// SetToRest forces the drum voice's envelope into release.
func (n *NoiseOscillator) SetToRest() {
	n.resting = true
	n.envelope.Rest()
}

// ReleaseFinished reports whether the drum voice has finished decaying.
func (n *NoiseOscillator) ReleaseFinished() bool {
	return n.envelope.ReleaseFinished()
}

// Advance produces the next sample and advances internal state.
func (n *NoiseOscillator) Advance() float64 {
	env := n.envelope.Advance()

	n.noisePhase += 1
	for n.noisePhase >= whiteLen {
		n.noisePhase -= whiteLen
	}
	idx := int(n.noisePhase)

	var noiseVal float64
	if n.preset.Noise == NoisePink {
		noiseVal = n.pinkTable[idx]
	} else {
		noiseVal = n.whiteTable[idx]
	}

	freq := n.preset.BaseFreq + n.pitchFall
	if freq < 1 {
		freq = 1
	}
	n.pitchPhase += squareLen * freq / tuning.SampleRate
	for n.pitchPhase >= squareLen {
		n.pitchPhase -= squareLen
	}
	sqIdx := int(n.pitchPhase)
	squareVal := n.squareTable[sqIdx] * n.pitchLevel

	if n.preset.PitchTransientFrames > 0 {
		target := -n.preset.BaseFreq / n.preset.PitchFallRatio
		step := target / float64(n.preset.PitchTransientFrames)
		n.pitchFall += step
		if n.pitchFall < target {
			n.pitchFall = target
		}
		n.pitchLevel -= n.preset.PitchStartLevel / float64(n.preset.PitchTransientFrames)
		if n.pitchLevel < 0 {
			n.pitchLevel = 0
		}
	} else {
		n.pitchLevel = 0
	}

	out := (noiseVal*n.NoiseLevel + squareVal*n.SquareLevel) * n.Gain * env
	if n.BeefUp > 0 {
		if out > 0.99 {
			out = 0.99
		} else if out < -0.99 {
			out = -0.99
		}
	}
	return out
}
