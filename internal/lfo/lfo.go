// Package lfo implements the melodic voice's low-frequency pitch
// modulator: a wait-then-sweep contract over a 4096-sample sine table.
package lfo

import (
	"math"

	"github.com/cbegin/chiptune-mml/internal/tuning"
)

const tableLen = 4096

var sineTable = buildSineTable()

func buildSineTable() []float64 {
	t := make([]float64, tableLen)
	for i := range t {
		t[i] = math.Sin(2 * math.Pi * float64(i) / tableLen)
	}
	return t
}

// LFO is a sine-table pitch modulator with a wait period before the sweep
// begins, matching the MML LFO= / LFOWAIT= / LFORANGE= / LFOSPEED= tags.
type LFO struct {
	Enabled    bool
	WaitMs     float64
	RangeCents float64
	SpeedHz    float64

	waitPos int
	phase   float64
	waitLen int
}

// NoteOn resets the wait counter and sweep phase for a new note.
func (l *LFO) NoteOn() {
	l.waitPos = 0
	l.phase = 0
	l.waitLen = int(tuning.SampleRate * l.WaitMs / 1000)
}

// Process returns the modulated frequency for the current sample and
// advances the LFO's internal phase. While waiting, freq passes through
// unchanged.
func (l *LFO) Process(freq float64) float64 {
	if l.waitPos < l.waitLen {
		l.waitPos++
		return freq
	}
	idx := int(l.phase)
	if idx >= tableLen {
		idx = tableLen - 1
	}
	cents := sineTable[idx] * l.RangeCents
	out := freq * math.Pow(2, cents/1200)
	l.phase += tableLen * l.SpeedHz / tuning.SampleRate
	for l.phase >= tableLen {
		l.phase -= tableLen
	}
	return out
}
