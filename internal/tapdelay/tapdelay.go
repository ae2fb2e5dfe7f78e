// Package tapdelay implements the mandatory stereo tap delay mixed into
// the player's master bus: two feedback-free ring buffers per side, a
// first tap and an echo tap, read index leading write index by one slot.
package tapdelay

import "github.com/cbegin/chiptune-mml/internal/tuning"

// Line is one side (left or right) of the tap delay.
type Line struct {
	buf1, buf2     []float64
	wi1, ri1       int
	wi2, ri2       int
	gain1, gain2   float64
}

// New creates a tap delay line with first-tap time t1Ms and echo-tap time
// t2Ms (both in milliseconds), and a first-tap gain; the echo tap gain is
// fixed at 0.4 of the first-tap gain per spec.
func New(t1Ms, t2Ms, gain float64) *Line {
	b1 := frames(t1Ms)
	b2 := frames(t2Ms)
	l := &Line{
		buf1:  make([]float64, b1),
		buf2:  make([]float64, b2),
		gain1: gain,
		gain2: 0.4 * gain,
	}
	// read index leads write index by one slot.
	l.ri1 = 1 % len(l.buf1)
	l.ri2 = 1 % len(l.buf2)
	return l
}

func frames(ms float64) int {
	n := int(tuning.SampleRate * ms / 1000)
	if n < 2 {
		n = 2
	}
	return n
}

// SetGain updates the first-tap gain (and derived echo-tap gain) without
// reallocating the buffers.
func (l *Line) SetGain(gain float64) {
	l.gain1 = gain
	l.gain2 = 0.4 * gain
}

// Update writes x into the delay and returns the mixed tap output.
func (l *Line) Update(x float64) float64 {
	l.buf1[l.wi1] = x
	out1 := l.buf1[l.ri1]
	l.buf2[l.wi2] = out1
	out2 := l.buf2[l.ri2]

	l.wi1 = (l.wi1 + 1) % len(l.buf1)
	l.ri1 = (l.ri1 + 1) % len(l.buf1)
	l.wi2 = (l.wi2 + 1) % len(l.buf2)
	l.ri2 = (l.ri2 + 1) % len(l.buf2)

	return min1(out1*l.gain1) + min1(out2*l.gain2)
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Clear zeroes both ring buffers, leaving the read/write cursor offsets
// untouched.
func (l *Line) Clear() {
	for i := range l.buf1 {
		l.buf1[i] = 0
	}
	for i := range l.buf2 {
		l.buf2[i] = 0
	}
}

// TotalFrames returns the longer of the two tap delays, used by the player
// to compute the song's release-tail safety pad.
func (l *Line) TotalFrames() int {
	if len(l.buf2) > len(l.buf1) {
		return len(l.buf2)
	}
	return len(l.buf1)
}
