// Package tuning holds the fixed-point reference pitch and frame timing
// constants the rest of the engine is built against. All timing in this
// module assumes a 44.1 kHz sample rate, per spec.
package tuning

import "math"

const SampleRate = 44100

// semitoneOffsets maps a note letter to its semitone offset from C.
var semitoneOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// c0Freq is the reference frequency for tone number 0: C0 = 220*2^(3/12)*2^-4.
var c0Freq = 220 * math.Pow(2, 3.0/12.0) * math.Pow(2, -4)

// ToneNumber computes the tone index for a note letter, accidental shift
// (+1 per '#', -1 per 'b') and octave: semitone + 12*octave.
func ToneNumber(letter byte, accidental int, octave int) (int, bool) {
	base, ok := semitoneOffsets[letter]
	if !ok {
		return 0, false
	}
	return base + accidental + 12*octave, true
}

// Frequency returns the frequency in Hz for tone number t: C0 * 2^(t/12).
func Frequency(tone int) float64 {
	return c0Freq * math.Pow(2, float64(tone)/12.0)
}

// BaseFrameLength returns the length, in frames, of a 32nd note at the given
// tempo (quarter notes per minute): round(sampleRate * 7.5 / tempo).
func BaseFrameLength(tempo int) int {
	if tempo <= 0 {
		tempo = 120
	}
	return int(math.Round(SampleRate * 7.5 / float64(tempo)))
}

// MeasureFrames returns the frame length of a whole measure (32 base units).
func MeasureFrames(base int) int { return 32 * base }

// QuarterFrames returns the frame length of a quarter note (8 base units).
func QuarterFrames(base int) int { return 8 * base }

// RestFrequency is the sentinel frequency meaning "rest" in a melodic note.
const RestFrequency = 65535.0

// IsRest reports whether a note frequency is the rest sentinel.
func IsRest(freq float64) bool { return freq == RestFrequency }

// IsEnd reports whether a note frequency is the channel-termination sentinel.
func IsEnd(freq float64) bool { return freq < 0 }
