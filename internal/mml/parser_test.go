package mml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1 from the engine's scenario catalog: a single quarter note at 120bpm.
func TestParseMiddleCQuarterNote(t *testing.T) {
	song, err := Parse("@g TEMPO=120 DELAY=OFF LOOP=OFF @1 L4 C")
	require.NoError(t, err)

	ch := song.Channels[0]
	require.Len(t, ch.Notes, 2) // the note, plus the End sentinel
	assert.InDelta(t, 261.626, ch.Notes[0].Freq, 0.01)
	// base = round(44100*7.5/120) = 2756, measure = 32*2756 = 88192.
	assert.Equal(t, 22048, ch.Notes[0].Length)
	assert.Equal(t, int64(22048), ch.TotalFrames)
	assert.True(t, ch.Notes[1].Freq < 0)

	for i := 1; i < 9; i++ {
		assert.Empty(t, song.Channels[i].Notes[:len(song.Channels[i].Notes)-1])
	}
	assert.Empty(t, song.Drum.Notes[:len(song.Drum.Notes)-1])
}

// S2: a [3 ...] tuplet fixes the whole block at measure/3 frames and divides
// it evenly across its three notes, the division remainder absorbed by the
// first slot.
func TestParseTupletTriplet(t *testing.T) {
	song, err := Parse("@g TEMPO=120 LOOP=OFF @1 [3 CEG]")
	require.NoError(t, err)

	ch := song.Channels[0]
	require.GreaterOrEqual(t, len(ch.Notes), 3)
	assert.InDelta(t, 261.626, ch.Notes[0].Freq, 0.01)
	assert.InDelta(t, 329.628, ch.Notes[1].Freq, 0.01)
	assert.InDelta(t, 391.995, ch.Notes[2].Freq, 0.01)

	var total int
	for _, n := range ch.Notes {
		if n.Freq >= 0 {
			total += n.Length
		}
	}
	// measure = 88192; 88192/3 = 29397, split as 3 x 9799 with remainder 0.
	assert.Equal(t, 29397, total)
	assert.Equal(t, 9799, ch.Notes[0].Length)
}

// S3: nested repeat blocks expand textually before note parsing.
func TestParseNestedRepeat(t *testing.T) {
	song, err := Parse("@1 {2 C{3 D}E}")
	require.NoError(t, err)

	ch := song.Channels[0]
	var letters []float64
	for _, n := range ch.Notes {
		if n.Freq >= 0 {
			letters = append(letters, n.Freq)
		}
	}
	// C D D D E C D D D E -> 10 notes.
	require.Len(t, letters, 10)
	cFreq, dFreq, eFreq := letters[0], letters[1], letters[4]
	assert.Equal(t, []float64{cFreq, dFreq, dFreq, dFreq, eFreq, cFreq, dFreq, dFreq, dFreq, eFreq}, letters)
}

// S4: a rest preceding the first note leaves zero audible frames before it.
func TestParseRestThenNote(t *testing.T) {
	song, err := Parse("@1 L4 :C")
	require.NoError(t, err)

	ch := song.Channels[0]
	require.GreaterOrEqual(t, len(ch.Notes), 2)
	assert.True(t, ch.Notes[0].Freq == 65535.0)
	assert.Equal(t, 22048, ch.Notes[0].Length)
}

// S6: a four-hit drum bar.
func TestParseDrumBar(t *testing.T) {
	song, err := Parse("@g TEMPO=120 LOOP=OFF @d L4 KSHS")
	require.NoError(t, err)

	var kinds []int
	var frame int64
	var atFrames []int64
	for _, n := range song.Drum.Notes {
		if n.Kind == DrumEnd {
			continue
		}
		kinds = append(kinds, n.Kind)
		atFrames = append(atFrames, frame)
		frame += int64(n.Length)
	}
	assert.Equal(t, []int{DrumKick, DrumSnare, DrumHiHat, DrumSnare}, kinds)
	assert.Equal(t, []int64{0, 22048, 44096, 66144}, atFrames)
	assert.Equal(t, int64(88192), song.Drum.TotalFrames)
}

func TestParseEmptyTupletIsNoOp(t *testing.T) {
	song, err := Parse("@1 [4 ]C")
	require.NoError(t, err)
	ch := song.Channels[0]
	require.GreaterOrEqual(t, len(ch.Notes), 1)
	assert.True(t, ch.Notes[0].Freq > 0)
}

func TestParseEmptyRepeatIsNoOp(t *testing.T) {
	song, err := Parse("@1 {3 }C")
	require.NoError(t, err)
	ch := song.Channels[0]
	require.GreaterOrEqual(t, len(ch.Notes), 1)
	assert.True(t, ch.Notes[0].Freq > 0)
}

func TestParseEmptySourceHasZeroFrames(t *testing.T) {
	song, err := Parse("")
	require.NoError(t, err)
	for _, ch := range song.Channels {
		assert.Equal(t, int64(0), ch.TotalFrames)
	}
	assert.Equal(t, int64(0), song.Drum.TotalFrames)
}
