package mml

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// Invariant 1 & 2 from the engine's testable-properties catalog: for any
// generated channel body, the note lengths sum to the reported total, and
// event frames are non-decreasing and bounded by that total.
func TestChannelInvariantsHoldForGeneratedSources(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tokens := []string{"C", "D", "E", "F", "G", "A", "B", ":", "<", ">", "V5", "^", "_", "L8"}
		n := rapid.IntRange(0, 24).Draw(t, "n")
		var sb strings.Builder
		sb.WriteString("@g TEMPO=120 LOOP=OFF @1 ")
		for i := 0; i < n; i++ {
			tok := rapid.SampledFrom(tokens).Draw(t, fmt.Sprintf("tok%d", i))
			sb.WriteString(tok)
		}
		song, err := Parse(sb.String())
		assert.NoError(t, err)

		ch := song.Channels[0]
		var sum int64
		for _, note := range ch.Notes {
			if note.Freq < 0 {
				continue
			}
			sum += int64(note.Length)
		}
		assert.Equal(t, ch.TotalFrames, sum)

		var last int64 = -1
		for _, ev := range ch.Events {
			assert.GreaterOrEqual(t, ev.AtFrame, last)
			assert.GreaterOrEqual(t, ev.AtFrame, int64(0))
			assert.LessOrEqual(t, ev.AtFrame, ch.TotalFrames)
			last = ev.AtFrame
		}
	})
}

// Invariant 3: a repeat block's contents appear exactly N times in sequence.
func TestRepeatBlockExpandsExactCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 9).Draw(t, "count")
		src := fmt.Sprintf("@1 {%dC}", count)
		song, err := Parse(src)
		assert.NoError(t, err)

		var notes int
		for _, n := range song.Channels[0].Notes {
			if n.Freq > 0 {
				notes++
			}
		}
		assert.Equal(t, count, notes)
	})
}

// Invariant 4: a tuplet's member note lengths sum exactly to measure/N, with
// the division remainder absorbed entirely by the first slot.
func TestTupletLengthsSumExactly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 9).Draw(t, "n")
		notes := rapid.IntRange(1, 5).Draw(t, "notes")
		letters := []string{"C", "D", "E", "F", "G"}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("@g TEMPO=120 @1 [%d", n))
		for i := 0; i < notes; i++ {
			sb.WriteString(letters[i%len(letters)])
		}
		sb.WriteString("]")
		song, err := Parse(sb.String())
		assert.NoError(t, err)

		base := 44100 * 7.5 / 120.0
		measure := int(base+0.5) * 32
		want := measure / n

		var got int
		for _, note := range song.Channels[0].Notes {
			if note.Freq > 0 {
				got += note.Length
			}
		}
		assert.Equal(t, want, got)
	})
}
