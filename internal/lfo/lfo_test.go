package lfo

import (
	"math"
	"testing"
)

func TestLFOWaitHoldsFrequencyUnchanged(t *testing.T) {
	l := &LFO{WaitMs: 10, RangeCents: 100, SpeedHz: 5}
	l.NoteOn()
	waitFrames := int(44100 * 10.0 / 1000)
	for i := 0; i < waitFrames; i++ {
		out := l.Process(440)
		if out != 440 {
			t.Fatalf("frame %d: expected unmodulated 440, got %f", i, out)
		}
	}
}

func TestLFOSweepsAfterWait(t *testing.T) {
	l := &LFO{WaitMs: 0, RangeCents: 1200, SpeedHz: 1}
	l.NoteOn()
	var sawNonUnity bool
	for i := 0; i < 44100; i++ {
		out := l.Process(440)
		if math.Abs(out-440) > 0.5 {
			sawNonUnity = true
		}
	}
	if !sawNonUnity {
		t.Fatal("expected LFO sweep to deviate from base frequency")
	}
}

func TestLFOZeroSpeedStaysAtWaitExit(t *testing.T) {
	l := &LFO{WaitMs: 0, RangeCents: 1200, SpeedHz: 0}
	l.NoteOn()
	first := l.Process(440)
	for i := 0; i < 1000; i++ {
		out := l.Process(440)
		if out != first {
			t.Fatalf("expected constant output with zero speed, got %f then %f", first, out)
		}
	}
}
