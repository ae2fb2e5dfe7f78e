package player

import "github.com/cbegin/chiptune-mml/internal/wavetable"

// tonePreset bundles the parameters the DEFAULTTONE/PRESET= macros set in
// one shot. Concrete numeric values are an implementation choice: spec.md
// names the macros but not their parameters, so these are tuned to sit
// comfortably inside the documented per-tag ranges.
type tonePreset struct {
	table               int
	attackMs, peakMs     float64
	decayMs, releaseMs   float64
	peakLevel, sustain   float64
	lfoOn                bool
	lfoRangeCents        float64
	lfoSpeedHz           float64
	lfoWaitMs            float64
}

var (
	presetDefault = tonePreset{
		table: wavetable.Sine, attackMs: 5, peakMs: 0, decayMs: 300, releaseMs: 300,
		peakLevel: 1, sustain: 0.7,
	}
	presetBeep = tonePreset{
		table: wavetable.Square, attackMs: 2, peakMs: 20, decayMs: 120, releaseMs: 80,
		peakLevel: 1, sustain: 0.8,
	}
	presetPoppy = tonePreset{
		table: wavetable.Pulse25, attackMs: 1, peakMs: 5, decayMs: 60, releaseMs: 40,
		peakLevel: 1, sustain: 0.5,
	}
	presetPoppyVib = tonePreset{
		table: wavetable.Pulse25, attackMs: 1, peakMs: 5, decayMs: 60, releaseMs: 40,
		peakLevel: 1, sustain: 0.5,
		lfoOn: true, lfoRangeCents: 40, lfoSpeedHz: 6, lfoWaitMs: 80,
	}
	presetBell = tonePreset{
		table: wavetable.HarmonicFull, attackMs: 3, peakMs: 0, decayMs: 1800, releaseMs: 1200,
		peakLevel: 1, sustain: 0.15,
	}
)
