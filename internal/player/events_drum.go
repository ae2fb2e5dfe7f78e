package player

import (
	"github.com/cbegin/chiptune-mml/internal/mml"
	"github.com/cbegin/chiptune-mml/internal/noiseosc"
)

// applyDrumEvent mutates the single drum voice's presets/gain for one
// scheduled drum-channel event.
func (p *Player) applyDrumEvent(ev mml.Event) {
	n := p.noise
	switch ev.Type {
	case mml.EvtDrumGain:
		p.drumGain = float64(ev.Param) / 20
	case mml.EvtDrumGainUp:
		p.drumGain += 0.05
		if p.drumGain > 1 {
			p.drumGain = 1
		}
	case mml.EvtDrumGainDown:
		p.drumGain -= 0.05
		if p.drumGain < 0 {
			p.drumGain = 0
		}
	case mml.EvtResetDrums:
		n.Presets = noiseosc.DefaultPresets()
	case mml.EvtKickPitch:
		setPitch(n, noiseosc.Kick, noiseosc.KickQuiet, ev.Param)
	case mml.EvtSnarePitch:
		setPitch(n, noiseosc.Snare, noiseosc.SnareQuiet, ev.Param)
	case mml.EvtHiHatPitch:
		setPitch(n, noiseosc.HiHat, noiseosc.HiHatQuiet, ev.Param)
	case mml.EvtDrumBeefUp:
		n.BeefUp = float64(ev.Param) / 100
	case mml.EvtWhiteNoise:
		setAllNoiseKind(n, noiseosc.NoiseWhite)
	case mml.EvtPinkNoise:
		setAllNoiseKind(n, noiseosc.NoisePink)
	case mml.EvtKickNoiseKind:
		setKindNoise(n, noiseosc.Kick, noiseosc.KickQuiet, ev.Param)
	case mml.EvtSnareNoiseKind:
		setKindNoise(n, noiseosc.Snare, noiseosc.SnareQuiet, ev.Param)
	case mml.EvtHiHatNoiseKind:
		setKindNoise(n, noiseosc.HiHat, noiseosc.HiHatQuiet, ev.Param)
	case mml.EvtKickLength:
		setLength(n, noiseosc.Kick, noiseosc.KickQuiet, ev.Param)
	case mml.EvtSnareLength:
		setLength(n, noiseosc.Snare, noiseosc.SnareQuiet, ev.Param)
	case mml.EvtHiHatLength:
		setLength(n, noiseosc.HiHat, noiseosc.HiHatQuiet, ev.Param)
	case mml.EvtSquareLevel:
		n.SquareLevel = float64(ev.Param) / 100
	case mml.EvtNoiseLevel:
		n.NoiseLevel = float64(ev.Param) / 100
	}
}

// setPitch scales a drum kind's base frequency by param (0-100, 50 is
// neutral), applied identically to the loud and quiet variants of the
// same kind.
func setPitch(n *noiseosc.NoiseOscillator, loud, quiet noiseosc.Kind, param int) {
	factor := 0.5 + float64(param)/100
	base := noiseosc.DefaultPresets()
	l := n.Presets[loud]
	l.BaseFreq = base[loud].BaseFreq * factor
	n.Presets[loud] = l
	q := n.Presets[quiet]
	q.BaseFreq = base[quiet].BaseFreq * factor
	n.Presets[quiet] = q
}

func setLength(n *noiseosc.NoiseOscillator, loud, quiet noiseosc.Kind, paramMs int) {
	frames := msToFrames(float64(paramMs))
	l := n.Presets[loud]
	l.DecayFrames = frames
	n.Presets[loud] = l
	q := n.Presets[quiet]
	q.DecayFrames = frames
	n.Presets[quiet] = q
}

func setKindNoise(n *noiseosc.NoiseOscillator, loud, quiet noiseosc.Kind, param int) {
	kind := noiseosc.NoiseWhite
	if param == 1 {
		kind = noiseosc.NoisePink
	}
	l := n.Presets[loud]
	l.Noise = kind
	n.Presets[loud] = l
	q := n.Presets[quiet]
	q.Noise = kind
	n.Presets[quiet] = q
}

func setAllNoiseKind(n *noiseosc.NoiseOscillator, kind noiseosc.NoiseKind) {
	for i := range n.Presets {
		n.Presets[i].Noise = kind
	}
}
