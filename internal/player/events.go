package player

import "github.com/cbegin/chiptune-mml/internal/mml"

// applyMelodicEvent mutates channel i's oscillator/state for one scheduled
// event, per the type taxonomy in internal/mml/types.go (mirroring
// spec.md §6's external event table).
func (p *Player) applyMelodicEvent(i int, ev mml.Event) {
	o := p.osc[i]
	cs := &p.ch[i]
	switch ev.Type {
	case mml.EvtGain:
		cs.gain = float64(ev.Param) / 20
		o.Gain = cs.gain
	case mml.EvtGainUp:
		cs.gain += 0.05
		if cs.gain > 1 {
			cs.gain = 1
		}
		o.Gain = cs.gain
	case mml.EvtGainDown:
		cs.gain -= 0.05
		if cs.gain < 0 {
			cs.gain = 0
		}
		o.Gain = cs.gain
	case mml.EvtWaveform:
		o.TableID = ev.Param
	case mml.EvtWaveFlip:
		o.YFlip = !o.YFlip
	case mml.EvtAttackTime:
		o.Envelope.Attack = msToFrames(float64(ev.Param))
	case mml.EvtPeakTime:
		o.Envelope.Peak = msToFrames(float64(ev.Param))
	case mml.EvtDecayTime:
		o.Envelope.Decay = msToFrames(float64(ev.Param))
	case mml.EvtReleaseTime:
		o.Envelope.Release = msToFrames(float64(ev.Param))
	case mml.EvtPeakLevel:
		o.Envelope.PeakLevel = float64(ev.Param) / 100
	case mml.EvtSustainLevel:
		o.Envelope.SustainLevel = float64(ev.Param) / 100
	case mml.EvtLFOOn:
		o.LFO.Enabled = ev.Param != 0
	case mml.EvtLFORange:
		cs.lfoRangeCents = float64(ev.Param)
		o.LFO.RangeCents = cs.lfoRangeCents
	case mml.EvtLFOSpeed:
		cs.lfoSpeedHz = float64(ev.Param)
		o.LFO.SpeedHz = cs.lfoSpeedHz
	case mml.EvtLFOWait:
		cs.lfoWaitMs = float64(ev.Param)
		o.LFO.WaitMs = cs.lfoWaitMs
	case mml.EvtAstroOn:
		o.Astro.Enabled = true
		o.Astro.CPS = float64(ev.Param)
	case mml.EvtAstroOff:
		o.Astro.Enabled = false
	case mml.EvtFallStart:
		o.Fall.Active = true
		o.Fall.SpeedCPS = cs.fallSpeed
		o.Fall.WaitMs = cs.fallWait
		o.Fall.Start()
	case mml.EvtFallSpeed:
		cs.fallSpeed = float64(ev.Param)
	case mml.EvtFallWait:
		cs.fallWait = float64(ev.Param)
	case mml.EvtRiseStart:
		o.Rise.Active = true
		o.Rise.SpeedCPS = cs.riseSpeed
		o.Rise.RangeCents = cs.riseRange
		o.Rise.Start()
	case mml.EvtRiseSpeed:
		cs.riseSpeed = float64(ev.Param)
	case mml.EvtRiseRange:
		cs.riseRange = float64(ev.Param)
	case mml.EvtBeefUp:
		if ev.Param <= 0 {
			o.BeefUp = 0
		} else {
			o.BeefUp = 1 + 3*float64(ev.Param)/100
		}
	case mml.EvtRingModOn:
		target := ev.Param - 1
		if target >= 0 && target < 9 && target != i {
			cs.ringTarget = target
			p.osc[target].RingMuted = true
		}
	case mml.EvtRingModOff:
		if cs.ringTarget >= 0 {
			p.osc[cs.ringTarget].RingMuted = false
			cs.ringTarget = -1
		}
	case mml.EvtDefaultTone:
		p.applyTonePreset(i, presetDefault)
	case mml.EvtPresetBeep:
		p.applyTonePreset(i, presetBeep)
	case mml.EvtPresetPoppy:
		p.applyTonePreset(i, presetPoppy)
	case mml.EvtPresetPoppyV:
		p.applyTonePreset(i, presetPoppyVib)
	case mml.EvtPresetBell:
		p.applyTonePreset(i, presetBell)
	}
}
