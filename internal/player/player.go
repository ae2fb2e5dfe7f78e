// Package player implements the sample-accurate scheduler and mixer that
// drives nine melodic oscillators and one drum voice from a compiled
// mml.Song, sums them through a stereo tap delay, soft-knee compressor,
// and brick-wall limiter, and adds an independently clocked SFX bus.
package player

import (
	"sync"
	"sync/atomic"

	"github.com/cbegin/chiptune-mml/internal/mml"
	"github.com/cbegin/chiptune-mml/internal/noiseosc"
	"github.com/cbegin/chiptune-mml/internal/oscillator"
	"github.com/cbegin/chiptune-mml/internal/sfx"
	"github.com/cbegin/chiptune-mml/internal/softclip"
	"github.com/cbegin/chiptune-mml/internal/tapdelay"
	"github.com/cbegin/chiptune-mml/internal/tuning"
	"github.com/cbegin/chiptune-mml/internal/wavetable"
)

// masterOutCap is the brick-wall limit applied to the final mixed frame,
// matching spec.md §4.11's output contract (output stays within ±0.88).
const masterOutCap = 0.88

// rightDelayFactor gives the right delay side's taps a longer time than
// the left side for a ping-pong feel; spec.md §4.8 permits left/right
// delay times to differ but the MML grammar only exposes one DELAYTIME=
// value, so the asymmetry is a fixed convention rather than a tag.
const rightDelayFactor = 1.5

// echoTapFactor sets each side's second (echo) tap time relative to its
// first tap, again derived rather than independently configurable.
const echoTapFactor = 2.0

// channelState tracks the live, event-mutable parameters of one melodic
// voice that live above the oscillator itself (gain and ring-mod wiring),
// plus the glide/LFO parameters staged for the next SetNewNote.
type channelState struct {
	gain float64

	lfoRangeCents float64
	lfoSpeedHz    float64
	lfoWaitMs     float64

	fallSpeed float64
	fallWait  float64
	riseSpeed float64
	riseRange float64

	ringTarget int // -1 = ring modulation off, else the feeder channel index
}

// cursor tracks one channel's position through its compiled note/event
// streams.
type cursor struct {
	chFrame    int64
	noteIdx    int
	framesLeft int
	eventIdx   int
	armed      bool
}

// Player owns every voice and the mix path for one loaded song.
type Player struct {
	mu sync.Mutex

	song *mml.Song

	bank *wavetable.Bank
	osc  [9]*oscillator.Oscillator
	ch   [9]channelState
	cur  [9]cursor

	noise    *noiseosc.NoiseOscillator
	drumGain float64
	drumCur  cursor

	delayL, delayR *tapdelay.Line

	sfxMixer *sfx.Mixer

	framePos      int64
	songLastFrame int64

	playing      atomic.Bool
	songFinished atomic.Bool

	loopEnabled      bool
	repeatsRemaining int

	masterGain          float64
	masterVolumePercent int

	bookmark int64
}

// New creates a Player backed by the given SFX mixer, which is owned and
// loaded independently of any song (spec.md §9's composition note: SFX
// playback is orthogonal to the music player's lifecycle).
func New(sfxMixer *sfx.Mixer) *Player {
	p := &Player{
		bank:                wavetable.Shared(),
		noise:               noiseosc.New(),
		sfxMixer:            sfxMixer,
		masterGain:          0.8,
		masterVolumePercent: 80,
		delayL:              tapdelay.New(300, 600, 0),
		delayR:              tapdelay.New(450, 900, 0),
	}
	for i := range p.osc {
		p.osc[i] = oscillator.New(p.bank)
		p.ch[i] = defaultChannelState()
	}
	return p
}

func defaultChannelState() channelState {
	return channelState{gain: 0.5, ringTarget: -1, lfoRangeCents: 50, lfoSpeedHz: 5, fallSpeed: 1200, riseSpeed: 1200, riseRange: 200}
}

// LoadSong replaces the currently loaded song. The caller must have
// already paused playback (spec.md §5); LoadSong stops playback, rebuilds
// every voice's default state, primes the first note on every channel,
// and leaves the player paused at frame 0.
func (p *Player) LoadSong(song *mml.Song) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playing.Store(false)
	p.song = song

	for i := 0; i < 9; i++ {
		p.ch[i] = defaultChannelState()
		p.osc[i].Muted = false
		p.osc[i].RingMuted = false
		p.applyTonePreset(i, presetDefault)
		if song.HasInitialGain[i] {
			p.ch[i].gain = song.InitialChannelGain[i]
		}
		p.osc[i].Gain = p.ch[i].gain
		p.cur[i] = cursor{}
	}

	p.noise.Presets = noiseosc.DefaultPresets()
	p.noise.SquareLevel = 1
	p.noise.NoiseLevel = 1
	p.noise.BeefUp = 0
	p.noise.Gain = 1
	p.drumGain = 0.5
	if song.HasInitialDrumGain {
		p.drumGain = song.InitialDrumGain
	}
	p.drumCur = cursor{}

	p.loopEnabled = song.Loop
	p.repeatsRemaining = song.RepeatCount
	p.bookmark = song.Bookmark

	p.masterVolumePercent = song.MasterVolumePercent
	p.masterGain = float64(song.MasterVolumePercent) / 100

	delayMs := p.resolveDelayMs()
	delayGain := 0.0
	if song.DelayEnabled {
		delayGain = song.DelayLevel
	}
	p.delayL = tapdelay.New(delayMs, delayMs*echoTapFactor, delayGain)
	p.delayR = tapdelay.New(delayMs*rightDelayFactor, delayMs*rightDelayFactor*echoTapFactor, delayGain)

	p.primeAll()
	p.recomputeSongLength()

	p.framePos = 0
	p.songFinished.Store(false)
}

func (p *Player) resolveDelayMs() float64 {
	song := p.song
	tempo := float64(song.Tempo)
	if tempo <= 0 {
		tempo = 120
	}
	switch song.DelayTimeMode {
	case "AUTO":
		return 60000 / tempo
	case "AUTO3":
		return 20000 / tempo
	case "AUTO3L":
		return 40000 / tempo
	default:
		if song.DelayTimeMs > 0 {
			return song.DelayTimeMs
		}
		return 60000 / tempo
	}
}

// primeAll arms note 0 of every channel (melodic and drum), applying any
// events scheduled at frame 0 first, so the very first mixed frame
// already reflects note 0's armed state.
func (p *Player) primeAll() {
	for i := 0; i < 9; i++ {
		p.primeMelodic(i)
	}
	p.primeDrum()
}

func (p *Player) primeMelodic(i int) {
	c := &p.cur[i]
	*c = cursor{}
	ch := &p.song.Channels[i]
	p.applyDueMelodicEvents(i, ch)
	p.armMelodicNote(i, ch)
}

func (p *Player) primeDrum() {
	c := &p.drumCur
	*c = cursor{}
	ch := &p.song.Drum
	p.applyDueDrumEvents(ch)
	p.armDrumNote(ch)
}

func (p *Player) applyDueMelodicEvents(i int, ch *mml.Channel) {
	c := &p.cur[i]
	// Called only at note boundaries: Fall/Rise are one-shot per note, so
	// they stay armed only if an event due here starts them again.
	p.osc[i].Fall.Active = false
	p.osc[i].Rise.Active = false
	for c.eventIdx < len(ch.Events) && ch.Events[c.eventIdx].AtFrame <= c.chFrame {
		p.applyMelodicEvent(i, ch.Events[c.eventIdx])
		c.eventIdx++
	}
}

func (p *Player) applyDueDrumEvents(ch *mml.DrumChannel) {
	c := &p.drumCur
	for c.eventIdx < len(ch.Events) && ch.Events[c.eventIdx].AtFrame <= c.chFrame {
		p.applyDrumEvent(ch.Events[c.eventIdx])
		c.eventIdx++
	}
}

func (p *Player) armMelodicNote(i int, ch *mml.Channel) {
	c := &p.cur[i]
	if c.noteIdx >= len(ch.Notes) {
		c.armed = false
		return
	}
	note := ch.Notes[c.noteIdx]
	c.framesLeft = note.Length
	c.armed = true
	switch {
	case tuning.IsEnd(note.Freq):
		p.osc[i].SetToRest()
	case tuning.IsRest(note.Freq):
		p.osc[i].SetToRest()
	default:
		p.osc[i].SetNewNote(note.Freq)
		p.armMelodicModulators(i)
	}
}

// armMelodicModulators starts the one-shot Fall/Rise glides on the freshly
// armed note if an event due at the note's start armed them; Astro and LFO are
// continuous and are already restarted by SetNewNote's NoteOn calls.
func (p *Player) armMelodicModulators(i int) {
	o := p.osc[i]
	cs := &p.ch[i]
	o.LFO.RangeCents = cs.lfoRangeCents
	o.LFO.SpeedHz = cs.lfoSpeedHz
	o.LFO.WaitMs = cs.lfoWaitMs
	if o.Fall.Active {
		o.Fall.SpeedCPS = cs.fallSpeed
		o.Fall.WaitMs = cs.fallWait
		o.Fall.Start()
	}
	if o.Rise.Active {
		o.Rise.SpeedCPS = cs.riseSpeed
		o.Rise.RangeCents = cs.riseRange
		o.Rise.Start()
	}
}

func (p *Player) armDrumNote(ch *mml.DrumChannel) {
	c := &p.drumCur
	if c.noteIdx >= len(ch.Notes) {
		c.armed = false
		return
	}
	note := ch.Notes[c.noteIdx]
	c.framesLeft = note.Length
	c.armed = true
	switch note.Kind {
	case mml.DrumRest, mml.DrumEnd:
		p.noise.SetToRest()
	default:
		p.noise.NoteOn(noiseosc.Kind(note.Kind))
	}
}

func (p *Player) recomputeSongLength() {
	var max int64
	for i := 0; i < 9; i++ {
		if p.song.Channels[i].TotalFrames > max {
			max = p.song.Channels[i].TotalFrames
		}
	}
	if p.song.Drum.TotalFrames > max {
		max = p.song.Drum.TotalFrames
	}
	tail := int64(p.delayL.TotalFrames())
	if int64(p.delayR.TotalFrames()) > tail {
		tail = int64(p.delayR.TotalFrames())
	}
	p.songLastFrame = max + tail
}

// Process fills out with stereo frames (interleaved L,R float32 in
// [-masterOutCap, masterOutCap]) advancing playback one sample at a time.
// It is the audio callback's only entry point into the player.
func (p *Player) Process(out []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i+1 < len(out); i += 2 {
		if !p.playing.Load() || p.songFinished.Load() {
			// Music is halted, but the SFX bus keeps running.
			out[i] = float32(clamp(p.sfxMixer.GetOutput(0), masterOutCap))
			out[i+1] = float32(clamp(p.sfxMixer.GetOutput(1), masterOutCap))
			continue
		}
		l, r := p.step()
		out[i] = l
		out[i+1] = r
	}
}

// step mixes and advances exactly one frame, returning the final stereo
// sample.
func (p *Player) step() (float32, float32) {
	sum := p.mixVoices()

	dl := sum + p.delayL.Update(sum)
	dr := sum + p.delayR.Update(sum)

	dl *= p.masterGain
	dr *= p.masterGain

	ml := softclip.MasterBus.Compress(dl)
	mr := softclip.MasterBus.Compress(dr)

	ml += p.sfxMixer.GetOutput(0)
	mr += p.sfxMixer.GetOutput(1)

	ml = clamp(ml, masterOutCap)
	mr = clamp(mr, masterOutCap)

	p.advanceCursors()
	p.framePos++
	if p.framePos >= p.songLastFrame {
		p.onSongFrameExhausted()
	}

	return float32(ml), float32(mr)
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// mixVoices advances all nine oscillators and the drum voice unconditionally
// (ring-mod feeders must stay clocked even when excluded from the sum),
// then sums the audible ones, substituting the ring-mod product for any
// channel with ring modulation enabled.
func (p *Player) mixVoices() float64 {
	var outs [9]float64
	for i := 0; i < 9; i++ {
		outs[i] = p.osc[i].Advance()
	}
	var sum float64
	for i := 0; i < 9; i++ {
		if p.osc[i].Silent() {
			continue
		}
		v := outs[i]
		if t := p.ch[i].ringTarget; t >= 0 && t < 9 {
			v = outs[i] * outs[t]
		}
		sum += v
	}
	sum += p.noise.Advance() * p.drumGain
	return sum
}

func (p *Player) advanceCursors() {
	for i := 0; i < 9; i++ {
		p.advanceMelodicCursor(i)
	}
	p.advanceDrumCursor()
}

func (p *Player) advanceMelodicCursor(i int) {
	c := &p.cur[i]
	ch := &p.song.Channels[i]
	c.chFrame++
	if c.armed {
		c.framesLeft--
	}
	if c.armed && c.framesLeft > 0 {
		return
	}
	c.noteIdx++
	p.applyDueMelodicEvents(i, ch)
	p.armMelodicNote(i, ch)
}

func (p *Player) advanceDrumCursor() {
	c := &p.drumCur
	ch := &p.song.Drum
	c.chFrame++
	if c.armed {
		c.framesLeft--
	}
	if c.armed && c.framesLeft > 0 {
		return
	}
	c.noteIdx++
	p.applyDueDrumEvents(ch)
	p.armDrumNote(ch)
}

// onSongFrameExhausted implements spec.md §4.11's end-of-song transition:
// loop unconditionally under LOOP=ON, or re-enter the song while
// repeatsRemaining > 1 (decrementing once per re-entry) so REPEAT=N plays
// the song exactly N times in total.
func (p *Player) onSongFrameExhausted() {
	if p.loopEnabled || p.repeatsRemaining > 1 {
		if !p.loopEnabled {
			p.repeatsRemaining--
		}
		p.framePos = 0
		p.primeAll()
		return
	}
	p.songFinished.Store(true)
	p.playing.Store(false)
}

// Seek silently fast-forwards (or rewinds, by reloading and fast-forwarding
// from zero) playback to destFrame, applying every event along the way
// without producing audio, per spec.md §4.11's Seek algorithm.
func (p *Player) Seek(destFrame int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.song == nil {
		return
	}
	if destFrame < p.framePos {
		for i := 0; i < 9; i++ {
			p.cur[i] = cursor{}
		}
		p.drumCur = cursor{}
		p.framePos = 0
		p.primeAll()
	}
	for p.framePos < destFrame && p.framePos < p.songLastFrame {
		p.mixVoices()
		p.advanceCursors()
		p.framePos++
	}
}

// Start begins or resumes playback.
func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.song == nil {
		return
	}
	p.songFinished.Store(false)
	p.playing.Store(true)
}

// Pause halts playback without losing position.
func (p *Player) Pause() { p.playing.Store(false) }

// Resume continues playback from the current position.
func (p *Player) Resume() {
	if p.songFinished.Load() {
		return
	}
	p.playing.Store(true)
}

// EnableLooping turns on indefinite looping, overriding any finite repeat
// count.
func (p *Player) EnableLooping() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loopEnabled = true
}

// DisableLooping turns off indefinite looping; a finite repeat count (if
// any) still applies.
func (p *Player) DisableLooping() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loopEnabled = false
}

// Finished reports whether playback has reached the end of the song (and
// is not set to loop).
func (p *Player) Finished() bool { return p.songFinished.Load() }

// SetMasterVolume sets the overall music-bus gain as an integer percent
// (0-100), per spec.md §9's Open Question decision to keep the host API
// surface in integer percent while storing gain internally as a float.
func (p *Player) SetMasterVolume(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	p.masterVolumePercent = percent
	p.masterGain = float64(percent) / 100
}

// GetMasterVolume returns the overall music-bus gain as an integer percent.
func (p *Player) GetMasterVolume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.masterVolumePercent
}

// GetBookmark returns the frame position of the most recent %% bookmark
// marker encountered in the compiled song (SPEC_FULL §6 addition).
func (p *Player) GetBookmark() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bookmark
}

// FramePos returns the current playback position in frames.
func (p *Player) FramePos() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.framePos
}

func (p *Player) applyTonePreset(i int, pr tonePreset) {
	o := p.osc[i]
	o.TableID = pr.table
	o.Envelope.Attack = msToFrames(pr.attackMs)
	o.Envelope.Peak = msToFrames(pr.peakMs)
	o.Envelope.Decay = msToFrames(pr.decayMs)
	o.Envelope.Release = msToFrames(pr.releaseMs)
	o.Envelope.PeakLevel = pr.peakLevel
	o.Envelope.SustainLevel = pr.sustain
	o.LFO.Enabled = pr.lfoOn
	if pr.lfoOn {
		p.ch[i].lfoRangeCents = pr.lfoRangeCents
		p.ch[i].lfoSpeedHz = pr.lfoSpeedHz
		p.ch[i].lfoWaitMs = pr.lfoWaitMs
		o.LFO.RangeCents = pr.lfoRangeCents
		o.LFO.SpeedHz = pr.lfoSpeedHz
		o.LFO.WaitMs = pr.lfoWaitMs
	}
}

func msToFrames(ms float64) int {
	f := int(tuning.SampleRate*ms/1000 + 0.5)
	if f < 0 {
		f = 0
	}
	return f
}

// --- SFX passthrough, per spec.md §6: the SFX bus is loaded/controlled
// independently of song playback. ---

func (p *Player) SFXLoad(slot int, path string) (string, error) { return p.sfxMixer.Load(slot, path) }
func (p *Player) SFXStart(slot int)                             { p.sfxMixer.Start(slot) }
func (p *Player) SFXStop(slot int)                              { p.sfxMixer.Stop(slot) }
func (p *Player) SFXPause(slot int)                             { p.sfxMixer.Pause(slot) }
func (p *Player) SFXResume(slot int)                             { p.sfxMixer.Resume(slot) }
func (p *Player) SFXSetVolume(slot int, gain float64)            { p.sfxMixer.SetGain(slot, gain) }
func (p *Player) SFXSetPanning(slot int, pan float64)            { p.sfxMixer.SetPanning(slot, pan) }
func (p *Player) SFXErrorText(slot int) string                  { return p.sfxMixer.ErrorText(slot) }
