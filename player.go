// Package chiptunemml is the host-facing API for the chiptune MML engine:
// load a song (from a file or inline text), control transport (start,
// pause, resume, seek, loop), adjust master volume, and drive up to 16
// independent sound-effect slots — all backed by internal/player's
// sample-accurate scheduler and internal/audio's ebiten output backend.
package chiptunemml

import (
	"fmt"
	"os"
	"sync"

	intaudio "github.com/cbegin/chiptune-mml/internal/audio"
	intlog "github.com/cbegin/chiptune-mml/internal/logging"
	intmml "github.com/cbegin/chiptune-mml/internal/mml"
	intplayer "github.com/cbegin/chiptune-mml/internal/player"
	intsfx "github.com/cbegin/chiptune-mml/internal/sfx"
	"github.com/cbegin/chiptune-mml/internal/tuning"
)

// Player is the engine's public handle: one loaded song plus the SFX bank,
// driven by a background audio output stream.
type Player struct {
	mu      sync.Mutex
	inner   *intplayer.Player
	sfx     *intsfx.Mixer
	backend *intaudio.Player
}

// NewPlayer creates a Player with its audio output already running (silent
// until a song is loaded and Start is called).
func NewPlayer() (*Player, error) {
	sfxMixer := intsfx.New(intsfx.DecodeFile())
	inner := intplayer.New(sfxMixer)

	backend, err := intaudio.NewPlayer(tuning.SampleRate, inner)
	if err != nil {
		return nil, fmt.Errorf("chiptunemml: open audio output: %w", err)
	}
	backend.Play()

	return &Player{inner: inner, sfx: sfxMixer, backend: backend}, nil
}

// LoadMusic reads MML source from path, compiles it, and loads it,
// replacing any currently playing song. Playback is paused by LoadMusic
// itself, per spec: the caller does not need to pause first.
func (p *Player) LoadMusic(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		intlog.LoadFailure(path, err)
		return fmt.Errorf("chiptunemml: read %s: %w", path, err)
	}
	return p.LoadString(string(data))
}

// LoadString compiles mmlText and loads it, replacing any currently
// playing song. The ebiten stream backend is recreated on every load: once
// a FinishingSource reports Finished(), the underlying stream reports
// io.EOF and the host player never reads from it again, so a fresh
// stream/backend pair is needed to keep producing audio for the new song.
func (p *Player) LoadString(mmlText string) error {
	song, err := intmml.Parse(mmlText)
	if err != nil {
		return fmt.Errorf("chiptunemml: parse MML: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inner.Pause()
	p.inner.LoadSong(song)

	if p.backend != nil {
		p.backend.Stop()
	}
	backend, err := intaudio.NewPlayer(tuning.SampleRate, p.inner)
	if err != nil {
		return fmt.Errorf("chiptunemml: reopen audio output: %w", err)
	}
	backend.Play()
	p.backend = backend
	return nil
}

// Start begins playback from the current position (frame 0 after a fresh
// load).
func (p *Player) Start() { p.inner.Start() }

// Pause halts playback without losing position.
func (p *Player) Pause() { p.inner.Pause() }

// Resume continues playback from the current position.
func (p *Player) Resume() { p.inner.Resume() }

// Seek silently fast-forwards or rewinds to the given frame position.
func (p *Player) Seek(frame int64) { p.inner.Seek(frame) }

// EnableLooping turns on indefinite looping, overriding any finite repeat
// count the song declared.
func (p *Player) EnableLooping() { p.inner.EnableLooping() }

// DisableLooping turns off indefinite looping.
func (p *Player) DisableLooping() { p.inner.DisableLooping() }

// Finished reports whether the loaded song has played to completion.
func (p *Player) Finished() bool { return p.inner.Finished() }

// SetMasterVolume sets the music bus volume as an integer percent
// (0-100).
func (p *Player) SetMasterVolume(percent int) { p.inner.SetMasterVolume(percent) }

// GetMasterVolume returns the music bus volume as an integer percent.
func (p *Player) GetMasterVolume() int { return p.inner.GetMasterVolume() }

// GetBookmark returns the frame position of the most recent %% marker the
// loaded song declared.
func (p *Player) GetBookmark() int64 { return p.inner.GetBookmark() }

// FramePos returns the current playback position in frames.
func (p *Player) FramePos() int64 { return p.inner.FramePos() }

// Close stops audio output and releases the backend stream.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend == nil {
		return nil
	}
	err := p.backend.Stop()
	p.backend = nil
	return err
}

// --- SFX bank: 16 independent slots, controlled orthogonally to the music
// player's transport. ---

// SFXLoad decodes the WAV or OGG-Vorbis file at path into the given slot
// (0-15). Returns the decode error text (also retrievable later via
// SFXErrorText) and the error itself.
func (p *Player) SFXLoad(slot int, path string) (string, error) {
	text, err := p.sfx.Load(slot, path)
	if err != nil {
		intlog.LoadFailure(path, err)
	}
	return text, err
}

// SFXStart begins (or restarts) playback of the given slot from position 0.
func (p *Player) SFXStart(slot int) { p.sfx.Start(slot) }

// SFXStop halts playback of the given slot and rewinds it.
func (p *Player) SFXStop(slot int) { p.sfx.Stop(slot) }

// SFXPause halts playback of the given slot without rewinding.
func (p *Player) SFXPause(slot int) { p.sfx.Pause(slot) }

// SFXResume continues playback of the given slot from its paused position.
func (p *Player) SFXResume(slot int) { p.sfx.Resume(slot) }

// SFXSetVolume sets the given slot's gain, clamped to [0,1].
func (p *Player) SFXSetVolume(slot int, gain float64) { p.sfx.SetGain(slot, gain) }

// SFXVolume returns the given slot's gain.
func (p *Player) SFXVolume(slot int) float64 { return p.sfx.Gain(slot) }

// SFXSetPanning sets the given slot's stereo panning, clamped to [0,1]
// (0=left, 1=right).
func (p *Player) SFXSetPanning(slot int, pan float64) { p.sfx.SetPanning(slot, pan) }

// SFXPanning returns the given slot's stereo panning.
func (p *Player) SFXPanning(slot int) float64 { return p.sfx.Panning(slot) }

// SFXErrorText returns the last load error text for the given slot, or ""
// if none occurred.
func (p *Player) SFXErrorText(slot int) string { return p.sfx.ErrorText(slot) }
