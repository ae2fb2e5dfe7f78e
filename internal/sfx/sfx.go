// Package sfx implements the fixed 16-slot sample-effects mixer: each slot
// holds a decoded PCM clip with independent gain/pan/transport state,
// summed and soft-compressed into a stereo tap, and kept strictly
// independent of the music player's note/event streams.
package sfx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/chiptune-mml/internal/softclip"
)

const Slots = 16
const maxSeconds = 4
const SampleRate = 44100

// Clip holds decoded PCM for one slot, mono or stereo interleaved
// internally as separate left/right slices (mono clips reuse Left as
// Right).
type Clip struct {
	Left, Right []float64
	Stereo      bool
}

// Decoder decodes an on-disk PCM/compressed-audio file into a Clip. The
// concrete decode step (WAV/OGG-Vorbis parsing) is an external collaborator
// per spec; DecodeFile below supplies it using ebiten's bundled decoders.
type Decoder interface {
	Decode(path string) (Clip, error)
}

type slot struct {
	mu      sync.Mutex
	clip    Clip
	gain    float64
	pan     float64
	pos     int
	playing bool
	errText string
}

// Mixer is the fixed 16-slot SFX bank.
type Mixer struct {
	decoder Decoder
	slots   [Slots]*slot
}

// New creates an SFX mixer using the given decoder (see DecodeFile).
func New(decoder Decoder) *Mixer {
	m := &Mixer{decoder: decoder}
	for i := range m.slots {
		m.slots[i] = &slot{gain: 1, pan: 0.5}
	}
	return m
}

func clampSlot(s int) (int, bool) {
	if s < 0 || s >= Slots {
		return 0, false
	}
	return s, true
}

// Load decodes path into slot s on the calling (control) goroutine. The
// slot is swapped only if it is not currently playing, per spec.
func (m *Mixer) Load(s int, path string) (string, error) {
	idx, ok := clampSlot(s)
	if !ok {
		return "", fmt.Errorf("sfx: slot %d out of range", s)
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	if sl.playing {
		sl.mu.Unlock()
		return "", fmt.Errorf("sfx: slot %d is playing", idx)
	}
	sl.mu.Unlock()

	clip, err := m.decoder.Decode(path)
	if err != nil {
		sl.mu.Lock()
		sl.errText = err.Error()
		sl.mu.Unlock()
		return err.Error(), err
	}

	sl.mu.Lock()
	sl.clip = clip
	sl.pos = 0
	sl.errText = ""
	sl.mu.Unlock()
	return "", nil
}

// LoadAll decodes every (slot, path) pair concurrently on the control
// thread; independent slot swaps make this safe to parallelize.
func (m *Mixer) LoadAll(ctx context.Context, paths map[int]string) map[int]error {
	results := make(map[int]error, len(paths))
	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for slotIdx, path := range paths {
		slotIdx, path := slotIdx, path
		g.Go(func() error {
			_, err := m.Load(slotIdx, path)
			mu.Lock()
			results[slotIdx] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Start begins (or restarts) playback of the given slot from position 0.
func (m *Mixer) Start(s int) {
	idx, ok := clampSlot(s)
	if !ok {
		return
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if len(sl.clip.Left) == 0 {
		return
	}
	sl.pos = 0
	sl.playing = true
}

// Stop halts playback of the given slot and rewinds it.
func (m *Mixer) Stop(s int) {
	idx, ok := clampSlot(s)
	if !ok {
		return
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	sl.playing = false
	sl.pos = 0
	sl.mu.Unlock()
}

// Pause halts playback without rewinding.
func (m *Mixer) Pause(s int) {
	idx, ok := clampSlot(s)
	if !ok {
		return
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	sl.playing = false
	sl.mu.Unlock()
}

// Resume continues playback from the current position.
func (m *Mixer) Resume(s int) {
	idx, ok := clampSlot(s)
	if !ok {
		return
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	if len(sl.clip.Left) > 0 {
		sl.playing = true
	}
	sl.mu.Unlock()
}

// SetGain sets slot gain, clamped to [0,1].
func (m *Mixer) SetGain(s int, gain float64) {
	idx, ok := clampSlot(s)
	if !ok {
		return
	}
	if gain < 0 {
		gain = 0
	} else if gain > 1 {
		gain = 1
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	sl.gain = gain
	sl.mu.Unlock()
}

// Gain returns slot gain, or 0.0 if the slot index is out of range.
func (m *Mixer) Gain(s int) float64 {
	idx, ok := clampSlot(s)
	if !ok {
		return 0.0
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.gain
}

// SetPanning sets slot panning, clamped to [0,1] (0=left, 1=right).
func (m *Mixer) SetPanning(s int, pan float64) {
	idx, ok := clampSlot(s)
	if !ok {
		return
	}
	if pan < 0 {
		pan = 0
	} else if pan > 1 {
		pan = 1
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	sl.pan = pan
	sl.mu.Unlock()
}

// Panning returns slot panning, or 0.5 if the slot index is out of range.
func (m *Mixer) Panning(s int) float64 {
	idx, ok := clampSlot(s)
	if !ok {
		return 0.5
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.pan
}

// ErrorText returns the last load error text for a slot, or "" if out of
// range or no error occurred.
func (m *Mixer) ErrorText(s int) string {
	idx, ok := clampSlot(s)
	if !ok {
		return ""
	}
	sl := m.slots[idx]
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.errText
}

// update returns one slot's contribution for the given channel (0=left,
// 1=right); position only advances on the right-channel call, matching
// spec's Update(channel) contract.
func (sl *slot) update(channel int) float64 {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if !sl.playing || len(sl.clip.Left) == 0 {
		return 0
	}
	leftGain := 2 * sl.gain * sl.pan
	rightGain := 2 * sl.gain * (1 - sl.pan)
	var out float64
	if channel == 0 {
		out = sl.clip.Left[sl.pos] * leftGain
		return out
	}
	if sl.clip.Stereo {
		out = sl.clip.Right[sl.pos] * rightGain
	} else {
		out = sl.clip.Left[sl.pos] * rightGain
	}
	sl.pos++
	if sl.pos >= len(sl.clip.Left) {
		sl.playing = false
		sl.pos = 0
	}
	return out
}

// GetOutput sums every slot's contribution for the given channel, applies
// the SFX-bus soft-knee compressor, and clamps to 0.99.
func (m *Mixer) GetOutput(channel int) float64 {
	var sum float64
	for _, sl := range m.slots {
		sum += sl.update(channel)
	}
	out := softclip.SFXBus.Compress(sum)
	if out > 0.99 {
		out = 0.99
	} else if out < -0.99 {
		out = -0.99
	}
	return out
}

// ebitenDecoder decodes WAV and OGG-Vorbis files via ebiten's bundled
// decoders, producing separate left/right float64 sample slices.
type ebitenDecoder struct{}

// DecodeFile is the default Decoder, dispatching on file extension.
func DecodeFile() Decoder { return ebitenDecoder{} }

func (ebitenDecoder) Decode(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("sfx: open %s: %w", path, err)
	}
	defer f.Close()

	var stream io.Reader
	var channels int
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg":
		dec, err := vorbis.DecodeWithSampleRate(SampleRate, f)
		if err != nil {
			return Clip{}, fmt.Errorf("sfx: decode vorbis %s: %w", path, err)
		}
		stream = dec
		channels = 2
	case ".wav":
		dec, err := wav.DecodeWithSampleRate(SampleRate, f)
		if err != nil {
			return Clip{}, fmt.Errorf("sfx: decode wav %s: %w", path, err)
		}
		stream = dec
		channels = 2
	default:
		return Clip{}, fmt.Errorf("sfx: unsupported file type %s", path)
	}

	raw, err := io.ReadAll(io.LimitReader(stream, int64(SampleRate*channels*2*maxSeconds)))
	if err != nil {
		return Clip{}, fmt.Errorf("sfx: read %s: %w", path, err)
	}
	frames := len(raw) / (2 * channels)
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := 0; i < frames; i++ {
		base := i * 2 * channels
		l := int16(raw[base]) | int16(raw[base+1])<<8
		left[i] = float64(l) / 32768.0
		if channels == 2 {
			r := int16(raw[base+2]) | int16(raw[base+3])<<8
			right[i] = float64(r) / 32768.0
		} else {
			right[i] = left[i]
		}
	}
	return Clip{Left: left, Right: right, Stereo: channels == 2}, nil
}
