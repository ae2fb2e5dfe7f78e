package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/cbegin/chiptune-mml/internal/logging"
)

type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		u := math.Float32bits(r.buf[i])
		binary.LittleEndian.PutUint32(p[i*4:], u)
	}
	n := frames * 8
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }

type Player struct {
	mu         sync.Mutex
	player     *ebitaudio.Player
	reader     io.ReadCloser
	sampleRate int
	source     SampleSource

	terminated   bool
	everPlayed   bool
	restarted    bool
	watchdogDone chan struct{}
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioContextErr  error
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioContextErr != nil {
		return nil, audioContextErr
	}
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	p := &Player{
		player:       pl,
		reader:       reader,
		sampleRate:   sampleRate,
		source:       source,
		watchdogDone: make(chan struct{}),
	}
	go p.watchdog()
	return p, nil
}

func (p *Player) Play() {
	p.mu.Lock()
	p.everPlayed = true
	p.mu.Unlock()
	p.player.Play()
}

func (p *Player) Pause() { p.player.Pause() }
func (p *Player) IsPlaying() bool {
	return p.player.IsPlaying()
}

// Position returns the current playback position (what the listener actually hears).
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.mu.Lock()
	p.terminated = true
	p.mu.Unlock()
	close(p.watchdogDone)
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}

// watchdog implements spec.md §4.11's "stream-finished" failure semantics:
// if playback ever started and then IsPlaying() unexpectedly drops while
// the host has not declared termination, attempt exactly one
// stop→reopen→start restart cycle.
func (p *Player) watchdog() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.watchdogDone:
			return
		case <-ticker.C:
			if fs, ok := p.source.(FinishingSource); ok && fs.Finished() {
				continue // expected end of song, not a stream fault
			}
			p.mu.Lock()
			shouldRestart := p.everPlayed && !p.restarted && !p.terminated && !p.player.IsPlaying()
			if shouldRestart {
				p.restarted = true
			}
			p.mu.Unlock()
			if shouldRestart {
				p.attemptRestart()
			}
		}
	}
}

func (p *Player) attemptRestart() {
	logging.StreamRestart(errors.New("audio stream stopped unexpectedly"))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminated {
		return
	}
	p.player.Pause()
	p.player.Close()
	p.reader.Close()

	ctx, err := sharedAudioContext(p.sampleRate)
	if err != nil {
		return
	}
	reader := NewStreamReader(p.source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return
	}
	p.reader = reader
	p.player = pl
	p.player.Play()
}
