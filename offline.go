package chiptunemml

import (
	"encoding/binary"
	"math"

	intmml "github.com/cbegin/chiptune-mml/internal/mml"
	intplayer "github.com/cbegin/chiptune-mml/internal/player"
	intsfx "github.com/cbegin/chiptune-mml/internal/sfx"
	"github.com/cbegin/chiptune-mml/internal/tuning"
)

// RenderSamples compiles mmlText and renders seconds worth of audio
// off-line (no audio device involved), returning interleaved stereo
// float32 samples at the engine's fixed sample rate. Looping songs are
// rendered for exactly the requested duration regardless of loop count.
func RenderSamples(mmlText string, seconds float64) ([]float32, error) {
	song, err := intmml.Parse(mmlText)
	if err != nil {
		return nil, err
	}

	p := intplayer.New(intsfx.New(intsfx.DecodeFile()))
	p.LoadSong(song)
	p.EnableLooping()
	p.Start()

	frames := int(float64(tuning.SampleRate) * seconds)
	out := make([]float32, frames*2)
	p.Process(out)
	return out, nil
}

// EncodeWAVFloat32LE wraps interleaved float32 samples in a canonical
// IEEE-float WAV container (format tag 3, 32 bits/sample).
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
