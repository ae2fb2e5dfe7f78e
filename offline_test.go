package chiptunemml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSamplesProducesRequestedDuration(t *testing.T) {
	samples, err := RenderSamples("@g TEMPO=120 LOOP=OFF @1 L4 CDEFGAB", 1.0)
	require.NoError(t, err)
	assert.Len(t, samples, 44100*2)
}

func TestRenderSamplesStaysWithinOutputRange(t *testing.T) {
	samples, err := RenderSamples("@g TEMPO=240 LOOP=ON @1 L8 CDEFGAB @2 L8 GABCDEF @d KSHS", 0.5)
	require.NoError(t, err)
	for _, v := range samples {
		assert.LessOrEqual(t, v, float32(0.88))
		assert.GreaterOrEqual(t, v, float32(-0.88))
	}
}

func TestRenderSamplesRejectsInvalidMML(t *testing.T) {
	// Unknown tokens are skipped silently; repeat nesting past the parser's
	// depth cap is the malformed input Parse rejects.
	_, err := RenderSamples("@1 "+strings.Repeat("{", 20)+"C", 0.1)
	assert.Error(t, err)
}

func TestEncodeWAVFloat32LEHeader(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.25, -0.25}
	wav := EncodeWAVFloat32LE(samples, 44100, 2)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Len(t, wav, 44+len(samples)*4)
}
