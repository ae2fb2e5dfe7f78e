package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/chiptune-mml/internal/mml"
	"github.com/cbegin/chiptune-mml/internal/sfx"
)

func newTestPlayer(t *testing.T) *Player {
	t.Helper()
	return New(sfx.New(sfx.DecodeFile()))
}

// TestProcessStaysWithinOutputRange checks spec.md §4.11's output contract:
// every produced stereo sample stays within ±masterOutCap.
func TestProcessStaysWithinOutputRange(t *testing.T) {
	song, err := mml.Parse("@g TEMPO=120 LOOP=OFF @1 L4 CDEFGAB @d KSHS")
	require.NoError(t, err)

	p := newTestPlayer(t)
	p.LoadSong(song)
	p.Start()

	buf := make([]float32, 2048)
	for i := 0; i < 50; i++ {
		p.Process(buf)
		for _, v := range buf {
			assert.LessOrEqual(t, v, float32(masterOutCap))
			assert.GreaterOrEqual(t, v, float32(-masterOutCap))
		}
	}
}

// TestFinishedWithoutLoop checks that a short non-looping song eventually
// reports Finished() and stops advancing.
func TestFinishedWithoutLoop(t *testing.T) {
	song, err := mml.Parse("@g TEMPO=400 LOOP=OFF @1 L1 C")
	require.NoError(t, err)

	p := newTestPlayer(t)
	p.LoadSong(song)
	p.Start()

	buf := make([]float32, 2)
	finished := false
	for i := 0; i < 200000; i++ {
		p.Process(buf)
		if p.Finished() {
			finished = true
			break
		}
	}
	assert.True(t, finished, "expected song to finish within the iteration budget")

	posAtFinish := p.FramePos()
	p.Process(buf)
	assert.Equal(t, posAtFinish, p.FramePos(), "frame position must not advance once finished")
}

// TestLoopingNeverFinishes checks that LOOP=ON keeps the player playing
// indefinitely across one full song length.
func TestLoopingNeverFinishes(t *testing.T) {
	song, err := mml.Parse("@g TEMPO=400 LOOP=ON @1 L1 C")
	require.NoError(t, err)

	p := newTestPlayer(t)
	p.LoadSong(song)
	p.Start()

	buf := make([]float32, 2)
	for i := 0; i < 100000; i++ {
		p.Process(buf)
		assert.False(t, p.Finished())
	}
}

// TestSeekMatchesLinearAdvance checks that Seek(n) leaves the player at the
// same frame position reached by processing n frames one at a time.
func TestSeekMatchesLinearAdvance(t *testing.T) {
	src := "@g TEMPO=120 LOOP=ON @1 L4 CDEFGAB @2 L8 CCGGAAG"
	songA, err := mml.Parse(src)
	require.NoError(t, err)
	songB, err := mml.Parse(src)
	require.NoError(t, err)

	linear := newTestPlayer(t)
	linear.LoadSong(songA)
	linear.Start()
	buf := make([]float32, 2)
	const n = int64(5000)
	for i := int64(0); i < n; i++ {
		linear.Process(buf)
	}

	seeker := newTestPlayer(t)
	seeker.LoadSong(songB)
	seeker.Start()
	seeker.Seek(n)

	assert.Equal(t, linear.FramePos(), seeker.FramePos())
	for i := 0; i < 9; i++ {
		assert.Equal(t, linear.cur[i].noteIdx, seeker.cur[i].noteIdx)
	}
}

// TestPauseHoldsFramePos checks that Pause stops frame advancement and
// Resume picks back up from the same position.
func TestPauseHoldsFramePos(t *testing.T) {
	song, err := mml.Parse("@g TEMPO=120 LOOP=ON @1 L4 CDEFGAB")
	require.NoError(t, err)

	p := newTestPlayer(t)
	p.LoadSong(song)
	p.Start()

	buf := make([]float32, 2)
	for i := 0; i < 100; i++ {
		p.Process(buf)
	}
	pos := p.FramePos()
	p.Pause()
	for i := 0; i < 50; i++ {
		p.Process(buf)
	}
	assert.Equal(t, pos, p.FramePos())

	p.Resume()
	p.Process(buf)
	assert.Equal(t, pos+1, p.FramePos())
}

// TestMasterVolumeRoundTrips checks the integer-percent host API surface
// the Open Question decision settled on.
func TestMasterVolumeRoundTrips(t *testing.T) {
	p := newTestPlayer(t)
	p.SetMasterVolume(42)
	assert.Equal(t, 42, p.GetMasterVolume())
	p.SetMasterVolume(500)
	assert.Equal(t, 100, p.GetMasterVolume())
	p.SetMasterVolume(-5)
	assert.Equal(t, 0, p.GetMasterVolume())
}

// TestRingModMutesFeederChannel checks that enabling ring modulation on
// channel 0 targeting channel 1 records channel 1 as the ring-mod target and
// marks it RingMuted, which excludes it from the main sum.
func TestRingModMutesFeederChannel(t *testing.T) {
	song, err := mml.Parse("@g TEMPO=120 LOOP=OFF @1 RINGMOD=2 L1 C @2 L1 C")
	require.NoError(t, err)

	p := newTestPlayer(t)
	p.LoadSong(song)

	assert.Equal(t, 1, p.ch[0].ringTarget)
	assert.True(t, p.osc[1].RingMuted)
}
