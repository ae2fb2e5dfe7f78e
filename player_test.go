package chiptunemml

import (
	"strings"
	"testing"
)

func TestPlayerMasterVolumeRuntimeAPI(t *testing.T) {
	pl, err := NewPlayer()
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	defer pl.Close()

	pl.SetMasterVolume(80)
	if got := pl.GetMasterVolume(); got != 80 {
		t.Fatalf("default-ish master volume = %v, want 80", got)
	}
	pl.SetMasterVolume(35)
	if got := pl.GetMasterVolume(); got != 35 {
		t.Fatalf("master volume = %v, want 35", got)
	}
	pl.SetMasterVolume(-2)
	if got := pl.GetMasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}
}

func TestPlayerLoadStringAndTransport(t *testing.T) {
	pl, err := NewPlayer()
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	defer pl.Close()

	if err := pl.LoadString("@g TEMPO=120 LOOP=OFF @1 L4 CDEFGAB"); err != nil {
		t.Fatalf("load string: %v", err)
	}
	pl.Start()
	if pl.Finished() {
		t.Fatalf("freshly started song should not report finished")
	}
	pl.Pause()
	pos := pl.FramePos()
	pl.Resume()
	if pl.FramePos() != pos {
		t.Fatalf("resume should not itself advance the frame position")
	}
}

func TestPlayerLoadStringRejectsGarbage(t *testing.T) {
	pl, err := NewPlayer()
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	defer pl.Close()

	// Repeat nesting past the parser's depth cap is rejected; unknown tokens
	// alone are skipped without error.
	if err := pl.LoadString("@1 " + strings.Repeat("{", 20) + "C"); err == nil {
		t.Fatalf("expected a parse error for invalid MML")
	}
}
