// Package logging provides the engine's rolling text log: file-load
// failures and audio stream interruptions (spec.md §7) are written here
// rather than surfacing through the audio thread.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// namePattern names one log file per calendar day; it is a strftime
// pattern expanded by dailyFile.Write.
const namePattern = "chiptune-mml-%Y-%m-%d.log"

var (
	mu      sync.Mutex
	logger  *log.Logger
	rotator *dailyFile
)

// Init opens (or creates) dir and points the package logger at a
// same-day-rotating file inside it. Safe to call more than once; the most
// recent directory wins.
func Init(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("logging: create log dir %s: %w", dir, err)
	}

	if rotator != nil {
		rotator.Close()
	}
	rotator = &dailyFile{dir: dir}
	logger = log.NewWithOptions(rotator, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "chiptune-mml",
	})
	return nil
}

// L returns the package logger, falling back to a stderr logger if Init
// has not been called (useful for cmd/play_mml and tests).
func L() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "chiptune-mml"})
	}
	return logger
}

// LoadFailure logs spec.md §7's required "Error loading file: <path>"
// message for a failed MML or SFX file load.
func LoadFailure(path string, err error) {
	L().Error("Error loading file: "+path, "err", err)
}

// StreamRestart logs the single-retry stop→reopen→start cycle the audio
// output backend performs on an unexpected stream interruption.
func StreamRestart(err error) {
	L().Warn("audio stream interrupted, attempting restart", "err", err)
}

// dailyFile is an io.Writer that reopens a new file whenever the calendar
// day changes, named by pattern. Rotation is hand-rolled on os: no
// rotation library appears anywhere in the retrieved example pack.
type dailyFile struct {
	mu  sync.Mutex
	dir string
	day string
	f   *os.File
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if d.f == nil || today != d.day {
		if d.f != nil {
			d.f.Close()
		}
		name, err := strftime.Format(namePattern, time.Now())
		if err != nil {
			return 0, fmt.Errorf("logging: format log name: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(d.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		d.f = f
		d.day = today
	}
	return d.f.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

var _ io.Writer = (*dailyFile)(nil)
