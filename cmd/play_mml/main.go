// Command play_mml loads an MML file or inline string and plays it through
// the engine's live audio backend, or renders it off-line to a WAV file.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	chiptunemml "github.com/cbegin/chiptune-mml"
)

const defaultMML = "@g TEMPO=120 LOOP=OFF @1 L4 CDEFGAB>C"

func main() {
	var (
		mmlPath   = pflag.StringP("file", "f", "", "path to an MML file")
		mmlInline = pflag.StringP("mml", "m", "", "inline MML string")
		loop      = pflag.BoolP("loop", "l", false, "force indefinite looping regardless of the song's LOOP/REPEAT tags")
		volume    = pflag.IntP("volume", "v", 80, "master volume percent (0-100)")
		render    = pflag.StringP("render", "o", "", "render off-line to this WAV path instead of playing live")
		duration  = pflag.Float64P("seconds", "s", 10, "duration in seconds, used only with -render")
	)
	pflag.Parse()

	mmlText, err := resolveMMLInput(*mmlPath, *mmlInline)
	if err != nil {
		fmt.Fprintln(os.Stderr, "play_mml:", err)
		os.Exit(1)
	}

	if *render != "" {
		if err := renderToFile(mmlText, *render, *duration); err != nil {
			fmt.Fprintln(os.Stderr, "play_mml:", err)
			os.Exit(1)
		}
		return
	}

	if err := playLive(mmlText, *volume, *loop); err != nil {
		fmt.Fprintln(os.Stderr, "play_mml:", err)
		os.Exit(1)
	}
}

func playLive(mmlText string, volume int, loop bool) error {
	pl, err := chiptunemml.NewPlayer()
	if err != nil {
		return fmt.Errorf("new player: %w", err)
	}
	defer pl.Close()

	if err := pl.LoadString(mmlText); err != nil {
		return fmt.Errorf("load MML: %w", err)
	}
	pl.SetMasterVolume(volume)
	if loop {
		pl.EnableLooping()
	}
	pl.Start()

	for !pl.Finished() {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

func renderToFile(mmlText string, outPath string, seconds float64) error {
	samples, err := chiptunemml.RenderSamples(mmlText, seconds)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	wav := chiptunemml.EncodeWAVFloat32LE(samples, 44100, 2)
	if err := os.WriteFile(outPath, wav, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Printf("wrote %s (%.2fs)\n", outPath, seconds)
	return nil
}

func resolveMMLInput(path string, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return defaultMML, nil
}
