package mml

import (
	"fmt"
	"strconv"

	"github.com/cbegin/chiptune-mml/internal/tuning"
)

const maxRepeatDepth = 16
const maxExpandedRunes = 10 * 1024 * 1024

// Parse compiles MML source text into a Song. Parser errors are reserved
// for the repeat-expansion size/depth safeguard; every other malformed
// construct is recovered from silently per the error-handling design
// (unknown tokens skipped, unterminated braces/brackets closed at EOF,
// out-of-range values clamped).
func Parse(source string) (*Song, error) {
	clean := cleanSource(source)
	sec := demux(clean)

	song := &Song{
		Tempo:               120,
		Loop:                true,
		RepeatCount:         1,
		DelayTimeMs:         300,
		DelayTimeMode:       "",
		DelayLevel:          0.5,
		MasterVolumePercent: 80,
	}
	parseGlobal(sec.global, song)

	base := tuning.BaseFrameLength(song.Tempo)
	measure := tuning.MeasureFrames(base)

	for i := 0; i < 9; i++ {
		expanded, err := expandRepeats(sec.channel[i])
		if err != nil {
			return nil, fmt.Errorf("mml: channel %d: %w", i+1, err)
		}
		parseMelodicChannel(expanded, song, i, measure)
	}

	expandedDrum, err := expandRepeats(sec.drum)
	if err != nil {
		return nil, fmt.Errorf("mml: drum channel: %w", err)
	}
	parseDrumChannel(expandedDrum, song, measure)

	return song, nil
}

// cleanSource strips line comments, all whitespace, stray '(' characters,
// and the tolerated 0xFF EOF sentinel.
func cleanSource(s string) []rune {
	var out []rune
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '/' && i+1 < len(runes) && runes[i+1] == '/' {
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '(' || c == 0xFF {
			continue
		}
		out = append(out, c)
	}
	return out
}

type sections struct {
	global  []rune
	channel [9][]rune
	drum    []rune
}

func demux(r []rune) sections {
	var sec sections
	i := 0
	for i < len(r) {
		if r[i] != '@' {
			i++
			continue
		}
		i++
		if i >= len(r) {
			break
		}
		marker := r[i]
		i++
		start := i
		for i < len(r) && r[i] != '@' {
			i++
		}
		body := r[start:i]
		switch {
		case marker >= '1' && marker <= '9':
			idx := int(marker - '1')
			sec.channel[idx] = append(sec.channel[idx], body...)
		case marker == 'd' || marker == 'D':
			sec.drum = append(sec.drum, body...)
		case marker == 'g' || marker == 'G':
			sec.global = append(sec.global, body...)
		}
	}
	return sec
}

// expandRepeats duplicates `{N ...}` blocks in place, recursively handling
// nesting; EOF acts as an implicit close for any still-open brace.
func expandRepeats(r []rune) ([]rune, error) {
	pos := 0
	out, err := expandBlock(r, &pos, 0)
	return out, err
}

func expandBlock(r []rune, pos *int, depth int) ([]rune, error) {
	var out []rune
	for *pos < len(r) {
		c := r[*pos]
		if c == '}' {
			*pos++
			return out, nil
		}
		if c == '{' {
			*pos++
			if depth >= maxRepeatDepth {
				return nil, fmt.Errorf("repeat nesting exceeds depth %d", maxRepeatDepth)
			}
			count := 2
			if *pos < len(r) && r[*pos] >= '0' && r[*pos] <= '9' {
				count = int(r[*pos] - '0')
				*pos++
			}
			body, err := expandBlock(r, pos, depth+1)
			if err != nil {
				return nil, err
			}
			for n := 0; n < count; n++ {
				out = append(out, body...)
				if len(out) > maxExpandedRunes {
					return nil, fmt.Errorf("repeat expansion exceeds %d runes", maxExpandedRunes)
				}
			}
			continue
		}
		out = append(out, c)
		*pos++
	}
	return out, nil
}

// --- small scanning helpers ---

func prefixMatch(r []rune, pos int, lit string) bool {
	lr := []rune(lit)
	if pos+len(lr) > len(r) {
		return false
	}
	for i, c := range lr {
		if r[pos+i] != c {
			return false
		}
	}
	return true
}

func readDigits(r []rune, pos int) (int, int, bool) {
	start := pos
	for pos < len(r) && r[pos] >= '0' && r[pos] <= '9' {
		pos++
	}
	if pos == start {
		return 0, pos, false
	}
	v, err := strconv.Atoi(string(r[start:pos]))
	if err != nil {
		return 0, pos, false
	}
	return v, pos, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isNoteLetter(c rune) bool { return c >= 'A' && c <= 'G' }

// --- global section ---

func parseGlobal(text []rune, song *Song) {
	pos := 0
	for pos < len(text) {
		switch {
		case prefixMatch(text, pos, "MASTERVOLUME="):
			pos += len("MASTERVOLUME=")
			if v, np, ok := readDigits(text, pos); ok {
				song.MasterVolumePercent = clampInt(v, 1, 99)
				pos = np
			}
		case prefixMatch(text, pos, "DELAYLEVEL="):
			pos += len("DELAYLEVEL=")
			if v, np, ok := readDigits(text, pos); ok {
				song.DelayLevel = float64(clampInt(v, 1, 99)) / 100
				pos = np
			}
		case prefixMatch(text, pos, "DELAYTIME="):
			pos += len("DELAYTIME=")
			switch {
			case prefixMatch(text, pos, "AUTO3L"):
				song.DelayTimeMode = "AUTO3L"
				pos += len("AUTO3L")
			case prefixMatch(text, pos, "AUTO3"):
				song.DelayTimeMode = "AUTO3"
				pos += len("AUTO3")
			case prefixMatch(text, pos, "AUTO"):
				song.DelayTimeMode = "AUTO"
				pos += len("AUTO")
			default:
				if v, np, ok := readDigits(text, pos); ok {
					song.DelayTimeMode = ""
					song.DelayTimeMs = float64(clampInt(v, 10, 999))
					pos = np
				}
			}
		case prefixMatch(text, pos, "DELAY="):
			pos += len("DELAY=")
			if prefixMatch(text, pos, "ON") {
				song.DelayEnabled = true
				pos += 2
			} else if prefixMatch(text, pos, "OFF") {
				song.DelayEnabled = false
				pos += 3
			}
		case prefixMatch(text, pos, "REPEAT="):
			pos += len("REPEAT=")
			if v, np, ok := readDigits(text, pos); ok {
				song.RepeatCount = clampInt(v, 1, 9)
				song.Loop = false
				pos = np
			}
		case prefixMatch(text, pos, "LOOP="):
			pos += len("LOOP=")
			if prefixMatch(text, pos, "ON") {
				song.Loop = true
				pos += 2
			} else if prefixMatch(text, pos, "OFF") {
				song.Loop = false
				pos += 3
			}
		case prefixMatch(text, pos, "TEMPO="):
			pos += len("TEMPO=")
			if v, np, ok := readDigits(text, pos); ok {
				song.Tempo = clampInt(v, 40, 400)
				pos = np
			}
		case prefixMatch(text, pos, "T="):
			pos += len("T=")
			if v, np, ok := readDigits(text, pos); ok {
				song.Tempo = clampInt(v, 40, 400)
				pos = np
			}
		case prefixMatch(text, pos, "Vd="):
			pos += len("Vd=")
			if v, np, ok := readDigits(text, pos); ok {
				song.InitialDrumGain = float64(clampInt(v, 0, 10)) / 20
				song.HasInitialDrumGain = true
				pos = np
			}
		case text[pos] == 'V' && pos+2 < len(text) && text[pos+1] >= '1' && text[pos+1] <= '9' && text[pos+2] == '=':
			idx := int(text[pos+1] - '1')
			pos += 3
			if v, np, ok := readDigits(text, pos); ok {
				song.InitialChannelGain[idx] = float64(clampInt(v, 0, 10)) / 20
				song.HasInitialGain[idx] = true
				pos = np
			}
		default:
			pos++
		}
	}
}

// --- melodic channel ---

func noteFrames(lenDenom, measure int) int {
	if lenDenom < 1 {
		lenDenom = 1
	}
	return measure / lenDenom
}

func tryMelodicTag(text []rune, pos int, frame int64) (Event, int, bool) {
	type lit struct {
		word string
		typ  int
	}
	switch {
	case prefixMatch(text, pos, "WAVEFORM="):
		pos += len("WAVEFORM=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtWaveform, Param: clampInt(v, 0, 99), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "WAVEFLIP"):
		return Event{Type: EvtWaveFlip, AtFrame: frame}, pos + len("WAVEFLIP"), true
	case prefixMatch(text, pos, "ATTACKTIME="):
		pos += len("ATTACKTIME=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtAttackTime, Param: clampInt(v, 0, 9999), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "PEAKTIME="):
		pos += len("PEAKTIME=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtPeakTime, Param: clampInt(v, 0, 9999), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "DECAYTIME="):
		pos += len("DECAYTIME=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtDecayTime, Param: clampInt(v, 0, 9999), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "RELEASETIME="):
		pos += len("RELEASETIME=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtReleaseTime, Param: clampInt(v, 0, 9999), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "PEAKLEVEL="):
		pos += len("PEAKLEVEL=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtPeakLevel, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "SUSTAINLEVEL="):
		pos += len("SUSTAINLEVEL=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtSustainLevel, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "LFORANGE="):
		pos += len("LFORANGE=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtLFORange, Param: clampInt(v, 1, 3600), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "LFOSPEED="):
		pos += len("LFOSPEED=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtLFOSpeed, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "LFOWAIT="):
		pos += len("LFOWAIT=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtLFOWait, Param: clampInt(v, 1, 3000), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "LFO="):
		pos += len("LFO=")
		if prefixMatch(text, pos, "ON") {
			return Event{Type: EvtLFOOn, Param: 1, AtFrame: frame}, pos + 2, true
		}
		if prefixMatch(text, pos, "OFF") {
			return Event{Type: EvtLFOOn, Param: 0, AtFrame: frame}, pos + 3, true
		}
	case prefixMatch(text, pos, "ASTRO="):
		pos += len("ASTRO=")
		if prefixMatch(text, pos, "OFF") {
			return Event{Type: EvtAstroOff, AtFrame: frame}, pos + 3, true
		}
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtAstroOn, Param: clampInt(v, 1, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "FALLSPEED="):
		pos += len("FALLSPEED=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtFallSpeed, Param: clampInt(v, 1, 6000), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "FALLWAIT="):
		pos += len("FALLWAIT=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtFallWait, Param: clampInt(v, 1, 9999), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "RISESPEED="):
		pos += len("RISESPEED=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtRiseSpeed, Param: clampInt(v, 1, 9600), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "RISERANGE="):
		pos += len("RISERANGE=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtRiseRange, Param: clampInt(v, 1, 9600), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "BEEFUP="):
		pos += len("BEEFUP=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtBeefUp, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "RINGMOD="):
		pos += len("RINGMOD=")
		if prefixMatch(text, pos, "OFF") {
			return Event{Type: EvtRingModOff, AtFrame: frame}, pos + 3, true
		}
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtRingModOn, Param: clampInt(v, 1, 9), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "DEFAULTTONE"):
		return Event{Type: EvtDefaultTone, AtFrame: frame}, pos + len("DEFAULTTONE"), true
	case prefixMatch(text, pos, "PRESET=POPPYVIB"):
		return Event{Type: EvtPresetPoppyV, AtFrame: frame}, pos + len("PRESET=POPPYVIB"), true
	case prefixMatch(text, pos, "PRESET=POPPY"):
		return Event{Type: EvtPresetPoppy, AtFrame: frame}, pos + len("PRESET=POPPY"), true
	case prefixMatch(text, pos, "PRESET=BEEP"):
		return Event{Type: EvtPresetBeep, AtFrame: frame}, pos + len("PRESET=BEEP"), true
	case prefixMatch(text, pos, "PRESET=BELL"):
		return Event{Type: EvtPresetBell, AtFrame: frame}, pos + len("PRESET=BELL"), true
	}
	return Event{}, pos, false
}

func parseMelodicChannel(text []rune, song *Song, chIdx int, measure int) {
	ch := &song.Channels[chIdx]
	octave := 4
	lenDenom := 4
	var frame int64

	pos := 0
	for pos < len(text) {
		if ev, np, ok := tryMelodicTag(text, pos, frame); ok {
			ch.Events = append(ch.Events, ev)
			pos = np
			continue
		}
		c := text[pos]
		switch {
		case c == '[':
			pos = parseTuplet(text, pos+1, &octave, measure, noteFrames(lenDenom, measure), &frame, ch)
		case c == '%' && pos+1 < len(text) && text[pos+1] == '%':
			if frame > song.Bookmark {
				song.Bookmark = frame
			}
			pos += 2
		case c == '<':
			if octave > 0 {
				octave--
			}
			pos++
		case c == '>':
			if octave < 9 {
				octave++
			}
			pos++
		case c == 'O':
			pos++
			if v, np, ok := readDigits(text, pos); ok {
				octave = clampInt(v, 0, 9)
				pos = np
			}
		case c == 'L':
			pos++
			if v, np, ok := readDigits(text, pos); ok {
				if v < 1 {
					v = 1
				}
				lenDenom = v
				pos = np
			}
		case c == '*':
			ch.Events = append(ch.Events, Event{Type: EvtRiseStart, AtFrame: frame})
			pos++
		case c == ':':
			length := noteFrames(lenDenom, measure)
			ch.Notes = append(ch.Notes, Note{Freq: tuning.RestFrequency, Length: length})
			frame += int64(length)
			pos++
		case c == 'V':
			pos++
			if v, np, ok := readDigits(text, pos); ok && v >= 1 && v <= 10 {
				ch.Events = append(ch.Events, Event{Type: EvtGain, Param: v, AtFrame: frame})
				pos = np
			}
		case c == '^':
			ch.Events = append(ch.Events, Event{Type: EvtGainUp, AtFrame: frame})
			pos++
		case c == '_':
			ch.Events = append(ch.Events, Event{Type: EvtGainDown, AtFrame: frame})
			pos++
		case isNoteLetter(c):
			pos = parseMelodicNote(text, pos, octave, lenDenom, measure, &frame, ch)
		default:
			pos++
		}
	}
	ch.TotalFrames = frame
	ch.Notes = append(ch.Notes, Note{Freq: -1, Length: 0})
}

func parseMelodicNote(text []rune, pos int, octave int, lenDenom int, measure int, frame *int64, ch *Channel) int {
	letter := byte(text[pos])
	pos++
	accidental := 0
	if pos < len(text) {
		if text[pos] == '#' {
			accidental = 1
			pos++
		} else if text[pos] == 'b' {
			accidental = -1
			pos++
		}
	}
	fall := false
	ties := 0
	for pos < len(text) && (text[pos] == ',' || text[pos] == '~') {
		if text[pos] == ',' {
			fall = true
		} else {
			ties++
		}
		pos++
	}
	unit := noteFrames(lenDenom, measure)
	length := unit * (1 + ties)
	tone, _ := tuning.ToneNumber(letter, accidental, octave)
	freq := tuning.Frequency(tone)
	if fall {
		ch.Events = append(ch.Events, Event{Type: EvtFallStart, AtFrame: *frame})
	}
	ch.Notes = append(ch.Notes, Note{Freq: freq, Length: length})
	*frame += int64(length)
	return pos
}

type tupletUnit struct {
	isRest    bool
	letter    byte
	accidental int
	octave    int
	extra     int
	rise      bool
}

func parseTuplet(text []rune, pos int, octave *int, measure int, defaultLen int, frame *int64, ch *Channel) int {
	n, np, hasN := readDigits(text, pos)
	if hasN {
		pos = np
	}

	var units []tupletUnit
	for pos < len(text) && text[pos] != ']' {
		c := text[pos]
		switch {
		case c == '<':
			if *octave > 0 {
				*octave--
			}
			pos++
		case c == '>':
			if *octave < 9 {
				*octave++
			}
			pos++
		case c == '*':
			if len(units) > 0 {
				units[len(units)-1].rise = true
			}
			pos++
		case c == '~':
			if len(units) > 0 {
				units[len(units)-1].extra++
			}
			pos++
		case c == ':':
			units = append(units, tupletUnit{isRest: true})
			pos++
		case isNoteLetter(c):
			letter := byte(c)
			pos++
			accidental := 0
			if pos < len(text) {
				if text[pos] == '#' {
					accidental = 1
					pos++
				} else if text[pos] == 'b' {
					accidental = -1
					pos++
				}
			}
			units = append(units, tupletUnit{letter: letter, accidental: accidental, octave: *octave})
		default:
			pos++
		}
	}
	if pos < len(text) && text[pos] == ']' {
		pos++
	}

	wholeLen := defaultLen
	if hasN && n > 0 {
		wholeLen = measure / n
	}

	totalSlots := 0
	for _, u := range units {
		totalSlots += 1 + u.extra
	}
	if totalSlots == 0 {
		return pos
	}
	slotBase := wholeLen / totalSlots
	remainder := wholeLen % totalSlots

	first := true
	for _, u := range units {
		slots := 1 + u.extra
		length := 0
		for s := 0; s < slots; s++ {
			sl := slotBase
			if first && s == 0 {
				sl += remainder
			}
			length += sl
		}
		start := *frame
		if u.isRest {
			ch.Notes = append(ch.Notes, Note{Freq: tuning.RestFrequency, Length: length})
		} else {
			tone, _ := tuning.ToneNumber(u.letter, u.accidental, u.octave)
			ch.Notes = append(ch.Notes, Note{Freq: tuning.Frequency(tone), Length: length})
			if u.rise {
				ch.Events = append(ch.Events, Event{Type: EvtRiseStart, AtFrame: start})
			}
		}
		*frame += int64(length)
		first = false
	}
	return pos
}

// --- drum channel ---

func tryDrumTag(text []rune, pos int, frame int64) (Event, int, bool) {
	switch {
	case prefixMatch(text, pos, "RESETDRUMS"):
		return Event{Type: EvtResetDrums, AtFrame: frame}, pos + len("RESETDRUMS"), true
	case prefixMatch(text, pos, "KICKPITCH="):
		pos += len("KICKPITCH=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtKickPitch, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "SNAREPITCH="):
		pos += len("SNAREPITCH=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtSnarePitch, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "HIHATPITCH="):
		pos += len("HIHATPITCH=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtHiHatPitch, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "BEEFUP="):
		pos += len("BEEFUP=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtDrumBeefUp, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "WHITENOISE"):
		return Event{Type: EvtWhiteNoise, AtFrame: frame}, pos + len("WHITENOISE"), true
	case prefixMatch(text, pos, "PINKNOISE"):
		return Event{Type: EvtPinkNoise, AtFrame: frame}, pos + len("PINKNOISE"), true
	case prefixMatch(text, pos, "KICKNOISE="):
		pos += len("KICKNOISE=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtKickNoiseKind, Param: clampInt(v, 0, 1), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "SNARENOISE="):
		pos += len("SNARENOISE=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtSnareNoiseKind, Param: clampInt(v, 0, 1), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "HIHATNOISE="):
		pos += len("HIHATNOISE=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtHiHatNoiseKind, Param: clampInt(v, 0, 1), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "KICKLENGTH="):
		pos += len("KICKLENGTH=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtKickLength, Param: clampInt(v, 1, 400), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "SNARELENGTH="):
		pos += len("SNARELENGTH=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtSnareLength, Param: clampInt(v, 1, 1000), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "HIHATLENGTH="):
		pos += len("HIHATLENGTH=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtHiHatLength, Param: clampInt(v, 1, 1000), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "SQUARELEVEL="):
		pos += len("SQUARELEVEL=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtSquareLevel, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	case prefixMatch(text, pos, "NOISELEVEL="):
		pos += len("NOISELEVEL=")
		if v, np, ok := readDigits(text, pos); ok {
			return Event{Type: EvtNoiseLevel, Param: clampInt(v, 0, 100), AtFrame: frame}, np, true
		}
	}
	return Event{}, pos, false
}

func drumKindFor(c rune) (int, bool) {
	switch c {
	case 'K':
		return DrumKick, true
	case 'S':
		return DrumSnare, true
	case 'H':
		return DrumHiHat, true
	case 'k':
		return DrumKickQuiet, true
	case 's':
		return DrumSnareQuiet, true
	case 'h':
		return DrumHiHatQuiet, true
	}
	return 0, false
}

func parseDrumChannel(text []rune, song *Song, measure int) {
	ch := &song.Drum
	lenDenom := 4
	var frame int64

	pos := 0
	for pos < len(text) {
		if ev, np, ok := tryDrumTag(text, pos, frame); ok {
			ch.Events = append(ch.Events, ev)
			pos = np
			continue
		}
		c := text[pos]
		switch {
		case c == '[':
			pos = parseDrumTuplet(text, pos+1, measure, noteFrames(lenDenom, measure), &frame, ch)
		case c == '%' && pos+1 < len(text) && text[pos+1] == '%':
			if frame > song.Bookmark {
				song.Bookmark = frame
			}
			pos += 2
		case c == 'L':
			pos++
			if v, np, ok := readDigits(text, pos); ok {
				if v < 1 {
					v = 1
				}
				lenDenom = v
				pos = np
			}
		case c == ':':
			length := noteFrames(lenDenom, measure)
			ch.Notes = append(ch.Notes, DrumNote{Kind: DrumRest, Length: length})
			frame += int64(length)
			pos++
		case c == 'V':
			pos++
			if v, np, ok := readDigits(text, pos); ok && v >= 1 && v <= 10 {
				ch.Events = append(ch.Events, Event{Type: EvtDrumGain, Param: v, AtFrame: frame})
				pos = np
			}
		case c == '^':
			ch.Events = append(ch.Events, Event{Type: EvtDrumGainUp, AtFrame: frame})
			pos++
		case c == '_':
			ch.Events = append(ch.Events, Event{Type: EvtDrumGainDown, AtFrame: frame})
			pos++
		default:
			if kind, ok := drumKindFor(c); ok {
				pos++
				ties := 0
				for pos < len(text) && text[pos] == '~' {
					ties++
					pos++
				}
				length := noteFrames(lenDenom, measure) * (1 + ties)
				ch.Notes = append(ch.Notes, DrumNote{Kind: kind, Length: length})
				frame += int64(length)
			} else {
				pos++
			}
		}
	}
	ch.TotalFrames = frame
	ch.Notes = append(ch.Notes, DrumNote{Kind: DrumEnd, Length: 0})
}

func parseDrumTuplet(text []rune, pos int, measure int, defaultLen int, frame *int64, ch *DrumChannel) int {
	n, np, hasN := readDigits(text, pos)
	if hasN {
		pos = np
	}

	type unit struct {
		isRest bool
		kind   int
		extra  int
	}
	var units []unit
	for pos < len(text) && text[pos] != ']' {
		c := text[pos]
		switch {
		case c == '~':
			if len(units) > 0 {
				units[len(units)-1].extra++
			}
			pos++
		case c == ':':
			units = append(units, unit{isRest: true})
			pos++
		default:
			if kind, ok := drumKindFor(c); ok {
				units = append(units, unit{kind: kind})
				pos++
			} else {
				pos++
			}
		}
	}
	if pos < len(text) && text[pos] == ']' {
		pos++
	}

	wholeLen := defaultLen
	if hasN && n > 0 {
		wholeLen = measure / n
	}
	totalSlots := 0
	for _, u := range units {
		totalSlots += 1 + u.extra
	}
	if totalSlots == 0 {
		return pos
	}
	slotBase := wholeLen / totalSlots
	remainder := wholeLen % totalSlots

	first := true
	for _, u := range units {
		slots := 1 + u.extra
		length := 0
		for s := 0; s < slots; s++ {
			sl := slotBase
			if first && s == 0 {
				sl += remainder
			}
			length += sl
		}
		kind := DrumRest
		if !u.isRest {
			kind = u.kind
		}
		ch.Notes = append(ch.Notes, DrumNote{Kind: kind, Length: length})
		*frame += int64(length)
		first = false
	}
	return pos
}
