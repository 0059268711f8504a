// Package note implements the 12-character tracker note string: the wire
// format used between the editor surface and the engine.
package note

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NoteOff is the tone value reserved as the note-off sentinel.
const NoteOff = 0x3D

// AutomationEffect marks a cell as a parameter-automation note rather than a
// pitched tone (effect == 0xFF).
const AutomationEffect = 0xFF

// noteLetters is indexed by (midi % 12); lowercase letters denote the sharp
// of the natural note below them, matching the tracker's single-glyph
// encoding (no separate '#' column).
var noteLetters = [12]byte{'C', 'c', 'D', 'd', 'E', 'F', 'f', 'G', 'g', 'A', 'a', 'B'}

var letterToOffset = map[byte]int{
	'C': 0, 'c': 1, 'D': 2, 'd': 3, 'E': 4,
	'F': 5, 'f': 6, 'G': 7, 'g': 8, 'A': 9, 'a': 10, 'B': 11,
}

// Note is the decoded form of a tracker note string.
type Note struct {
	Instrument  string // 2-hex-digit instrument id, "00".."FE"
	Velocity    int    // 0..255
	Tone        int    // MIDI 0..127, or NoteOff
	Effect      int    // 0..255; AutomationEffect marks a parameter-automation note
	EffectValue int    // 0..65535
}

// ParseError reports a malformed note string. It is recoverable and local:
// callers should reject the edit and leave engine state untouched.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("note: parse %q: %s", e.Input, e.Msg)
}

// Format renders a Note as the canonical 12-character string.
func Format(n Note) string {
	instr := strings.ToUpper(strings.TrimSpace(n.Instrument))
	if len(instr) < 2 {
		instr = strings.Repeat("0", 2-len(instr)) + instr
	} else if len(instr) > 2 {
		instr = instr[:2]
	}
	noteField := formatToneField(n.Tone)
	return fmt.Sprintf("%s%02X%s%02X%04X", instr, clampByte(n.Velocity), noteField, clampByte(n.Effect), clampWord(n.EffectValue))
}

// formatToneField renders tone as letter+octave using scientific pitch
// notation (MIDI 60 = "C4"). MIDI 0..11 fall in octave -1, which has no
// natural decimal digit; 'A' is reserved for that sub-zero octave so every
// MIDI value 0..127 round-trips through a distinct two-character field.
func formatToneField(tone int) string {
	if tone == NoteOff {
		return "=0"
	}
	if tone < 0 || tone > 127 {
		tone = 0
	}
	letter := noteLetters[tone%12]
	octave := tone/12 - 1
	if octave < 0 {
		return fmt.Sprintf("%cA", letter)
	}
	return fmt.Sprintf("%c%d", letter, octave)
}

// Parse decodes a tracker note string. Strings are trimmed before parsing;
// anything shorter than the instrument+velocity+note-name prefix (6 chars)
// is rejected. Effect and effect value default to zero when the string is
// truncated after the note-name field, which lets callers encode shorter
// "note only" cells.
func Parse(s string) (Note, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 6 {
		return Note{}, &ParseError{Input: s, Msg: "too short, need at least 6 characters"}
	}

	instrument := strings.ToUpper(trimmed[0:2])
	if _, err := strconv.ParseUint(instrument, 16, 8); err != nil {
		return Note{}, &ParseError{Input: s, Msg: "invalid instrument hex"}
	}

	velocity, err := strconv.ParseUint(trimmed[2:4], 16, 8)
	if err != nil {
		return Note{}, &ParseError{Input: s, Msg: "invalid velocity hex"}
	}

	tone, err := parseToneField(trimmed[4:6])
	if err != nil {
		return Note{}, &ParseError{Input: s, Msg: err.Error()}
	}

	n := Note{
		Instrument: instrument,
		Velocity:   int(velocity),
		Tone:       tone,
	}

	if len(trimmed) >= 8 {
		effect, err := strconv.ParseUint(trimmed[6:8], 16, 8)
		if err != nil {
			return Note{}, &ParseError{Input: s, Msg: "invalid effect hex"}
		}
		n.Effect = int(effect)
	}

	if len(trimmed) >= 12 {
		value, err := strconv.ParseUint(trimmed[8:12], 16, 16)
		if err != nil {
			return Note{}, &ParseError{Input: s, Msg: "invalid effect value hex"}
		}
		n.EffectValue = int(value)
	}

	return n, nil
}

func parseToneField(field string) (int, error) {
	if len(field) != 2 {
		return 0, fmt.Errorf("note-name field must be 2 characters")
	}
	if field == "=0" || field == "=*" {
		return NoteOff, nil
	}
	offset, ok := letterToOffset[field[0]]
	if !ok {
		return 0, fmt.Errorf("unknown note letter %q", field[0:1])
	}
	octaveDigit := field[1]
	var octave int
	switch {
	case octaveDigit == 'A':
		octave = -1
	case octaveDigit >= '0' && octaveDigit <= '9':
		octave = int(octaveDigit - '0')
	default:
		return 0, fmt.Errorf("invalid octave digit %q", field[1:2])
	}
	midi := (octave+1)*12 + offset
	if midi < 0 || midi > 127 {
		return 0, fmt.Errorf("note out of MIDI range: %d", midi)
	}
	return midi, nil
}

// MidiToHz converts a MIDI note number to frequency in Hz using equal
// temperament tuned to A4 = 440 Hz.
func MidiToHz(midi float64) float64 {
	return 440 * math.Pow(2, (midi-69)/12)
}

// HzToMidi is the inverse of MidiToHz.
func HzToMidi(hz float64) float64 {
	return 69 + 12*math.Log2(hz/440)
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func clampWord(v int) int {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return v
}
