package note

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	n, err := Parse("00FFC4000000")
	require.NoError(t, err)
	assert.Equal(t, Note{Instrument: "00", Velocity: 255, Tone: 60, Effect: 0, EffectValue: 0}, n)
	assert.Equal(t, "00FFC4000000", Format(n))
}

func TestFormatParseIdentity(t *testing.T) {
	for instr := 0; instr <= 0xFE; instr += 17 {
		for _, tone := range []int{0, 1, 60, 69, 127, NoteOff} {
			for _, velocity := range []int{0, 1, 127, 255} {
				for _, effect := range []int{0, 1, 0xFF} {
					for _, ev := range []int{0, 1, 0x1234, 65535} {
						n := Note{
							Instrument:  formatHex2(instr),
							Velocity:    velocity,
							Tone:        tone,
							Effect:      effect,
							EffectValue: ev,
						}
						s := Format(n)
						got, err := Parse(s)
						require.NoError(t, err)
						assert.Equal(t, n.Velocity, got.Velocity)
						assert.Equal(t, n.Tone, got.Tone)
						assert.Equal(t, n.Effect, got.Effect)
						assert.Equal(t, n.EffectValue, got.EffectValue)
					}
				}
			}
		}
	}
}

func formatHex2(v int) string {
	const hexDigits = "0123456789ABCDEF"
	return string([]byte{hexDigits[(v>>4)&0xF], hexDigits[v&0xF]})
}

func TestNoteOffSentinel(t *testing.T) {
	n, err := Parse("00FF=0000000")
	require.NoError(t, err)
	assert.Equal(t, NoteOff, n.Tone)
	assert.Equal(t, "00FF=0000000", Format(n))
}

func TestParseRejectsShortStrings(t *testing.T) {
	_, err := Parse("00FF")
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestParseToleratesTruncatedTail(t *testing.T) {
	n, err := Parse("00FFC4")
	require.NoError(t, err)
	assert.Equal(t, 0, n.Effect)
	assert.Equal(t, 0, n.EffectValue)
}

func TestMidiToHzExact(t *testing.T) {
	assert.Equal(t, 440.0, MidiToHz(69))
}

func TestHzMidiRoundTrip(t *testing.T) {
	for n := 0; n <= 127; n++ {
		hz := MidiToHz(float64(n))
		back := HzToMidi(hz)
		assert.Less(t, math.Abs(back-float64(n)), 1e-9)
	}
}

func TestSharpLettersLowercase(t *testing.T) {
	// MIDI 49 = C#3, encoded as letter 'c' (lowercase of the natural 'C' it
	// sharpens). MIDI 61 (C#4) is not usable here: it is the NoteOff sentinel.
	n := Note{Instrument: "00", Velocity: 1, Tone: 49}
	s := Format(n)
	assert.Equal(t, byte('c'), s[4])
}
