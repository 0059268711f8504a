package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowcore/trackengine/internal/envelope"
	"github.com/rowcore/trackengine/internal/lfo"
	"github.com/rowcore/trackengine/internal/oscillator"
	"github.com/rowcore/trackengine/internal/param"
)

func TestNoteOnAllocatesFreeVoice(t *testing.T) {
	instr := Default("00")
	n := NewNode(instr, 48000)
	n.NoteOn(60, 1.0, 0)
	assert.Equal(t, 1, n.ActiveVoiceCount())
}

func TestRetriggerSameNoteReusesVoice(t *testing.T) {
	instr := Default("00")
	instr.MaxVoices = 4
	n := NewNode(instr, 48000)
	n.NoteOn(60, 1.0, 0)
	n.NoteOn(60, 1.0, 0.01)
	assert.Equal(t, 1, n.ActiveVoiceCount())
}

// S3 — Voice stealing: maxVoices=2, ADSR(0.01,0.1,0.5,0.1). Play C4 at
// t=0, D4 at t=0.2, E4 at t=0.4. At t=0.4 both voices are past attack; the
// oldest (C4) is stolen.
func TestVoiceStealingPicksOldestPastAttack(t *testing.T) {
	instr := Default("00")
	instr.MaxVoices = 2
	instr.Envelope = envelope.Envelope{Kind: envelope.KindADSR, Attack: 0.01, Decay: 0.1, Sustain: 0.5, Release: 0.1}
	n := NewNode(instr, 48000)

	n.NoteOn(60, 1.0, 0)   // C4
	n.NoteOn(62, 1.0, 0.2) // D4
	n.NoteOn(64, 1.0, 0.4) // E4, must steal C4

	require.Equal(t, 2, n.ActiveVoiceCount())
	assert.Equal(t, -1, n.findByNote(60))
	assert.GreaterOrEqual(t, n.findByNote(62), 0)
	assert.GreaterOrEqual(t, n.findByNote(64), 0)
}

func TestActiveVoiceCountNeverExceedsMaxVoices(t *testing.T) {
	instr := Default("00")
	instr.MaxVoices = 3
	n := NewNode(instr, 48000)
	for note := 60; note < 70; note++ {
		n.NoteOn(note, 1.0, float64(note)*0.5)
		assert.LessOrEqual(t, n.ActiveVoiceCount(), 3)
	}
}

func TestNoteOffReleasesVoice(t *testing.T) {
	instr := Default("00")
	instr.Envelope = envelope.Envelope{Kind: envelope.KindADSR, Attack: 0.001, Decay: 0.01, Sustain: 0.5, Release: 0.05}
	n := NewNode(instr, 48000)
	n.NoteOn(60, 1.0, 0)
	n.NoteOff(60, 0.1)
	idx := n.findByNote(60)
	require.GreaterOrEqual(t, idx, 0)
	assert.True(t, n.voices[idx].Released)
}

func TestStopTransitionsVoiceToIdleOverRelease(t *testing.T) {
	instr := Default("00")
	instr.Envelope = envelope.Envelope{Kind: envelope.KindADSR, Attack: 0.001, Decay: 0.01, Sustain: 0.5, Release: 0.02}
	n := NewNode(instr, 48000)
	n.NoteOn(60, 1.0, 0)
	n.ReleaseAll(0.05)
	idx := n.findByNote(60)
	require.GreaterOrEqual(t, idx, 0)
	level := n.voices[idx].AmpLevel(0.05 + 0.03)
	assert.InDelta(t, 0, level, 1e-6)

	n.Render(0.05 + 0.03)
	assert.Equal(t, 0, n.ActiveVoiceCount())
}

// S8 property — update_instrument that changes only volume preserves
// audible continuity: post/pre gain ratio equals new.volume/old.volume.
func TestUpdateInstrumentVolumeRescalesActiveVoiceGain(t *testing.T) {
	instr := Default("00")
	instr.Volume = 0.5
	n := NewNode(instr, 48000)
	n.NoteOn(60, 1.0, 0)
	idx := n.findByNote(60)
	before := n.voices[idx].InstrumentGain

	next := instr
	next.Volume = 1.0
	n.UpdateInstrument(next)

	after := n.voices[idx].InstrumentGain
	assert.InDelta(t, 2.0, after/before, 1e-9)
}

func TestUpdateInstrumentRebuildsPoolOnMaxVoicesChange(t *testing.T) {
	instr := Default("00")
	instr.MaxVoices = 4
	n := NewNode(instr, 48000)
	n.NoteOn(60, 1.0, 0)

	next := instr
	next.MaxVoices = 8
	n.UpdateInstrument(next)

	assert.Len(t, n.voices, 8)
	assert.Equal(t, 0, n.ActiveVoiceCount())
}

func TestUpdateInstrumentRebuildsPoolOnOscillatorCategoryChange(t *testing.T) {
	instr := Default("00")
	n := NewNode(instr, 48000)
	n.NoteOn(60, 1.0, 0)

	next := instr
	next.Oscillator.Kind = oscillator.KindNoise
	n.UpdateInstrument(next)

	assert.Equal(t, 0, n.ActiveVoiceCount())
	assert.Equal(t, oscillator.KindNoise, n.voices[0].Source.Kind)
}

func TestUpdateInstrumentKeepsVoicesWithinTonalCategory(t *testing.T) {
	instr := Default("00")
	n := NewNode(instr, 48000)
	n.NoteOn(60, 1.0, 0)

	next := instr
	next.Oscillator.Kind = oscillator.KindSquare
	n.UpdateInstrument(next)

	assert.Equal(t, 1, n.ActiveVoiceCount())
}

// S5 — LFO2 modulates LFO1 depth: LFO1 target=FILTER_FREQUENCY depth=0.5;
// LFO2 target=lfo1_depth depth=0.3. Effective LFO1 depth oscillates around
// 0.5 by up to ±0.3.
func TestLFO2ModulatesLFO1Depth(t *testing.T) {
	instr := Default("00")
	instr.LFO1 = LFOConfig{Waveform: lfo.WaveSine, Frequency: 4, Depth: 0.5, Target: lfo.TargetFilterFrequency}
	instr.LFO2 = LFOConfig{Waveform: lfo.WaveSquare, Frequency: 1, Depth: 0.3, Target: lfo.TargetLFO1Depth}
	n := NewNode(instr, 1000)
	n.NoteOn(60, 1.0, 0)

	sawDeviation := false
	for i := 0; i < 500; i++ {
		now := float64(i) / 1000
		n.Render(now)
		idx := n.findByNote(60)
		if idx >= 0 && n.voices[idx].FilterModAdd != 0 {
			sawDeviation = true
		}
	}
	assert.True(t, sawDeviation)
}

func TestLFO1CannotBeRoutedToCrossTarget(t *testing.T) {
	instr := Default("00")
	instr.LFO1.Target = lfo.TargetLFO1Depth // invalid for LFO1
	n := NewNode(instr, 48000)
	assert.Equal(t, lfo.TargetNone, n.lfo1.Target)
}

func TestMissingSampleFallsBackToSine(t *testing.T) {
	instr := Default("00")
	instr.Oscillator.Kind = oscillator.KindSampler
	n := NewNode(instr, 48000)
	assert.Equal(t, oscillator.KindSine, n.voices[0].Source.Kind)
}

// S4 — Parameter automation: raw 0x80 on PAN normalizes to ~0.004.
func TestApplyAutomationSetsPan(t *testing.T) {
	instr := Default("00")
	id, raw := param.DecodeAutomation(0x4180)
	next := ApplyAutomation(instr, id, raw)
	assert.InDelta(t, 0.00392, next.Pan, 1e-3)
}
