package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowcore/trackengine/internal/envelope"
	"github.com/rowcore/trackengine/internal/oscillator"
)

func newTestVoice() *Voice {
	return &Voice{
		Source:         oscillator.New(oscillator.KindSine, 48000),
		AmpEnvelope:    envelope.Envelope{Kind: envelope.KindADSR, Attack: 0.01, Decay: 0.1, Sustain: 0.5, Release: 0.1},
		FilterEnvelope: envelope.Envelope{Kind: envelope.KindADSR, Attack: 0.01, Decay: 0.1, Sustain: 0.5, Release: 0.1},
		InstrumentGain: 1,
		Velocity:       1,
	}
}

func TestNoteOnActivatesVoice(t *testing.T) {
	v := newTestVoice()
	v.NoteOn(60, 1.0, 0)
	assert.True(t, v.Active)
	assert.True(t, v.HasNote)
	assert.Equal(t, 60, v.MidiNote)
}

func TestIsInAttackDuringAttackPhase(t *testing.T) {
	v := newTestVoice()
	v.NoteOn(60, 1.0, 0)
	assert.True(t, v.IsInAttack(0.005))
	assert.False(t, v.IsInAttack(0.02))
}

func TestNoteOffEntersReleaseAndAmpDecaysToZero(t *testing.T) {
	v := newTestVoice()
	v.NoteOn(60, 1.0, 0)
	v.NoteOff(0.5)
	require.True(t, v.Released)
	level := v.AmpLevel(0.5 + v.ReleaseSeconds())
	assert.InDelta(t, 0, level, 1e-6)
}

func TestStealImmediateDeactivates(t *testing.T) {
	v := newTestVoice()
	v.NoteOn(60, 1.0, 0)
	gen := v.Generation
	v.StealImmediate()
	assert.False(t, v.Active)
	assert.Greater(t, v.Generation, gen)
}

func TestRenderProducesBoundedOutput(t *testing.T) {
	v := newTestVoice()
	v.NoteOn(60, 1.0, 0)
	for i := 0; i < 1000; i++ {
		now := float64(i) / 48000
		l, r := v.Render(now)
		assert.LessOrEqual(t, l, 1.5)
		assert.GreaterOrEqual(t, l, -1.5)
		assert.LessOrEqual(t, r, 1.5)
		assert.GreaterOrEqual(t, r, -1.5)
	}
}

func TestRenderIdleVoiceIsSilent(t *testing.T) {
	v := newTestVoice()
	l, r := v.Render(0)
	assert.Equal(t, 0.0, l)
	assert.Equal(t, 0.0, r)
}

func TestCenterPanSplitsEqually(t *testing.T) {
	v := newTestVoice()
	v.NoteOn(60, 1.0, 0)
	v.Pan = 0
	l, r := v.Render(0)
	assert.InDelta(t, l, r, 1e-9)
}
