package oscillator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rowcore/trackengine/internal/sampledata"
)

func TestSquareWaveformBounds(t *testing.T) {
	s := New(KindSquare, 8)
	v := s.NextTonal(1) // phase starts at 0 -> first sample before advance
	assert.Equal(t, 1.0, v)
}

func TestSineStaysBounded(t *testing.T) {
	s := New(KindSine, 48000)
	for i := 0; i < 2000; i++ {
		v := s.NextTonal(440)
		assert.LessOrEqual(t, math.Abs(v), 1.0000001)
	}
}

func TestDetuneShiftsFrequency(t *testing.T) {
	s := New(KindSine, 48000)
	s.Detune = 1200 // one octave up
	assert.InDelta(t, 2.0, s.detuneRatio(), 1e-9)
}

func TestNoiseBufferLoopsAfterTwoSeconds(t *testing.T) {
	const sr = 100.0
	s := New(KindNoise, sr)
	assert.Equal(t, int(noiseSeconds*sr), len(s.noiseBuf))
	first := s.NextNoise()
	for i := 0; i < int(noiseSeconds*sr)-1; i++ {
		s.NextNoise()
	}
	looped := s.NextNoise()
	assert.Equal(t, first, looped)
}

func TestNoiseValuesInRange(t *testing.T) {
	s := New(KindNoise, 1000)
	for i := 0; i < 500; i++ {
		v := s.NextNoise()
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestSamplerOneshotFinishes(t *testing.T) {
	s := New(KindSampler, 44100)
	s.Sample = sampledata.SampleData{
		Channels:   [][]float32{{0, 0.5, 1, 0.5, 0}},
		SampleRate: 44100,
		StartPoint: 0,
		EndPoint:   1,
		Gain:       1,
		LoopType:   sampledata.LoopOneshot,
	}
	done := false
	for i := 0; i < 20 && !done; i++ {
		_, done = s.NextSample(440)
	}
	assert.True(t, done)
}

func TestSamplerForwardLoopsWithoutFinishing(t *testing.T) {
	s := New(KindSampler, 44100)
	s.Sample = sampledata.SampleData{
		Channels:   [][]float32{{0, 0.5, 1, 0.5}},
		SampleRate: 44100,
		StartPoint: 0,
		EndPoint:   1,
		Gain:       1,
		LoopType:   sampledata.LoopForward,
	}
	for i := 0; i < 100; i++ {
		_, done := s.NextSample(440)
		assert.False(t, done)
	}
}

func TestSamplerPingPongReversesDirection(t *testing.T) {
	s := New(KindSampler, 44100)
	s.Sample = sampledata.SampleData{
		Channels:   [][]float32{{0, 0.25, 0.5, 0.75, 1}},
		SampleRate: 44100,
		StartPoint: 0,
		EndPoint:   1,
		Gain:       1,
		LoopType:   sampledata.LoopPingPong,
	}
	s.samplePos = 4.9
	s.pingDir = 1
	for i := 0; i < 5; i++ {
		s.NextSample(44100) // large rate to force boundary crossing
	}
	assert.Equal(t, -1, s.pingDir)
}

func TestIsTonalCategory(t *testing.T) {
	assert.True(t, KindSine.IsTonal())
	assert.True(t, KindTriangle.IsTonal())
	assert.False(t, KindNoise.IsTonal())
	assert.False(t, KindSampler.IsTonal())
}
