package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowpassAttenuatesHighFrequency(t *testing.T) {
	const sr = 48000.0
	f := New(sr, Lowpass, 200, 0.707)

	// Settle on a low-frequency tone, then measure amplitude.
	lowAmp := measureAmplitude(f, sr, 100)

	f2 := New(sr, Lowpass, 200, 0.707)
	highAmp := measureAmplitude(f2, sr, 8000)

	assert.Greater(t, lowAmp, highAmp)
}

func TestHighpassAttenuatesLowFrequency(t *testing.T) {
	const sr = 48000.0
	f := New(sr, Highpass, 2000, 0.707)
	lowAmp := measureAmplitude(f, sr, 60)

	f2 := New(sr, Highpass, 2000, 0.707)
	highAmp := measureAmplitude(f2, sr, 10000)

	assert.Greater(t, highAmp, lowAmp)
}

func TestSetParamsClamps(t *testing.T) {
	f := New(48000, Lowpass, 10, 0.01)
	assert.InDelta(t, 20, f.frequency, 1e-9)
	assert.InDelta(t, 0.1, f.q, 1e-9)

	f.SetParams(100000, 100)
	assert.InDelta(t, 20000, f.frequency, 1e-9)
	assert.InDelta(t, 20, f.q, 1e-9)
}

func measureAmplitude(f *Biquad, sampleRate, toneHz float64) float64 {
	n := 4096
	// discard warm-up
	phase := 0.0
	step := 2 * math.Pi * toneHz / sampleRate
	for i := 0; i < n/2; i++ {
		f.Process(math.Sin(phase))
		phase += step
	}
	var sumSq float64
	for i := 0; i < n/2; i++ {
		out := f.Process(math.Sin(phase))
		phase += step
		sumSq += out * out
	}
	return math.Sqrt(sumSq / float64(n/2))
}
