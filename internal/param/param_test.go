package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeAutomation(t *testing.T) {
	// S4: effectValue 0x4180 -> paramId 0x41 (PAN), raw 0x80.
	id, raw := DecodeAutomation(0x4180)
	assert.Equal(t, Pan, id)
	assert.Equal(t, 0x80, raw)
}

func TestPanNormalization(t *testing.T) {
	// S4: raw 0x80 = 128 -> (128/255)*2 - 1 ~= 0.004.
	v := NormalizeFloat(Pan, 0x80)
	assert.InDelta(t, 0.0039, v, 1e-3)
}

func TestFilterFrequencyRange(t *testing.T) {
	assert.InDelta(t, 20, NormalizeFloat(FilterFrequency, 0), 1e-6)
	assert.InDelta(t, 20000, NormalizeFloat(FilterFrequency, 255), 1)
}

func TestMaxVoicesFloored(t *testing.T) {
	v := NormalizeInt(MaxVoices, 0)
	assert.Equal(t, 1, v)
	v = NormalizeInt(MaxVoices, 255)
	assert.Equal(t, 32, v)
}

func TestOscillatorTypeIndex(t *testing.T) {
	assert.Equal(t, 0, NormalizeInt(OscillatorType, 0))
	assert.Equal(t, 5, NormalizeInt(OscillatorType, 255))
}

func TestLFOFrequencyRange(t *testing.T) {
	assert.InDelta(t, 0.1, NormalizeFloat(LFO1Freq, 0), 1e-6)
	assert.InDelta(t, 20, NormalizeFloat(LFO1Freq, 255), 1e-6)
}
