package sampledata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := SampleData{
		Channels: [][]float32{
			{0, 0.25, 0.5, 0.75, -0.5, -1, 0},
		},
		SampleRate: 44100,
		StartPoint: 0,
		EndPoint:   1,
		Gain:       1,
	}

	encoded, err := EncodeWAV(original)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeWAV(encoded)
	require.NoError(t, err)
	assert.Equal(t, 44100, decoded.SampleRate)
	require.Len(t, decoded.Channels, 1)
	require.Equal(t, len(original.Channels[0]), decoded.FrameCount())

	for i, want := range original.Channels[0] {
		assert.InDelta(t, float64(want), float64(decoded.Channels[0][i]), 0.001)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, err := DecodeWAV([]byte("not a wav file"))
	assert.Error(t, err)
}

func TestLoopBoundsClampAndOrder(t *testing.T) {
	s := SampleData{
		Channels:   [][]float32{make([]float32, 1000)},
		StartPoint: 0.25,
		EndPoint:   0.75,
	}
	start, end := s.LoopBounds()
	assert.Equal(t, 250, start)
	assert.Equal(t, 750, end)
	assert.Less(t, start, end)
}

func TestLoopBoundsDegenerateRange(t *testing.T) {
	s := SampleData{
		Channels:   [][]float32{make([]float32, 100)},
		StartPoint: 0.5,
		EndPoint:   0.5,
	}
	start, end := s.LoopBounds()
	assert.Less(t, start, end)
}

func TestFrameCountEmpty(t *testing.T) {
	var s SampleData
	assert.Equal(t, 0, s.FrameCount())
}
