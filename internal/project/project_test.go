package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowcore/trackengine/internal/instrument"
)

func TestLoadToleratesMissingOptionalInstrumentFields(t *testing.T) {
	data := []byte(`{
		"name": "demo",
		"instruments": [{"id": "00", "name": "lead"}],
		"patterns": [],
		"song": []
	}`)
	p, err := Load(data)
	require.NoError(t, err)
	require.Len(t, p.Instruments, 1)
	got := p.Instruments[0]
	assert.Equal(t, 16, got.MaxVoices)
	assert.Equal(t, 1.0, got.Volume)
	assert.Equal(t, 0.0, got.Pan)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := Project{
		Name:        "roundtrip",
		Instruments: []instrument.Instrument{instrument.Default("00")},
	}
	data, err := Save(p)
	require.NoError(t, err)

	decoded, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", decoded.Name)
	require.Len(t, decoded.Instruments, 1)
	assert.Equal(t, "00", decoded.Instruments[0].ID)
}

func TestSampleBytesDecodesBase64(t *testing.T) {
	p := Project{SampleData: map[string]string{"00": EncodeSample([]byte("RIFF"))}}
	got, ok := p.SampleBytes("00")
	require.True(t, ok)
	assert.Equal(t, []byte("RIFF"), got)
}

func TestSampleBytesMissingInstrument(t *testing.T) {
	p := Project{}
	_, ok := p.SampleBytes("zz")
	assert.False(t, ok)
}

func TestPatternIndexByID(t *testing.T) {
	p := Project{}
	idx := p.PatternIndex()
	assert.Empty(t, idx)
}
