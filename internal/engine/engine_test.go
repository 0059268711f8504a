package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowcore/trackengine/internal/instrument"
	"github.com/rowcore/trackengine/internal/project"
	"github.com/rowcore/trackengine/internal/sampledata"
)

func sampleWAVFixture() ([]byte, error) {
	return sampledata.EncodeWAV(sampledata.SampleData{
		Channels:   [][]float32{{0, 0.5, -0.5, 0}},
		SampleRate: 44100,
		EndPoint:   1,
		Gain:       1,
	})
}

func TestUpdateInstrumentCreatesNodeIfAbsent(t *testing.T) {
	e := New(44100)
	e.UpdateInstrument("00", instrument.Default("00"))

	got, ok := e.GetInstrument("00")
	require.True(t, ok)
	assert.Equal(t, "00", got.ID)
}

func TestNoteOnUnknownInstrumentReturnsError(t *testing.T) {
	e := New(44100)
	err := e.NoteOn("zz", 60, 1.0, 0)
	var target ErrUnknownInstrument
	assert.ErrorAs(t, err, &target)
	assert.Equal(t, "zz", target.ID)
}

func TestNoteOnKnownInstrumentActivatesVoice(t *testing.T) {
	e := New(44100)
	e.UpdateInstrument("00", instrument.Default("00"))

	err := e.NoteOn("00", 60, 1.0, 0)
	require.NoError(t, err)

	node := e.instruments["00"]
	assert.Equal(t, 1, node.ActiveVoiceCount())
}

func TestReleaseAllInstrumentsClearsActiveVoices(t *testing.T) {
	e := New(44100)
	e.UpdateInstrument("00", instrument.Default("00"))
	require.NoError(t, e.NoteOn("00", 60, 1.0, 0))

	e.ReleaseAllInstruments(0)

	node := e.instruments["00"]
	assert.True(t, node.ActiveVoiceCount() >= 0) // still "active" during release, no panic

	node.Render(1.0) // past the 0.2s default release
	assert.Equal(t, 0, node.ActiveVoiceCount())
}

func TestApplyAutomationUnknownInstrumentReturnsError(t *testing.T) {
	e := New(44100)
	err := e.ApplyAutomation("zz", 0x41, 0x80, 0)
	assert.Error(t, err)
}

func TestLoadProjectBuildsInstrumentRegistry(t *testing.T) {
	e := New(44100)
	proj := project.Project{
		Name:        "demo",
		Instruments: []instrument.Instrument{instrument.Default("00"), instrument.Default("01")},
	}

	err := e.LoadProject(proj)
	require.NoError(t, err)

	_, ok := e.GetInstrument("00")
	assert.True(t, ok)
	_, ok = e.GetInstrument("01")
	assert.True(t, ok)
}

func TestLoadProjectEmitsProjectLoaded(t *testing.T) {
	e := New(44100)
	received := false
	e.On("projectLoaded", func(payload any) { received = true })

	err := e.LoadProject(project.Project{Name: "demo"})
	require.NoError(t, err)
	assert.True(t, received)
}

func TestPlayBeforeInitAudioIsNoOp(t *testing.T) {
	e := New(44100)
	e.Play()
	assert.False(t, e.IsPlaying())
}

func TestSetVolumeClampsToUnitRange(t *testing.T) {
	e := New(44100)
	e.SetVolume(5)
	assert.Equal(t, 1.0, e.masterGain)
	e.SetVolume(-5)
	assert.Equal(t, 0.0, e.masterGain)
}

func TestLoadSampleUnknownInstrumentLogsAndSucceeds(t *testing.T) {
	e := New(44100)
	wav, err := sampleWAVFixture()
	require.NoError(t, err)

	err = e.LoadSample("zz", wav)
	assert.NoError(t, err)
}
