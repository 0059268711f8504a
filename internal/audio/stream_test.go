package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateReportsNotInitializedBeforeBind(t *testing.T) {
	var g Gate
	assert.False(t, g.Ready())
	assert.ErrorIs(t, g.Play(), ErrNotInitialized)
	assert.ErrorIs(t, g.Pause(), ErrNotInitialized)
	assert.False(t, g.IsPlaying())
	assert.Equal(t, int64(0), g.Position().Nanoseconds())
	assert.NoError(t, g.Stop())
}

func TestGateBindIgnoresSecondPlayer(t *testing.T) {
	var g Gate
	first := &Player{}
	second := &Player{}
	g.Bind(first)
	g.Bind(second)

	assert.True(t, g.Ready())
	assert.Same(t, first, g.current())
}
