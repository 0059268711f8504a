// Package audio is the engine facade's audio sink (spec §4.5, §7
// "AudioContextNotInitialized"): a pull-based bridge from a
// SampleSource (the facade's master mixdown of every InstrumentNode) to
// ebiten/v2/audio's stereo float32 player.
//
// Adapted directly from cbegin-mmlfm-go's internal/audio.StreamReader/
// Player, which already implements exactly this role for its FM engine's
// RenderFrame output; this version adds Gate/ErrNotInitialized so
// the facade can implement spec §7's AudioContextNotInitialized policy
// ("mutations requiring the graph are silently ignored until init_audio
// succeeds") instead of panicking on a nil context.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// ErrNotInitialized is returned by operations that require the shared
// audio context before a Player has been bound to the Gate (spec §7
// "AudioContextNotInitialized").
var ErrNotInitialized = errors.New("audio: context not initialized")

// SampleSource is anything that can fill a stereo interleaved float32
// buffer on demand — the engine facade's master mix satisfies this.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		u := math.Float32bits(r.buf[i])
		binary.LittleEndian.PutUint32(p[i*4:], u)
	}
	n := frames * 8
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }

type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioContextErr  error
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioContextErr != nil {
		return nil, audioContextErr
	}
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{
		player: pl,
		reader: reader,
	}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }
func (p *Player) IsPlaying() bool {
	return p.player.IsPlaying()
}

// Position returns the current playback position (what the listener actually hears).
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}

// Gate stands in for a Player before one has been created. The facade
// constructs one immediately so Play/Pause/IsPlaying/Position are always
// safe to call; before Bind supplies the real player they report
// ErrNotInitialized (or a harmless zero value) instead of touching a nil
// pointer, implementing spec §7's AudioContextNotInitialized policy inside
// the stream pump itself rather than in a caller-side bool flag.
type Gate struct {
	mu     sync.Mutex
	player *Player
}

// Bind attaches the live player once it has been created. Only the first
// call takes effect, so a racing second Bind can't swap the player
// out from under an in-flight Play/Pause/Stop call.
func (g *Gate) Bind(p *Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.player == nil {
		g.player = p
	}
}

// Ready reports whether Bind has run.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.player != nil
}

func (g *Gate) current() *Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.player
}

// Play starts the bound player, or reports ErrNotInitialized if Bind hasn't
// run yet.
func (g *Gate) Play() error {
	p := g.current()
	if p == nil {
		return ErrNotInitialized
	}
	p.Play()
	return nil
}

// Pause stops pulling from the source without releasing it. Before Bind it
// does nothing and reports ErrNotInitialized.
func (g *Gate) Pause() error {
	p := g.current()
	if p == nil {
		return ErrNotInitialized
	}
	p.Pause()
	return nil
}

// IsPlaying reports false until Bind has run.
func (g *Gate) IsPlaying() bool {
	p := g.current()
	return p != nil && p.IsPlaying()
}

// Position reports zero until Bind has run.
func (g *Gate) Position() time.Duration {
	p := g.current()
	if p == nil {
		return 0
	}
	return p.Position()
}

// Stop releases the bound player's resources. A no-op before Bind.
func (g *Gate) Stop() error {
	p := g.current()
	if p == nil {
		return nil
	}
	return p.Stop()
}
