// Package engine implements the audio engine facade (spec §4.5): the
// instrument registry, master gain, sample store, project-load
// coordination, and the event bus editors observe.
//
// Grounded on cbegin-mmlfm-go's player.go (the teacher's single top-level
// façade holding the engine, a Player, and PlayerOptions) and its
// NewPlayer/Play/Stop lifecycle; this package generalizes "one FM engine"
// to "a registry of InstrumentNodes" and adds the project/sample loading
// spec.md's facade requires, which player.go has no analogue for.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rowcore/trackengine/internal/audio"
	"github.com/rowcore/trackengine/internal/bus"
	"github.com/rowcore/trackengine/internal/instrument"
	"github.com/rowcore/trackengine/internal/oscillator"
	"github.com/rowcore/trackengine/internal/param"
	"github.com/rowcore/trackengine/internal/pattern"
	"github.com/rowcore/trackengine/internal/project"
	"github.com/rowcore/trackengine/internal/sampledata"
	"github.com/rowcore/trackengine/internal/scheduler"
)

const defaultSampleRate = 44100

// ErrUnknownInstrument is the UnknownInstrument recoverable error (spec
// §7): the scheduler (or a direct caller) addressed an instrument id
// absent from the registry.
type ErrUnknownInstrument struct{ ID string }

func (e ErrUnknownInstrument) Error() string {
	return fmt.Sprintf("engine: unknown instrument %q", e.ID)
}

// ErrAudioContextNotInitialized is the AudioContextNotInitialized
// recoverable error (spec §7): a graph mutation was requested before
// InitAudio succeeded.
var ErrAudioContextNotInitialized = audio.ErrNotInitialized

// Engine is the audio engine facade (spec §4.5). The zero value is not
// usable; construct with New.
type Engine struct {
	mu sync.Mutex

	sampleRate int
	masterGain float64

	instruments map[string]*instrument.Node
	samples     map[string]sampledata.SampleData

	bus   *bus.Bus
	sched *scheduler.Scheduler

	clock float64 // seconds of audio rendered so far, advanced by Process
	sink  *audio.Gate
}

// New constructs an Engine at sampleRate with master gain at its spec
// default of 0.75. The audio context itself is not touched until
// InitAudio runs, per spec §4.5 "lazily initializes... on a user-gesture
// entry point".
func New(sampleRate int) *Engine {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	e := &Engine{
		sampleRate:  sampleRate,
		masterGain:  0.75,
		instruments: make(map[string]*instrument.Node),
		samples:     make(map[string]sampledata.SampleData),
		bus:         &bus.Bus{},
		sink:        &audio.Gate{},
	}
	e.sched = scheduler.New(e, e.bus, scheduler.WithClock(e.now))
	return e
}

// now is the scheduler's clock source: the number of seconds of audio the
// sink has actually rendered, so scheduled dispatch times line up with
// the DSP graph's own notion of "now" rather than wall-clock time racing
// ahead of or behind the callback.
func (e *Engine) now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// InitAudio lazily creates the ebiten audio context and starts pulling
// from the engine's mix (spec §4.5 "init_audio"). Safe to call more than
// once; subsequent calls are no-ops. Must run from a user-gesture handler
// on platforms that require one.
func (e *Engine) InitAudio() error {
	if e.sink.Ready() {
		return nil
	}

	player, err := audio.NewPlayer(e.sampleRate, (*mixSource)(e))
	if err != nil {
		return fmt.Errorf("engine: init audio: %w", err)
	}

	e.sink.Bind(player)
	return e.sink.Play()
}

// mixSource adapts *Engine to audio.SampleSource by pulling a stereo mix
// of every active instrument node on each callback.
type mixSource Engine

// Process fills dst (interleaved stereo float32) with the engine's master
// mix, advancing the engine's clock by len(dst)/2 frames.
func (m *mixSource) Process(dst []float32) {
	e := (*Engine)(m)
	e.mu.Lock()
	defer e.mu.Unlock()

	frames := len(dst) / 2
	step := 1.0 / float64(e.sampleRate)
	for i := 0; i < frames; i++ {
		var left, right float64
		for _, node := range e.instruments {
			l, r := node.Render(e.clock)
			left += l
			right += r
		}
		dst[i*2] = float32(left * e.masterGain)
		dst[i*2+1] = float32(right * e.masterGain)
		e.clock += step
	}
}

// SetVolume sets the master gain (spec §4.5 "set_volume"), clamped to
// [0,1].
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.masterGain = v
}

// UpdateInstrument creates the node if absent, else forwards the update;
// never interrupts playback (spec §4.5 "update_instrument").
func (e *Engine) UpdateInstrument(id string, instr instrument.Instrument) {
	e.mu.Lock()
	defer e.mu.Unlock()
	instr.ID = id
	node, ok := e.instruments[id]
	if !ok {
		e.instruments[id] = instrument.NewNode(instr, float64(e.sampleRate))
		return
	}
	node.UpdateInstrument(instr)
}

// GetInstrument returns the live state of the instrument registered
// under id.
func (e *Engine) GetInstrument(id string) (instrument.Instrument, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	node, ok := e.instruments[id]
	if !ok {
		return instrument.Instrument{}, false
	}
	return node.GetInstrument(), true
}

// LoadProject replaces the entire instrument registry from proj (spec
// §4.5 "load_project"): if playing, stop; clear samples; decode the
// embedded sample table concurrently; build fresh nodes for every
// instrument, assigning decoded buffers to samplers; restart if playback
// was active. Emits projectLoaded on success.
func (e *Engine) LoadProject(proj project.Project) error {
	e.mu.Lock()
	wasPlaying := e.sched.IsPlaying()
	e.mu.Unlock()

	if wasPlaying {
		e.sched.Stop()
	}

	decoded, err := e.decodeProjectSamples(proj)
	if err != nil {
		return fmt.Errorf("engine: load project: %w", err)
	}

	e.mu.Lock()
	e.samples = decoded
	nodes := make(map[string]*instrument.Node, len(proj.Instruments))
	for _, instr := range proj.Instruments {
		node := instrument.NewNode(instr, float64(e.sampleRate))
		if instr.Oscillator.Kind == oscillator.KindSampler {
			if buf, ok := decoded[instr.ID]; ok {
				node.SetSampleBuffer(buf)
			}
		}
		nodes[instr.ID] = node
	}
	e.instruments = nodes
	e.mu.Unlock()

	patternsByID := proj.PatternIndex()
	if len(proj.Song) > 0 {
		e.sched.SetSong(proj.Song, patternsByID)
	} else if len(proj.Patterns) > 0 {
		e.sched.SetPattern(proj.Patterns[0])
	}

	if wasPlaying {
		e.sched.Play()
	}

	e.bus.Emit("projectLoaded", proj)
	return nil
}

// decodeProjectSamples decodes every project.SampleData entry
// concurrently, one errgroup goroutine per entry (parallelism is not
// bounded); the first decode error is returned.
func (e *Engine) decodeProjectSamples(proj project.Project) (map[string]sampledata.SampleData, error) {
	decoded := make(map[string]sampledata.SampleData, len(proj.SampleData))
	if len(proj.SampleData) == 0 {
		return decoded, nil
	}

	var mu sync.Mutex
	g, _ := errgroup.WithContext(context.Background())
	for id := range proj.SampleData {
		id := id
		g.Go(func() error {
			raw, ok := proj.SampleBytes(id)
			if !ok {
				return nil
			}
			buf, err := sampledata.DecodeWAV(raw)
			if err != nil {
				return fmt.Errorf("sample %q: %w", id, err)
			}
			mu.Lock()
			decoded[id] = buf
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decoded, nil
}

// LoadSample decodes fileBytes and assigns the result to instrumentID's
// node (spec §4.5 "load_sample"). Returns a DecodeError (surfaced, spec
// §7) on failure.
func (e *Engine) LoadSample(instrumentID string, fileBytes []byte) error {
	buf, err := sampledata.DecodeWAV(fileBytes)
	if err != nil {
		return fmt.Errorf("engine: decode sample for %q: %w", instrumentID, err)
	}

	e.mu.Lock()
	e.samples[instrumentID] = buf
	node, ok := e.instruments[instrumentID]
	e.mu.Unlock()

	if !ok {
		log.Printf("engine: load_sample: %v", ErrUnknownInstrument{ID: instrumentID})
		return nil
	}
	node.SetSampleBuffer(buf)
	e.bus.Emit("sampleLoaded", SampleLoadedEvent{InstrumentID: instrumentID, Buffer: buf})
	return nil
}

// SampleLoadedEvent is the payload of the sampleLoaded topic.
type SampleLoadedEvent struct {
	InstrumentID string
	Buffer       sampledata.SampleData
}

// Play starts scheduler playback. Before InitAudio has succeeded, this is
// a no-op (spec §7 "AudioContextNotInitialized" — starting playback is
// the one mutation that genuinely requires the graph, since nothing would
// be audible without a sink pulling from it).
func (e *Engine) Play() {
	if !e.sink.Ready() {
		log.Printf("engine: play: %v", ErrAudioContextNotInitialized)
		return
	}
	e.sched.Play()
}

// Stop, SetPattern, SetSong, Seek, and UpdatePattern are thin forwarders
// to the scheduler (spec §4.5).
func (e *Engine) Stop()                                 { e.sched.Stop() }
func (e *Engine) SetPattern(p pattern.Pattern)           { e.sched.SetPattern(p) }
func (e *Engine) UpdatePattern(p pattern.Pattern)        { e.sched.UpdatePattern(p) }
func (e *Engine) Seek(row int)                           { e.sched.Seek(row) }
func (e *Engine) IsPlaying() bool                        { return e.sched.IsPlaying() }
func (e *Engine) SetSong(song pattern.Song, byID map[string]pattern.Pattern) {
	e.sched.SetSong(song, byID)
}

// On subscribes handler to topic (spec §4.5 "on").
func (e *Engine) On(topic string, handler bus.Handler) bus.Subscription {
	return e.bus.On(topic, handler)
}

// Off unsubscribes a previously registered handler (spec §4.5 "off").
func (e *Engine) Off(sub bus.Subscription) { e.bus.Off(sub) }

// NoteOn implements scheduler.Host, forwarding to the named instrument's
// node. Returns ErrUnknownInstrument if id is not registered (spec §7
// "UnknownInstrument").
func (e *Engine) NoteOn(instrumentID string, midiNote int, velocity, now float64) error {
	e.mu.Lock()
	node, ok := e.instruments[instrumentID]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownInstrument{ID: instrumentID}
	}
	node.NoteOn(midiNote, velocity, now)
	return nil
}

// NoteOff implements scheduler.Host.
func (e *Engine) NoteOff(instrumentID string, midiNote int, now float64) error {
	e.mu.Lock()
	node, ok := e.instruments[instrumentID]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownInstrument{ID: instrumentID}
	}
	node.NoteOff(midiNote, now)
	return nil
}

// ApplyAutomation implements scheduler.Host, decoding a parameter
// automation and applying it through update_instrument (spec §4.4 pass
// 2).
func (e *Engine) ApplyAutomation(instrumentID string, id param.ID, raw int, now float64) error {
	e.mu.Lock()
	node, ok := e.instruments[instrumentID]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownInstrument{ID: instrumentID}
	}
	next := instrument.ApplyAutomation(node.GetInstrument(), id, raw)
	node.UpdateInstrument(next)
	return nil
}

// ReleaseAllInstruments implements scheduler.Host, releasing every active
// voice on every registered instrument (spec §4.4 "Stop").
func (e *Engine) ReleaseAllInstruments(now float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, node := range e.instruments {
		node.ReleaseAll(now)
	}
}
