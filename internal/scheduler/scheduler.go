// Package scheduler implements the lookahead playback scheduler (spec
// §4.4): it drives a wake-up timer, walks pattern rows at the pattern's
// tempo, and dispatches note-on/note-off/parameter-automation events to an
// instrument Host in two passes per row.
//
// There is no direct teacher analogue — cbegin-mmlfm-go's sequencer steps
// through a parsed MML score tick by tick inside the audio callback itself,
// rather than scheduling absolute future times ahead of a separate clock.
// The functional-options constructor (Option/WithClock) follows
// player.go's PlayerOption pattern; the wake-up loop itself is grounded on
// the idiomatic Go time.AfterFunc self-rescheduling timer, since nothing
// in the corpus implements a lookahead audio scheduler.
package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/rowcore/trackengine/internal/bus"
	"github.com/rowcore/trackengine/internal/param"
	"github.com/rowcore/trackengine/internal/pattern"
)

const (
	scheduleAheadTime = 0.100 // seconds, spec §4.4
	lookahead         = 25 * time.Millisecond
	noteOffEpsilon    = 0.001
)

// Host is the instrument-registry surface the scheduler dispatches
// note-on/off and parameter automation against. internal/engine's facade
// implements this by forwarding to its instrument node map.
type Host interface {
	NoteOn(instrumentID string, midiNote int, velocity, now float64) error
	NoteOff(instrumentID string, midiNote int, now float64) error
	ApplyAutomation(instrumentID string, id param.ID, raw int, now float64) error
	ReleaseAllInstruments(now float64)
}

type trackNote struct {
	instrument string
	tone       int
}

// trackKey scopes "last note on this track" memory to the pattern it came
// from. Layered song-mode patterns (spec §3 "Song": an inner sequence's
// pattern ids play simultaneously) each number their own tracks from 0, so
// two layered patterns' track 0 must not be confused with each other.
type trackKey struct {
	pattern string
	track   int
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source; the engine facade uses
// this to supply its rendered-audio clock instead of wall-clock time.
func WithClock(now func() float64) Option {
	return func(s *Scheduler) { s.clock = now }
}

// Scheduler drives pattern/song playback (spec §4.4).
type Scheduler struct {
	mu   sync.Mutex
	host Host
	bus  *bus.Bus

	clock func() float64
	start time.Time

	patternsByID map[string]pattern.Pattern
	song         pattern.Song
	songMode     bool
	patternID    string

	currentRow      int
	currentSequence int
	nextNoteTime    float64
	tempo           int
	isPlaying       bool

	lastNotePerTrack map[trackKey]trackNote

	timer *time.Timer
}

// New constructs a Scheduler dispatching against host and emitting events
// on eventBus.
func New(host Host, eventBus *bus.Bus, opts ...Option) *Scheduler {
	s := &Scheduler{
		host:             host,
		bus:              eventBus,
		lastNotePerTrack: make(map[trackKey]trackNote),
		tempo:            120,
		start:            time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = func() float64 { return time.Since(s.start).Seconds() }
	}
	return s
}

// rowDuration returns the active sixteenth-note row duration in seconds.
func (s *Scheduler) rowDuration() float64 {
	if s.tempo <= 0 {
		s.tempo = 120
	}
	return 60.0 / float64(s.tempo) / 4.0
}

// SetPattern switches to pattern-mode playback on p. If already playing,
// currentRow and nextNoteTime are preserved so a mid-pattern edit doesn't
// jump (spec §4.4 "setPattern").
func (s *Scheduler) SetPattern(p pattern.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songMode = false
	s.patternID = p.ID
	if s.patternsByID == nil {
		s.patternsByID = make(map[string]pattern.Pattern)
	}
	s.patternsByID[p.ID] = p
	s.tempo = p.Tempo
	if !s.isPlaying {
		s.currentRow = 0
		s.nextNoteTime = s.clock()
	}
}

// UpdatePattern replaces a pattern's notes/tempo in place. Already
// scheduled future rows are not retracted (spec §9 "Open question — stale
// scheduled notes on updatePattern").
func (s *Scheduler) UpdatePattern(p pattern.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patternsByID == nil {
		s.patternsByID = make(map[string]pattern.Pattern)
	}
	s.patternsByID[p.ID] = p
	if s.patternID == p.ID && !s.songMode {
		s.tempo = p.Tempo
	}
}

// SetSong switches to song-mode playback (spec §3 "Song", §4.4 "Song
// mode"). patternsByID must contain every pattern id referenced by song.
func (s *Scheduler) SetSong(song pattern.Song, patternsByID map[string]pattern.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songMode = true
	s.song = song
	s.patternsByID = patternsByID
	s.currentSequence = 0
	if len(song) > 0 && len(song[0]) > 0 {
		if p, ok := patternsByID[song[0][0]]; ok {
			s.tempo = p.Tempo
		}
	}
	if !s.isPlaying {
		s.currentRow = 0
		s.nextNoteTime = s.clock()
	}
}

// Play starts the lookahead tick loop (spec §4.4 "Tick loop").
func (s *Scheduler) Play() {
	s.mu.Lock()
	if s.isPlaying {
		s.mu.Unlock()
		return
	}
	s.isPlaying = true
	s.nextNoteTime = s.clock()
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Emit("playStart", nil)
	}
	s.scheduleTick()
}

// Stop cancels the wake-up timer, releases every instrument's voices, and
// clears per-track note memory (spec §4.4 "Stop").
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.isPlaying = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.lastNotePerTrack = make(map[trackKey]trackNote)
	now := s.clock()
	s.mu.Unlock()

	s.host.ReleaseAllInstruments(now)
	if s.bus != nil {
		s.bus.Emit("playStop", nil)
	}
}

// Seek sets currentRow to be read on the next dispatch cycle (spec §4.4
// "Seek").
func (s *Scheduler) Seek(row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRow = row
}

// scheduleTick arms the next wake-up after lookahead and, on fire, runs
// the lookahead catch-up loop.
func (s *Scheduler) scheduleTick() {
	s.mu.Lock()
	if !s.isPlaying {
		s.mu.Unlock()
		return
	}
	s.timer = time.AfterFunc(lookahead, s.tick)
	s.mu.Unlock()
}

// tick runs the catch-up loop: while nextNoteTime is within
// scheduleAheadTime of now, dispatch the current row and advance (spec
// §4.4 "Tick loop").
func (s *Scheduler) tick() {
	s.mu.Lock()
	if !s.isPlaying {
		s.mu.Unlock()
		return
	}
	now := s.clock()
	for s.nextNoteTime < now+scheduleAheadTime {
		row := s.currentRow
		dispatchTime := s.nextNoteTime
		pats := s.currentPatternsLocked()
		if len(pats) > 0 {
			s.dispatchRowLocked(pats, row, dispatchTime)
		}
		s.advanceLocked()
	}
	s.mu.Unlock()
	s.scheduleTick()
}

// currentPatternsLocked resolves every pattern active for dispatch at the
// current position: one pattern in pattern mode, or every pattern id
// layered in the current song sequence (spec §3 "Song": an inner
// sequence's pattern ids play simultaneously). Caller must hold s.mu.
func (s *Scheduler) currentPatternsLocked() []pattern.Pattern {
	if !s.songMode {
		p, ok := s.patternsByID[s.patternID]
		if !ok {
			return nil
		}
		return []pattern.Pattern{p}
	}
	if len(s.song) == 0 {
		return nil
	}
	seq := s.song[s.currentSequence%len(s.song)]
	pats := make([]pattern.Pattern, 0, len(seq))
	for _, id := range seq {
		if p, ok := s.patternsByID[id]; ok {
			pats = append(pats, p)
		}
	}
	return pats
}

// dispatchRowLocked runs the two-pass dispatch for one row across every
// pattern layered at the current position (spec §4.4 "Row dispatch (two
// passes)"). Caller must hold s.mu.
func (s *Scheduler) dispatchRowLocked(pats []pattern.Pattern, row int, dispatchTime float64) {
	type rowNote struct {
		patternID string
		note      pattern.Note
	}
	var notes []rowNote
	for _, pat := range pats {
		for _, n := range pat.NotesAtRow(row) {
			notes = append(notes, rowNote{patternID: pat.ID, note: n})
		}
	}

	// Pass 1: note-ons.
	for _, rn := range notes {
		n := rn.note
		if n.IsNoteOff() || n.IsAutomation() {
			continue
		}
		if n.Velocity <= 0 {
			continue
		}
		velocity := float64(n.Velocity) / 255.0
		if err := s.host.NoteOn(n.Instrument, n.Tone, velocity, dispatchTime); err != nil {
			log.Printf("scheduler: note_on pattern=%s row=%d track=%d: %v", rn.patternID, row, n.Track, err)
			continue
		}
		key := trackKey{pattern: rn.patternID, track: n.Track}
		s.lastNotePerTrack[key] = trackNote{instrument: n.Instrument, tone: n.Tone}
	}

	// Pass 2: note-offs and parameter automation.
	for _, rn := range notes {
		n := rn.note
		key := trackKey{pattern: rn.patternID, track: n.Track}
		switch {
		case n.IsNoteOff():
			last, ok := s.lastNotePerTrack[key]
			if !ok || last.instrument != n.Instrument {
				log.Printf("scheduler: note-off pattern=%s row=%d track=%d has no matching last note", rn.patternID, row, n.Track)
				continue
			}
			if err := s.host.NoteOff(n.Instrument, last.tone, dispatchTime+noteOffEpsilon); err != nil {
				log.Printf("scheduler: note_off pattern=%s row=%d track=%d: %v", rn.patternID, row, n.Track, err)
			}
			delete(s.lastNotePerTrack, key)
		case n.IsAutomation():
			id, raw := param.DecodeAutomation(n.EffectValue)
			if err := s.host.ApplyAutomation(n.Instrument, id, raw, dispatchTime); err != nil {
				log.Printf("scheduler: automation pattern=%s row=%d track=%d: %v", rn.patternID, row, n.Track, err)
			}
		}
	}

	if s.bus != nil {
		s.bus.Emit("rowChange", row)
	}
}

// advanceLocked advances currentRow (and, in song mode, currentSequence
// and tempo) and nextNoteTime (spec §4.4 "Advancement"). Caller must hold
// s.mu.
func (s *Scheduler) advanceLocked() {
	dur := s.rowDuration()
	s.nextNoteTime += dur

	if !s.songMode {
		pat := s.patternsByID[s.patternID]
		rows := pat.Rows
		if rows <= 0 {
			rows = 1
		}
		s.currentRow = (s.currentRow + 1) % rows
		return
	}

	maxRows := 16
	if len(s.song) > 0 {
		seq := s.song[s.currentSequence%len(s.song)]
		maxRows = seq.MaxRows(s.patternsByID)
	}
	s.currentRow++
	if s.currentRow >= maxRows {
		s.currentRow = 0
		if len(s.song) > 0 {
			s.currentSequence = (s.currentSequence + 1) % len(s.song)
			seq := s.song[s.currentSequence]
			if len(seq) > 0 {
				if p, ok := s.patternsByID[seq[0]]; ok {
					s.tempo = p.Tempo
				}
			}
		}
	}
}

// IsPlaying reports whether the scheduler is currently ticking.
func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isPlaying
}

// LastNoteCount reports how many tracks currently hold "last note"
// memory, used by tests to check the post-Stop invariant (spec §8
// property 4).
func (s *Scheduler) LastNoteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lastNotePerTrack)
}
