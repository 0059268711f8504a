// Package pattern holds the tracker pattern/song data model (spec §3): the
// grid of notes a playback scheduler walks, grouped into patterns and
// songs. It has no teacher analogue in cbegin-mmlfm-go (its sequencer
// works from a text MML score, not a row/track grid); the shapes here are
// grounded directly on spec §3's "Pattern"/"Song" definitions and
// named the way schollz-221e's OSC message structs are — small exported
// structs with json tags, no behavior beyond validation helpers.
package pattern

import (
	"fmt"

	"github.com/rowcore/trackengine/internal/note"
)

// Note is one tracker cell, addressed by its position inside a Pattern.
type Note struct {
	Row         int    `json:"row"`
	Track       int    `json:"track"`
	Instrument  string `json:"instrument"`
	Tone        int    `json:"tone"`
	Velocity    int    `json:"velocity"`
	Effect      int    `json:"effect"`
	EffectValue int    `json:"effectValue"`
}

// IsNoteOff reports whether this note is the note-off sentinel.
func (n Note) IsNoteOff() bool {
	return n.Tone == note.NoteOff
}

// IsAutomation reports whether this note is a parameter-automation note.
func (n Note) IsAutomation() bool {
	return n.Effect == note.AutomationEffect
}

// cellKey addresses a (row, track) pair, used to enforce the
// one-note-per-cell invariant.
type cellKey struct {
	row, track int
}

// Pattern is a tempo-tagged grid of notes (spec §3 "Pattern").
type Pattern struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tempo  int    `json:"tempo"` // BPM, 40..300
	Tracks int    `json:"tracks"`
	Rows   int    `json:"rows"`
	Notes  []Note `json:"notes"`
}

// RowDuration returns the time, in seconds, a single sixteenth-note row
// occupies at this pattern's tempo (spec §4.4 "Timing").
func (p Pattern) RowDuration() float64 {
	tempo := p.Tempo
	if tempo <= 0 {
		tempo = 120
	}
	return 60.0 / float64(tempo) / 4.0
}

// Validate checks the structural invariants spec §3 requires of a Pattern:
// tempo/track/row ranges and at most one note per (row, track).
func (p Pattern) Validate() error {
	if p.Tempo < 40 || p.Tempo > 300 {
		return fmt.Errorf("pattern: tempo %d out of range [40,300]", p.Tempo)
	}
	if p.Tracks < 1 || p.Tracks > 16 {
		return fmt.Errorf("pattern: tracks %d out of range [1,16]", p.Tracks)
	}
	if p.Rows < 1 {
		return fmt.Errorf("pattern: rows %d must be positive", p.Rows)
	}
	seen := make(map[cellKey]bool, len(p.Notes))
	for _, n := range p.Notes {
		if n.Row < 0 || n.Row >= p.Rows {
			return fmt.Errorf("pattern: note row %d out of range [0,%d)", n.Row, p.Rows)
		}
		if n.Track < 0 || n.Track >= p.Tracks {
			return fmt.Errorf("pattern: note track %d out of range [0,%d)", n.Track, p.Tracks)
		}
		key := cellKey{n.Row, n.Track}
		if seen[key] {
			return fmt.Errorf("pattern: duplicate note at row %d track %d", n.Row, n.Track)
		}
		seen[key] = true
	}
	return nil
}

// NotesAtRow returns the notes scheduled at the given row, in the order they
// appear in Notes.
func (p Pattern) NotesAtRow(row int) []Note {
	var out []Note
	for _, n := range p.Notes {
		if n.Row == row {
			out = append(out, n)
		}
	}
	return out
}

// Sequence is an ordered list of pattern ids played simultaneously, for the
// duration of the longest constituent pattern (spec §3 "Song").
type Sequence []string

// Song is an ordered sequence of Sequences.
type Song []Sequence

// MaxRows returns the row count the scheduler advances against for a
// sequence: the largest Rows among the named patterns, or 16 if none are
// found (spec §4.4 "Advancement", song mode).
func (s Sequence) MaxRows(byID map[string]Pattern) int {
	maxRows := 0
	for _, id := range s {
		if p, ok := byID[id]; ok && p.Rows > maxRows {
			maxRows = p.Rows
		}
	}
	if maxRows == 0 {
		return 16
	}
	return maxRows
}
