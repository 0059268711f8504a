// Package project implements project-file load/save (spec §6 "Project
// file (JSON)"): name, instruments, patterns, song, and an optional
// instrument-id → encoded-sample-bytes table.
//
// schollz-221e's project persistence (also JSON, also id-keyed) is the
// closest corpus analogue for this shape; this package follows its use of
// json-iterator/go instead of encoding/json for the marshal/unmarshal
// calls themselves.
package project

import (
	"encoding/base64"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/rowcore/trackengine/internal/instrument"
	"github.com/rowcore/trackengine/internal/pattern"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Project is the decoded project file (spec §3 "Project").
type Project struct {
	Name        string                 `json:"name"`
	Instruments []instrument.Instrument `json:"instruments"`
	Patterns    []pattern.Pattern       `json:"patterns"`
	Song        pattern.Song            `json:"song"`
	SampleData  map[string]string       `json:"sampleData,omitempty"` // instrument id -> base64-encoded WAV bytes
}

// Load decodes a project file's JSON bytes.
func Load(data []byte) (Project, error) {
	var p Project
	if err := jsonAPI.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("project: decode: %w", err)
	}
	return p, nil
}

// Save encodes a project back to JSON bytes.
func Save(p Project) ([]byte, error) {
	data, err := jsonAPI.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("project: encode: %w", err)
	}
	return data, nil
}

// SampleBytes decodes the base64-encoded sample payload for instrumentID,
// if present.
func (p Project) SampleBytes(instrumentID string) ([]byte, bool) {
	encoded, ok := p.SampleData[instrumentID]
	if !ok {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// PatternByID returns the pattern with the given id and whether it was
// found.
func (p Project) PatternByID(id string) (pattern.Pattern, bool) {
	for _, pat := range p.Patterns {
		if pat.ID == id {
			return pat, true
		}
	}
	return pattern.Pattern{}, false
}

// PatternIndex builds an id → Pattern lookup, used by the scheduler for
// song-mode row-count computation (pattern.Sequence.MaxRows).
func (p Project) PatternIndex() map[string]pattern.Pattern {
	idx := make(map[string]pattern.Pattern, len(p.Patterns))
	for _, pat := range p.Patterns {
		idx[pat.ID] = pat
	}
	return idx
}

// InstrumentByID returns the instrument with the given id and whether it
// was found.
func (p Project) InstrumentByID(id string) (instrument.Instrument, bool) {
	for _, instr := range p.Instruments {
		if instr.ID == id {
			return instr, true
		}
	}
	return instrument.Instrument{}, false
}

// EncodeSample base64-encodes WAV bytes for embedding in SampleData.
func EncodeSample(wavBytes []byte) string {
	return base64.StdEncoding.EncodeToString(wavBytes)
}
