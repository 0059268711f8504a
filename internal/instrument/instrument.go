// Package instrument implements the Instrument data record and the
// InstrumentNode runtime: a fixed-size voice pool, LFO routing, envelope
// wiring, and the non-disruptive update rules of spec §4.3.
//
// The voice pool sizing and allocation/stealing policy are grounded on
// cbegin-mmlfm-go's internal/fm.Engine (fixed-size `voices []voice`
// slice, `stealVoice` scanning for an inactive slot before falling back to
// stealing); this package generalizes stealing from "quietest envelope" to
// the spec's "oldest voice not in attack phase" rule, and splits the
// teacher's single global LFO trio into two per-instrument, retargetable
// LFOs (internal/lfo).
package instrument

import (
	"errors"
	"fmt"
	"log"

	jsoniter "github.com/json-iterator/go"

	"github.com/rowcore/trackengine/internal/envelope"
	"github.com/rowcore/trackengine/internal/filter"
	"github.com/rowcore/trackengine/internal/lfo"
	"github.com/rowcore/trackengine/internal/oscillator"
	"github.com/rowcore/trackengine/internal/param"
	"github.com/rowcore/trackengine/internal/sampledata"
	"github.com/rowcore/trackengine/internal/voice"
)

// ErrMissingSample is the MissingSample recoverable error (spec §7): a
// sampler instrument has no assigned buffer. The node falls back to a sine
// tone and logs a diagnostic; it never returns this to halt playback.
var ErrMissingSample = errors.New("instrument: sampler has no sample buffer, falling back to sine")

// OscillatorConfig is the instrument-level oscillator/sample-source
// configuration (spec §3 "Oscillator"). Sample carries the decoded buffer
// only at runtime; project files reference it indirectly through the
// project's own sampleData table (spec §6), so it is excluded from JSON.
type OscillatorConfig struct {
	Kind   oscillator.Kind       `json:"kind"`
	Detune float64               `json:"detune"`
	Sample sampledata.SampleData `json:"-"`
}

// FilterConfig is the instrument-level filter configuration (spec §3
// "Filter").
type FilterConfig struct {
	Type           filter.Type       `json:"type"`
	Frequency      float64           `json:"frequency"`
	Resonance      float64           `json:"resonance"`
	EnvelopeAmount float64           `json:"envelopeAmount"` // [-1,1]
	Envelope       envelope.Envelope `json:"envelope"`
}

// LFOConfig is one of an instrument's two LFO configurations (spec §3
// "LFO").
type LFOConfig struct {
	Waveform  lfo.Waveform `json:"waveform"`
	Frequency float64      `json:"frequency"`
	Depth     float64      `json:"depth"`
	Target    lfo.Target   `json:"target"`
}

// Instrument is the persisted instrument record (spec §3 "Instrument").
type Instrument struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Volume     float64           `json:"volume"`
	Pan        float64           `json:"pan"`
	MaxVoices  int               `json:"maxVoices"`
	Oscillator OscillatorConfig  `json:"oscillator"`
	Filter     FilterConfig      `json:"filter"`
	Envelope   envelope.Envelope `json:"envelope"` // amplitude envelope
	LFO1       LFOConfig         `json:"lfo1"`
	LFO2       LFOConfig         `json:"lfo2"`
}

// UnmarshalJSON decodes a project-file instrument, tolerating missing
// volume/pan/maxVoices/lfo1/lfo2 fields by falling back to Default's values
// (spec §6 "Project file (JSON)"). Decoding onto a struct pre-populated
// with defaults means fields absent from the JSON object are left
// untouched rather than zeroed.
func (i *Instrument) UnmarshalJSON(data []byte) error {
	type alias Instrument
	aux := alias(Default(""))
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("instrument: decode: %w", err)
	}
	*i = Instrument(aux)
	return nil
}

// Default returns a new Instrument with the defaults spec §3 names
// (maxVoices=16) plus reasonable synthesis defaults for the fields the
// spec leaves to implementers.
func Default(id string) Instrument {
	return Instrument{
		ID:        id,
		Name:      fmt.Sprintf("instrument %s", id),
		Volume:    1,
		Pan:       0,
		MaxVoices: 16,
		Oscillator: OscillatorConfig{
			Kind:   oscillator.KindSine,
			Detune: 0,
		},
		Filter: FilterConfig{
			Type:           filter.Lowpass,
			Frequency:      12000,
			Resonance:      0.707,
			EnvelopeAmount: 0,
			Envelope:       envelope.Envelope{Kind: envelope.KindADSR, Attack: 0.01, Decay: 0.2, Sustain: 0, Release: 0.2},
		},
		Envelope: envelope.Envelope{Kind: envelope.KindADSR, Attack: 0.01, Decay: 0.1, Sustain: 0.8, Release: 0.2},
		LFO1:     LFOConfig{Waveform: lfo.WaveSine, Frequency: 2, Depth: 0, Target: lfo.TargetNone},
		LFO2:     LFOConfig{Waveform: lfo.WaveSine, Frequency: 2, Depth: 0, Target: lfo.TargetNone},
	}
}

// category groups oscillator kinds the way update_instrument must (spec
// §4.3: "tonal ↔ noise ↔ sampler"), so a change inside a category (e.g.
// sine → square) never forces a pool rebuild.
type category int

const (
	categoryTonal category = iota
	categoryNoise
	categorySampler
)

func categoryOf(k oscillator.Kind) category {
	switch k {
	case oscillator.KindNoise:
		return categoryNoise
	case oscillator.KindSampler:
		return categorySampler
	default:
		return categoryTonal
	}
}

// Node is the runtime voice pool and LFO router for one Instrument.
type Node struct {
	instrument Instrument
	sampleRate float64
	voices     []voice.Voice
	lfo1       *lfo.LFO
	lfo2       *lfo.LFO
}

// NewNode builds a fresh voice pool for instrument at sampleRate.
func NewNode(instrument Instrument, sampleRate float64) *Node {
	n := &Node{sampleRate: sampleRate}
	n.rebuild(instrument)
	return n
}

// GetInstrument returns the node's current instrument state (spec §4.3
// "get_instrument").
func (n *Node) GetInstrument() Instrument { return n.instrument }

// rebuild tears down and recreates the voice pool, LFOs, and per-voice
// sources/filters from scratch.
func (n *Node) rebuild(instrument Instrument) {
	if instrument.MaxVoices < 1 {
		instrument.MaxVoices = 1
	}
	if instrument.MaxVoices > 32 {
		instrument.MaxVoices = 32
	}
	n.instrument = instrument
	n.voices = make([]voice.Voice, instrument.MaxVoices)
	for i := range n.voices {
		n.voices[i] = n.newVoice()
	}
	n.lfo1 = &lfo.LFO{}
	n.lfo2 = &lfo.LFO{}
	n.routeLFOs()
}

func (n *Node) newVoice() voice.Voice {
	osc := n.instrument.Oscillator
	src := oscillator.New(osc.Kind, n.sampleRate)
	src.Detune = osc.Detune
	if osc.Kind == oscillator.KindSampler {
		src.Sample = osc.Sample
		if src.Sample.FrameCount() == 0 {
			log.Printf("instrument %s: %v", n.instrument.ID, ErrMissingSample)
			src.Kind = oscillator.KindSine
		}
	}
	f := n.instrument.Filter
	return voice.Voice{
		Source:         src,
		Filter:         filter.New(n.sampleRate, f.Type, f.Frequency, f.Resonance),
		AmpEnvelope:    n.instrument.Envelope,
		FilterEnvelope: f.Envelope,
		FilterEnvAmt:   f.EnvelopeAmount,
		InstrumentGain: n.instrument.Volume,
		Pan:            n.instrument.Pan,
		BaseFilterFreq: f.Frequency,
		BaseFilterQ:    f.Resonance,
	}
}

// findByNote returns the index of an active voice currently holding
// midiNote, or -1.
func (n *Node) findByNote(midiNote int) int {
	for i := range n.voices {
		if n.voices[i].Active && n.voices[i].HasNote && n.voices[i].MidiNote == midiNote {
			return i
		}
	}
	return -1
}

// allocate implements the voice allocation/stealing policy of spec §4.2.
func (n *Node) allocate(midiNote int, now float64) int {
	if i := n.findByNote(midiNote); i >= 0 {
		return i
	}
	for i := range n.voices {
		if !n.voices[i].Active {
			return i
		}
	}
	// Steal the oldest voice not currently in attack; if all are in attack,
	// steal the globally oldest.
	bestIdx, bestStart := -1, 0.0
	bestAttackIdx, bestAttackStart := -1, 0.0
	for i := range n.voices {
		v := &n.voices[i]
		if v.IsInAttack(now) {
			if bestAttackIdx == -1 || v.StartTime < bestAttackStart {
				bestAttackIdx, bestAttackStart = i, v.StartTime
			}
			continue
		}
		if bestIdx == -1 || v.StartTime < bestStart {
			bestIdx, bestStart = i, v.StartTime
		}
	}
	if bestIdx >= 0 {
		return bestIdx
	}
	return bestAttackIdx
}

// NoteOn allocates (or retriggers) a voice for midiNote at time and starts
// it (spec §4.3 "note_on").
func (n *Node) NoteOn(midiNote int, velocity, now float64) {
	velocity = clamp01(velocity)
	idx := n.allocate(midiNote, now)
	if idx < 0 {
		return
	}
	v := &n.voices[idx]
	retrigger := v.Active
	if v.Active && !(v.HasNote && v.MidiNote == midiNote) {
		v.StealImmediate()
	}
	startTime := now
	if retrigger {
		startTime = now + 0.001 // retrigger epsilon, spec §4.2
	}
	v.InstrumentGain = n.instrument.Volume
	v.Pan = n.instrument.Pan
	v.AmpEnvelope = n.instrument.Envelope
	v.FilterEnvelope = n.instrument.Filter.Envelope
	v.FilterEnvAmt = n.instrument.Filter.EnvelopeAmount
	v.BaseFilterFreq = n.instrument.Filter.Frequency
	v.BaseFilterQ = n.instrument.Filter.Resonance
	v.NoteOn(midiNote, velocity, startTime)
}

// NoteOff releases the voice currently holding midiNote, if any (spec §4.3
// "note_off").
func (n *Node) NoteOff(midiNote int, now float64) {
	idx := n.findByNote(midiNote)
	if idx < 0 {
		return
	}
	n.voices[idx].NoteOff(now)
}

// ReleaseAll releases every active voice at now (spec §4.3 "release_all").
func (n *Node) ReleaseAll(now float64) {
	for i := range n.voices {
		if n.voices[i].Active {
			n.voices[i].NoteOff(now)
		}
	}
}

// ActiveVoiceCount returns the number of currently active voices, used to
// check the `active ≤ maxVoices` invariant (spec §8 property 3).
func (n *Node) ActiveVoiceCount() int {
	count := 0
	for i := range n.voices {
		if n.voices[i].Active {
			count++
		}
	}
	return count
}

// SetSampleBuffer replaces the cached sample buffer used by sampler voices
// (spec §4.3 "set_sample_buffer").
func (n *Node) SetSampleBuffer(buf sampledata.SampleData) {
	n.instrument.Oscillator.Sample = buf
	for i := range n.voices {
		n.voices[i].Source.Sample = buf
	}
}

// GetSampleBuffer returns the node's cached sample buffer, if any (spec
// §4.3 "get_sample_buffer").
func (n *Node) GetSampleBuffer() (sampledata.SampleData, bool) {
	buf := n.instrument.Oscillator.Sample
	return buf, buf.FrameCount() > 0
}

// UpdateInstrument applies a new Instrument state using the
// non-disruptive rules of spec §4.3 "update_instrument".
func (n *Node) UpdateInstrument(next Instrument) {
	prev := n.instrument
	if next.MaxVoices < 1 {
		next.MaxVoices = 1
	}
	if next.MaxVoices > 32 {
		next.MaxVoices = 32
	}

	if next.MaxVoices != prev.MaxVoices || categoryOf(next.Oscillator.Kind) != categoryOf(prev.Oscillator.Kind) {
		n.rebuild(next)
		return
	}

	n.instrument = next

	for i := range n.voices {
		v := &n.voices[i]
		v.Filter.SetType(next.Filter.Type)
		v.BaseFilterFreq = next.Filter.Frequency
		v.BaseFilterQ = next.Filter.Resonance
		v.FilterEnvAmt = next.Filter.EnvelopeAmount
		v.FilterEnvelope = next.Filter.Envelope
		v.Pan = next.Pan
		if prev.Volume != 0 {
			v.InstrumentGain *= next.Volume / prev.Volume
		} else {
			v.InstrumentGain = next.Volume
		}
		if categoryOf(next.Oscillator.Kind).isTonal() {
			v.Source.Kind = next.Oscillator.Kind
			v.Source.Detune = next.Oscillator.Detune
		}
	}

	if next.Oscillator.Kind == oscillator.KindSampler && next.Oscillator.Sample.FrameCount() > 0 {
		n.SetSampleBuffer(next.Oscillator.Sample)
	}

	if next.LFO1 != prev.LFO1 || next.LFO2 != prev.LFO2 {
		n.routeLFOs()
	}
}

func (c category) isTonal() bool { return c == categoryTonal }

// routeLFOs re-derives the two LFO oscillators' running parameters from
// the instrument's configured LFOConfigs (spec §4.3 "LFO routing").
// Target routing itself is evaluated per-sample in Render, since the
// modulation value changes every sample; this only updates the
// oscillators' own waveform/frequency/depth/target.
func (n *Node) routeLFOs() {
	l1, l2 := n.instrument.LFO1, n.instrument.LFO2
	if !l1.Target.ValidForLFO1() {
		l1.Target = lfo.TargetNone
	}
	n.lfo1.Waveform, n.lfo1.Frequency, n.lfo1.Depth, n.lfo1.Target = l1.Waveform, l1.Frequency, l1.Depth, l1.Target
	n.lfo2.Waveform, n.lfo2.Frequency, n.lfo2.Depth, n.lfo2.Target = l2.Waveform, l2.Frequency, l2.Depth, l2.Target
}

// Render advances both LFOs by one sample, routes their modulation onto
// every active voice, and mixes the pool's voices into a stereo sample at
// time now (seconds since playback start).
func (n *Node) Render(now float64) (left, right float64) {
	lfo2Raw := n.lfo2.Advance(n.sampleRate)

	lfo1Freq, lfo1Depth := n.lfo1.Frequency, n.lfo1.Depth
	switch n.lfo2.Target {
	case lfo.TargetLFO1Frequency:
		lfo1Freq += lfo.ModulationRange(lfo.TargetLFO1Frequency) * n.lfo2.Depth * lfo2Raw
	case lfo.TargetLFO1Depth:
		lfo1Depth += lfo.ModulationRange(lfo.TargetLFO1Depth) * n.lfo2.Depth * lfo2Raw
		lfo1Depth = clamp01(lfo1Depth)
	}

	savedFreq := n.lfo1.Frequency
	n.lfo1.Frequency = lfo1Freq
	lfo1Raw := n.lfo1.Advance(n.sampleRate)
	n.lfo1.Frequency = savedFreq

	var detuneAdd, filterFreqAdd, filterResAdd, volumeAdd, panAdd float64
	apply := func(target lfo.Target, depth, raw float64) {
		add := lfo.ModulationRange(target) * depth * raw
		switch target {
		case lfo.TargetOscillatorDetune:
			detuneAdd += add
		case lfo.TargetFilterFrequency:
			filterFreqAdd += add
		case lfo.TargetFilterResonance:
			filterResAdd += add
		case lfo.TargetVolume:
			volumeAdd += add
		case lfo.TargetPan:
			panAdd += add
		}
	}
	apply(n.lfo1.Target, lfo1Depth, lfo1Raw)
	if n.lfo2.Target != lfo.TargetLFO1Frequency && n.lfo2.Target != lfo.TargetLFO1Depth {
		apply(n.lfo2.Target, n.lfo2.Depth, lfo2Raw)
	}

	for i := range n.voices {
		v := &n.voices[i]
		if !v.Active {
			continue
		}
		v.DetuneModAdd = detuneAdd
		v.Source.Detune = n.instrument.Oscillator.Detune + detuneAdd
		v.FilterModAdd = filterFreqAdd
		v.FilterResModAdd = filterResAdd
		v.VolumeModAdd = volumeAdd
		v.PanModAdd = panAdd
		l, r := v.Render(now)
		left += l
		right += r
	}
	return left, right
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ApplyAutomation decodes a parameter-automation note's raw value and
// returns the instrument state update_instrument should apply (spec §4.4
// pass 2, §6 parameter table). It mutates a copy; callers pass the result
// to UpdateInstrument.
func ApplyAutomation(instr Instrument, id param.ID, raw int) Instrument {
	switch id {
	case param.OscillatorType:
		instr.Oscillator.Kind = oscillator.Kind(param.NormalizeInt(id, raw))
	case param.OscillatorDetune:
		instr.Oscillator.Detune = param.NormalizeFloat(id, raw)
	case param.FilterType:
		instr.Filter.Type = filter.Type(param.NormalizeInt(id, raw))
	case param.FilterFrequency:
		instr.Filter.Frequency = param.NormalizeFloat(id, raw)
	case param.FilterResonance:
		instr.Filter.Resonance = param.NormalizeFloat(id, raw)
	case param.FilterEnvelopeAmount:
		instr.Filter.EnvelopeAmount = param.NormalizeFloat(id, raw)
	case param.FilterEnvelopeType:
		instr.Filter.Envelope.Kind = envelope.Kind(param.NormalizeInt(id, raw))
	case param.FilterEnvelopeAttack:
		instr.Filter.Envelope.Attack = param.NormalizeFloat(id, raw)
	case param.FilterEnvelopeDecay:
		instr.Filter.Envelope.Decay = param.NormalizeFloat(id, raw)
	case param.FilterEnvelopeSustain:
		instr.Filter.Envelope.Sustain = param.NormalizeFloat(id, raw)
	case param.FilterEnvelopeRelease:
		instr.Filter.Envelope.Release = param.NormalizeFloat(id, raw)
	case param.EnvelopeType:
		instr.Envelope.Kind = envelope.Kind(param.NormalizeInt(id, raw))
	case param.EnvelopeAttack:
		instr.Envelope.Attack = param.NormalizeFloat(id, raw)
	case param.EnvelopeDecay:
		instr.Envelope.Decay = param.NormalizeFloat(id, raw)
	case param.EnvelopeSustain:
		instr.Envelope.Sustain = param.NormalizeFloat(id, raw)
	case param.EnvelopeRelease:
		instr.Envelope.Release = param.NormalizeFloat(id, raw)
	case param.Volume:
		instr.Volume = param.NormalizeFloat(id, raw)
	case param.Pan:
		instr.Pan = param.NormalizeFloat(id, raw)
	case param.MaxVoices:
		instr.MaxVoices = param.NormalizeInt(id, raw)
	case param.LFO1Waveform:
		instr.LFO1.Waveform = lfo.Waveform(param.NormalizeInt(id, raw))
	case param.LFO1Freq:
		instr.LFO1.Frequency = param.NormalizeFloat(id, raw)
	case param.LFO1Depth:
		instr.LFO1.Depth = param.NormalizeFloat(id, raw)
	case param.LFO1Target:
		t := lfo.Target(param.NormalizeInt(id, raw))
		if t.ValidForLFO1() {
			instr.LFO1.Target = t
		}
	case param.LFO2Waveform:
		instr.LFO2.Waveform = lfo.Waveform(param.NormalizeInt(id, raw))
	case param.LFO2Freq:
		instr.LFO2.Frequency = param.NormalizeFloat(id, raw)
	case param.LFO2Depth:
		instr.LFO2.Depth = param.NormalizeFloat(id, raw)
	case param.LFO2Target:
		instr.LFO2.Target = lfo.Target(param.NormalizeInt(id, raw))
	}
	return instr
}
