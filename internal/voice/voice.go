// Package voice implements the polyphonic Voice state machine and DSP
// graph (spec §4.2): source → filter → filter-envelope modulation →
// amplitude gain → pan.
//
// The equal-power pan law and the per-sample render loop structure are
// grounded on cbegin-mmlfm-go's internal/fm.Engine.RenderFrame (angle =
// (pan+64)/128·π/2, l += sig·cos(angle), r += sig·sin(angle)); the envelope
// evaluation itself is analytic (internal/envelope) rather than the
// teacher's per-sample state machine, since voices here are scheduled at
// arbitrary future times within a lookahead window rather than stepped one
// engine-wide frame at a time.
package voice

import (
	"math"

	"github.com/rowcore/trackengine/internal/envelope"
	"github.com/rowcore/trackengine/internal/filter"
	"github.com/rowcore/trackengine/internal/note"
	"github.com/rowcore/trackengine/internal/oscillator"
)

// State is the voice's lifecycle phase (spec §4.2 state machine).
type State int

const (
	StateIdle State = iota
	StateAttack
	StateDecay
	StateSustain
	StateRelease
)

// filterModRange is the modulation range, in Hz, that a fully-deflected
// filter envelope (envelopeAmount = 1) swings the cutoff by (spec §4.2
// "Filter-envelope modulation").
const filterModRange = 10000.0

// retriggerEpsilon is the minimum gap enforced between a retriggered
// voice's stop and its new start (spec §4.2 "Retrigger epsilon").
const retriggerEpsilon = 0.001

// Voice is one polyphonic slot. The zero value is an idle voice.
type Voice struct {
	Active     bool
	Generation int // bumped on every NoteOn and StealImmediate

	MidiNote int
	HasNote  bool

	Source *oscillator.Source
	Filter *filter.Biquad

	AmpEnvelope    envelope.Envelope
	FilterEnvelope envelope.Envelope
	FilterEnvAmt   float64 // [-1,1]

	Velocity       float64
	InstrumentGain float64 // instrument.volume, rescaled in place on volume edits
	Pan            float64 // -1..1, instrument.pan; the LFO offset is PanModAdd

	BaseFilterFreq float64 // instrument.filter.frequency, before envelope/LFO
	BaseFilterQ    float64 // instrument.filter.resonance, before LFO
	FilterModAdd   float64 // LFO-driven additive offset onto filter frequency, Hz
	FilterResModAdd float64 // LFO-driven additive offset onto filter resonance
	DetuneModAdd   float64 // LFO-driven additive offset onto source detune, cents
	VolumeModAdd   float64 // LFO-driven additive offset onto amplitude gain
	PanModAdd      float64 // LFO-driven additive offset onto pan

	StartTime   float64 // seconds, when note_on was issued
	ReleaseTime float64 // seconds, when note_off was issued; 0 until released
	Released    bool

	ampAtRelease float64
	filterAtRel  float64
}

// NoteOn (re)initializes the voice for a new note, per spec §4.3 "note_on".
func (v *Voice) NoteOn(midiNote int, velocity, startTime float64) {
	v.Active = true
	v.Generation++
	v.MidiNote = midiNote
	v.HasNote = true
	v.Velocity = velocity
	v.StartTime = startTime
	v.ReleaseTime = 0
	v.Released = false
	if v.Source != nil {
		v.Source.Reset()
	}
	if v.Filter != nil {
		v.Filter.Reset()
	}
}

// NoteOff schedules the release phase to begin at time (spec §4.3
// "note_off").
func (v *Voice) NoteOff(time float64) {
	if !v.Active || v.Released {
		return
	}
	v.Released = true
	v.ReleaseTime = time
	v.ampAtRelease = v.AmpEnvelope.LevelAt(time - v.StartTime)
	v.filterAtRel = v.FilterEnvelope.LevelAt(time - v.StartTime)
}

// ReleaseSeconds returns the duration of this voice's release ramp: the
// envelope's configured release, or 0.01s if it has no release phase (spec
// §4.3 "note_off").
func (v *Voice) ReleaseSeconds() float64 {
	if v.AmpEnvelope.HasReleasePhase() && v.AmpEnvelope.Release > 0 {
		return v.AmpEnvelope.Release
	}
	return 0.01
}

// StopTime is the time from which Render treats the source as stopped and
// returns the voice to Idle: release start + release duration + 1ms margin.
func (v *Voice) StopTime() float64 {
	return v.ReleaseTime + v.ReleaseSeconds() + retriggerEpsilon
}

// IsInAttack reports whether, at time now, the voice is still within its
// attack phase (spec §4.2 allocation policy step 3).
func (v *Voice) IsInAttack(now float64) bool {
	return now < v.StartTime+v.AmpEnvelope.Attack
}

// StealImmediate silences the voice instantly: cancels scheduling state and
// returns it to Idle (spec §4.2 "Stolen voices are silenced immediately").
func (v *Voice) StealImmediate() {
	v.Active = false
	v.HasNote = false
	v.Released = false
	v.ReleaseTime = 0
	v.Generation++
	if v.Filter != nil {
		v.Filter.Reset()
	}
}

// AmpLevel returns the current amplitude envelope level (0..1) at time now.
func (v *Voice) AmpLevel(now float64) float64 {
	if !v.Active {
		return 0
	}
	if v.Released {
		return v.AmpEnvelope.ReleaseLevelAt(v.ampAtRelease, now-v.ReleaseTime, v.ReleaseSeconds())
	}
	return v.AmpEnvelope.LevelAt(now - v.StartTime)
}

// filterEnvLevel mirrors AmpLevel for the filter envelope.
func (v *Voice) filterEnvLevel(now float64) float64 {
	if !v.Active {
		return 0
	}
	if v.Released {
		return v.FilterEnvelope.ReleaseLevelAt(v.filterAtRel, now-v.ReleaseTime, v.ReleaseSeconds())
	}
	return v.FilterEnvelope.LevelAt(now - v.StartTime)
}

// Render produces one stereo sample pair at time now (seconds since engine
// start). Returns 0,0 for an idle voice. The voice returns to Idle (Active
// false) once a released voice reaches StopTime, or when a oneshot sampler
// has exhausted its buffer.
func (v *Voice) Render(now float64) (left, right float64) {
	if !v.Active || v.Source == nil {
		return 0, 0
	}
	if v.Released && now >= v.StopTime() {
		v.Active = false
		v.HasNote = false
		return 0, 0
	}

	freqHz := note.MidiToHz(float64(v.MidiNote))
	var raw float64
	switch {
	case v.Source.Kind == oscillatorKindNoise:
		raw = v.Source.NextNoise()
	case v.Source.Kind == oscillatorKindSampler:
		var done bool
		raw, done = v.Source.NextSample(freqHz)
		if done {
			v.Active = false
			return 0, 0
		}
	default:
		raw = v.Source.NextTonal(freqHz)
	}

	if v.Filter != nil {
		cutoff := v.BaseFilterFreq + filterModRange*v.FilterEnvAmt*v.filterEnvLevel(now) + v.FilterModAdd
		q := v.BaseFilterQ + v.FilterResModAdd
		v.Filter.SetParams(cutoff, q)
		raw = v.Filter.Process(raw)
	}

	amp := v.AmpLevel(now)*v.Velocity*v.InstrumentGain + v.VolumeModAdd
	if amp < 0 {
		amp = 0
	}
	sig := raw * amp

	pan := v.Pan + v.PanModAdd
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	angle := ((pan + 1) / 2) * (math.Pi / 2)
	return sig * math.Cos(angle), sig * math.Sin(angle)
}

// these mirror oscillator.Kind values without importing the concrete
// constant names twice in call sites that only need identity checks.
const (
	oscillatorKindNoise   = oscillator.KindNoise
	oscillatorKindSampler = oscillator.KindSampler
)
