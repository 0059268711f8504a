// Package lfo implements the two per-instrument low-frequency oscillators
// and their target-based modulation routing (spec §3, §4.3). It is adapted
// from cbegin-mmlfm-go's internal/lfo.LFO: the teacher's three LFOs are
// fixed global modulators (pitch, amp, filter) wired once per engine. Here
// an instrument owns exactly two LFOs with a selectable Target, including
// LFO2's cross-modulation of LFO1's own frequency and depth — a routing the
// teacher's design has no need for, since none of its LFOs can target
// another LFO.
package lfo

import "math"

// Waveform selects the oscillator shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

// Target identifies what an LFO's output is routed to. The cross-LFO
// targets (TargetLFO1Frequency, TargetLFO1Depth) are only valid for LFO2;
// routing code must reject them for LFO1 so that cycles are impossible by
// construction (spec §9).
type Target int

const (
	TargetNone Target = iota
	TargetOscillatorDetune
	TargetFilterFrequency
	TargetFilterResonance
	TargetVolume
	TargetPan
	// TargetLFO1Frequency and TargetLFO1Depth are LFO2-only cross-modulation
	// targets.
	TargetLFO1Frequency
	TargetLFO1Depth
)

// ValidForLFO1 reports whether a target may be assigned to LFO1. LFO1 must
// never target another LFO.
func (t Target) ValidForLFO1() bool {
	return t != TargetLFO1Frequency && t != TargetLFO1Depth
}

// ModulationRange returns the physical-unit range a fully-deflected
// (depth=1) LFO swings a target by, per spec §4.3 step 2.
func ModulationRange(t Target) float64 {
	switch t {
	case TargetOscillatorDetune:
		return 1200 // cents
	case TargetFilterFrequency:
		return 10000 // Hz
	case TargetFilterResonance:
		return 10 // Q-units
	case TargetVolume, TargetPan:
		return 1
	case TargetLFO1Frequency:
		return 20 // Hz
	case TargetLFO1Depth:
		return 1
	default:
		return 0
	}
}

// LFO is a free-running low-frequency oscillator. Depth and routing are the
// caller's responsibility: Advance returns a raw waveform sample in
// [-1, 1], which the instrument node scales by ModulationRange(target) and
// the LFO's configured Depth before summing onto the target parameter.
type LFO struct {
	Waveform  Waveform
	Frequency float64 // Hz, 0.1..20
	Depth     float64 // 0..1
	Target    Target

	phase float64 // 0..1
}

// Advance steps the oscillator by one sample at sampleRate and returns the
// new raw waveform value.
func (l *LFO) Advance(sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	v := waveformValue(l.Waveform, l.phase)
	l.phase += l.Frequency / sampleRate
	for l.phase >= 1 {
		l.phase -= 1
	}
	return v
}

// Reset zeros the oscillator's phase without touching its configuration.
func (l *LFO) Reset() {
	l.phase = 0
}

func waveformValue(w Waveform, phase float64) float64 {
	switch w {
	case WaveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case WaveSawtooth:
		return 1 - 2*phase
	case WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default: // WaveSine
		return math.Sin(2 * math.Pi * phase)
	}
}
