// Package oscillator implements the three source kinds a voice can play
// through (spec §3, §4.2): a band-limited-shape tonal oscillator, a looping
// white-noise buffer, and sampler playback over a sampledata.SampleData.
//
// The tonal waveform shapes and the noise LFSR are adapted from
// cbegin-mmlfm-go's internal/fm.Engine.waveformSample: the teacher drives a
// shared phase accumulator through a switch over an integer waveform id and
// reseeds a single package-level LFSR for noise. Here each Source owns its
// own phase (and, for noise, its own LFSR word) since voices render
// independently rather than through one engine-wide mixdown.
package oscillator

import (
	"math"

	"github.com/rowcore/trackengine/internal/sampledata"
)

// Kind enumerates the six source variants (spec §3 "Oscillator").
type Kind int

const (
	KindSine Kind = iota
	KindSquare
	KindSawtooth
	KindTriangle
	KindNoise
	KindSampler
)

// IsTonal reports whether a kind is a phase-accumulated waveform (as
// opposed to noise or sampler), the category the instrument node checks to
// decide whether a voice pool needs rebuilding on oscillator edits.
func (k Kind) IsTonal() bool {
	return k == KindSine || k == KindSquare || k == KindSawtooth || k == KindTriangle
}

// noiseSeconds is the length of the looping white-noise buffer (spec §4.3
// "Noise source").
const noiseSeconds = 2.0

// Source is one voice's sound generator. Zero value is a silent sine
// source; construct with New for a fully configured source.
type Source struct {
	Kind   Kind
	Detune float64 // cents, typically ±1200

	phase      float64 // 0..2π, tonal kinds
	lfsr       uint32  // noise kind
	noiseBuf   []float32
	noisePos   int
	sampleRate float64

	Sample     sampledata.SampleData // sampler kind
	samplePos  float64               // fractional frame index into Sample
	pingDir    int                   // +1 or -1, pingpong loop direction
}

// New constructs a Source for the given kind at sampleRate. Noise sources
// pre-render their 2-second loop buffer immediately.
func New(kind Kind, sampleRate float64) *Source {
	s := &Source{Kind: kind, sampleRate: sampleRate, lfsr: 0x7FFF, pingDir: 1}
	if kind == KindNoise {
		s.noiseBuf = renderNoiseBuffer(sampleRate, &s.lfsr)
	}
	return s
}

// Reset zeros phase/playback position without touching configuration.
func (s *Source) Reset() {
	s.phase = 0
	s.noisePos = 0
	s.samplePos = 0
	s.pingDir = 1
}

// detuneRatio converts the Detune cents offset to a frequency multiplier.
func (s *Source) detuneRatio() float64 {
	return math.Pow(2, s.Detune/1200)
}

// NextTonal advances a tonal oscillator by one sample at the given
// frequency (Hz, already MIDI-to-Hz converted) and returns the new sample.
func (s *Source) NextTonal(freqHz float64) float64 {
	if s.sampleRate <= 0 {
		return 0
	}
	v := waveformValue(s.Kind, s.phase)
	s.phase += 2 * math.Pi * freqHz * s.detuneRatio() / s.sampleRate
	for s.phase >= 2*math.Pi {
		s.phase -= 2 * math.Pi
	}
	return v
}

// NextNoise advances the looping noise buffer by one sample.
func (s *Source) NextNoise() float64 {
	if len(s.noiseBuf) == 0 {
		return 0
	}
	v := s.noiseBuf[s.noisePos]
	s.noisePos++
	if s.noisePos >= len(s.noiseBuf) {
		s.noisePos = 0
	}
	return float64(v)
}

// NextSample advances sampler playback by one sample at the given MIDI
// note, per spec §4.3 "Sampler": rate = midiToHz(note)/440, with
// oneshot/forward/pingpong looping between startPoint and endPoint.
// Returns the mixed-down (averaged-channel) sample and whether playback has
// finished (oneshot only, once past endPoint).
func (s *Source) NextSample(noteHz float64) (out float64, done bool) {
	frameCount := s.Sample.FrameCount()
	if frameCount == 0 {
		return 0, true
	}
	rate := (noteHz / 440) * s.detuneRatio()
	loopStart, loopEnd := s.Sample.LoopBounds()

	idx := int(s.samplePos)
	if idx < 0 {
		idx = 0
	}
	if idx >= frameCount {
		idx = frameCount - 1
	}
	out = s.mixChannels(idx) * s.Sample.Gain

	switch s.Sample.LoopType {
	case sampledata.LoopOneshot:
		s.samplePos += rate
		if s.samplePos >= float64(loopEnd) {
			done = true
		}
	case sampledata.LoopForward:
		s.samplePos += rate
		if s.samplePos >= float64(loopEnd) {
			s.samplePos = float64(loopStart) + math.Mod(s.samplePos-float64(loopStart), float64(loopEnd-loopStart))
		}
	case sampledata.LoopPingPong:
		s.samplePos += rate * float64(s.pingDir)
		if s.samplePos >= float64(loopEnd) {
			s.samplePos = float64(loopEnd)
			s.pingDir = -1
		} else if s.samplePos <= float64(loopStart) {
			s.samplePos = float64(loopStart)
			s.pingDir = 1
		}
	}
	return out, done
}

func (s *Source) mixChannels(frameIdx int) float64 {
	channels := s.Sample.Channels
	if len(channels) == 0 {
		return 0
	}
	var sum float64
	for _, ch := range channels {
		if frameIdx < len(ch) {
			sum += float64(ch[frameIdx])
		}
	}
	return sum / float64(len(channels))
}

func renderNoiseBuffer(sampleRate float64, lfsr *uint32) []float32 {
	n := int(noiseSeconds * sampleRate)
	buf := make([]float32, n)
	for i := range buf {
		*lfsr = (*lfsr >> 1) ^ (-(*lfsr & 1) & 0xB400)
		buf[i] = float32(*lfsr)/float32(0xFFFF)*2 - 1
	}
	return buf
}

func waveformValue(k Kind, phase float64) float64 {
	const twoPi = 2 * math.Pi
	switch k {
	case KindSquare:
		if math.Mod(phase, twoPi) < math.Pi {
			return 1
		}
		return -1
	case KindSawtooth:
		return 1 - 2*math.Mod(phase, twoPi)/twoPi
	case KindTriangle:
		return 2*math.Abs(2*math.Mod(phase, twoPi)/twoPi-1) - 1
	default: // KindSine
		return math.Sin(phase)
	}
}
