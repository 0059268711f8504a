// Package param implements the stable parameter-id table used by
// parameter-automation notes (spec §6). Each id maps a 0..255 raw byte onto
// the physical range of the parameter it addresses. LFO targets do not use
// these ids: they are numbered by lfo.Target, a separate enumeration, and an
// LFO1Target/LFO2Target automation stores its raw byte as an lfo.Target.
package param

import "math"

// ID is a parameter identifier, stable across the wire format.
type ID int

const (
	OscillatorType   ID = 0x00
	OscillatorDetune ID = 0x01

	FilterType           ID = 0x10
	FilterFrequency      ID = 0x11
	FilterResonance      ID = 0x12
	FilterEnvelopeAmount ID = 0x13

	FilterEnvelopeType    ID = 0x20
	FilterEnvelopeAttack  ID = 0x21
	FilterEnvelopeDecay   ID = 0x22
	FilterEnvelopeSustain ID = 0x23
	FilterEnvelopeRelease ID = 0x24

	EnvelopeType    ID = 0x30
	EnvelopeAttack  ID = 0x31
	EnvelopeDecay   ID = 0x32
	EnvelopeSustain ID = 0x33
	EnvelopeRelease ID = 0x34

	Volume    ID = 0x40
	Pan       ID = 0x41
	MaxVoices ID = 0x42

	LFO1Waveform ID = 0x50
	LFO1Freq     ID = 0x51
	LFO1Depth    ID = 0x52
	LFO1Target   ID = 0x53

	LFO2Waveform ID = 0x54
	LFO2Freq     ID = 0x55
	LFO2Depth    ID = 0x56
	LFO2Target   ID = 0x57
)

// DecodeAutomation splits a parameter-automation note's effectValue into a
// parameter id (high byte) and a raw 0..255 value (low byte), per spec §4.4.
func DecodeAutomation(effectValue int) (id ID, raw int) {
	return ID((effectValue >> 8) & 0xFF), effectValue & 0xFF
}

func u(raw int) float64 {
	if raw < 0 {
		raw = 0
	}
	if raw > 255 {
		raw = 255
	}
	return float64(raw) / 255.0
}

func lerp(lo, hi, t float64) float64 {
	return lo + (hi-lo)*t
}

// NormalizeFloat maps a raw 0..255 value to the physical float range of a
// continuous parameter. Enum-valued parameters are handled by NormalizeInt
// instead.
func NormalizeFloat(id ID, raw int) float64 {
	t := u(raw)
	switch id {
	case OscillatorDetune:
		return lerp(-1200, 1200, t)
	case FilterFrequency:
		return math.Exp(t*math.Log(1000)) * 20
	case FilterResonance:
		return lerp(0.1, 20, t)
	case FilterEnvelopeAmount:
		return lerp(0, 1, t)
	case FilterEnvelopeAttack, EnvelopeAttack:
		return lerp(0, 30, t)
	case FilterEnvelopeDecay, EnvelopeDecay:
		return lerp(0, 30, t)
	case FilterEnvelopeSustain, EnvelopeSustain:
		return lerp(0, 1, t)
	case FilterEnvelopeRelease, EnvelopeRelease:
		return lerp(0, 30, t)
	case Volume:
		return lerp(0, 1, t)
	case Pan:
		return lerp(-1, 1, t)
	case LFO1Freq, LFO2Freq:
		return 0.1 * math.Pow(200, t)
	case LFO1Depth, LFO2Depth:
		return t
	default:
		return t
	}
}

// NormalizeInt maps a raw 0..255 value onto an integer-valued parameter:
// enum indices (oscillator/filter/envelope type, LFO waveform/target) or
// MaxVoices.
func NormalizeInt(id ID, raw int) int {
	switch id {
	case OscillatorType:
		idx := int(u(raw) * 5)
		if idx > 5 {
			idx = 5
		}
		return idx
	case FilterType:
		if raw >= 128 {
			return 1
		}
		return 0
	case FilterEnvelopeType, EnvelopeType:
		idx := int(u(raw) * 3)
		if idx > 2 {
			idx = 2
		}
		return idx
	case MaxVoices:
		v := int(lerp(1, 32, u(raw)))
		if v < 1 {
			v = 1
		}
		if v > 32 {
			v = 32
		}
		return v
	case LFO1Waveform, LFO2Waveform:
		idx := int(u(raw) * 4)
		if idx > 3 {
			idx = 3
		}
		return idx
	case LFO1Target, LFO2Target:
		return raw
	default:
		return raw
	}
}
