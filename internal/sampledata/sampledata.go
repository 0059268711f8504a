// Package sampledata implements the SampleData record (spec §3: decoded PCM
// frames, loop points, gain, loop type) and its WAV-based wire encoding.
//
// spec.md §9 flags the source implementation's sample export (floats
// serialized as JSON text) as imprecise and inefficient, and suggests a
// binary container carrying sample rate and channel count explicitly. This
// package resolves that open question by using WAV via go-audio/wav
// (schollz-221e's dependency for exactly this purpose) instead of a
// hand-rolled binary header.
package sampledata

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// LoopType selects how a sampler oscillator plays back the decoded frames.
type LoopType int

const (
	LoopOneshot LoopType = iota
	LoopForward
	LoopPingPong
)

// SampleData is the decoded, shareable payload of a sampler oscillator.
// Instances are handed out by value-semantics id (spec §9 "shared ownership
// of buffers"): the engine's sample map, an instrument's sampler oscillator,
// and any external visualizer all reference the same immutable frames.
type SampleData struct {
	Channels   [][]float32 // one slice per channel, equal length
	SampleRate int
	StartPoint float64 // 0..1, StartPoint < EndPoint
	EndPoint   float64 // 0..1
	Gain       float64 // 0..1
	LoopType   LoopType
}

// FrameCount returns the number of sample frames per channel.
func (s SampleData) FrameCount() int {
	if len(s.Channels) == 0 {
		return 0
	}
	return len(s.Channels[0])
}

// LoopBounds returns the first frame index of the loop region and the
// exclusive end index (one past its last frame), derived from
// StartPoint/EndPoint scaled by frame count (spec §4.3).
func (s SampleData) LoopBounds() (start, end int) {
	n := s.FrameCount()
	start = int(s.StartPoint * float64(n))
	end = int(s.EndPoint * float64(n))
	if end <= start {
		end = start + 1
	}
	if end > n {
		end = n
	}
	return start, end
}

// DecodeWAV decodes WAV-encoded bytes into a SampleData with StartPoint 0,
// EndPoint 1, Gain 1, and LoopOneshot; callers adjust loop fields as the
// project file specifies.
func DecodeWAV(data []byte) (SampleData, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return SampleData{}, errors.New("sampledata: not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return SampleData{}, fmt.Errorf("sampledata: decode WAV: %w", err)
	}
	numChans := buf.Format.NumChannels
	if numChans <= 0 {
		numChans = 1
	}
	frameCount := len(buf.Data) / numChans
	channels := make([][]float32, numChans)
	for c := range channels {
		channels[c] = make([]float32, frameCount)
	}
	maxVal := float32(int(1) << uint(buf.SourceBitDepth-1))
	if maxVal <= 0 {
		maxVal = 1 << 15
	}
	for i, v := range buf.Data {
		channels[i%numChans][i/numChans] = float32(v) / maxVal
	}
	return SampleData{
		Channels:   channels,
		SampleRate: buf.Format.SampleRate,
		StartPoint: 0,
		EndPoint:   1,
		Gain:       1,
	}, nil
}

// EncodeWAV serializes the decoded frames back to 16-bit PCM WAV bytes.
func EncodeWAV(s SampleData) ([]byte, error) {
	numChans := len(s.Channels)
	if numChans == 0 {
		return nil, errors.New("sampledata: no channels to encode")
	}
	frameCount := s.FrameCount()
	ints := make([]int, frameCount*numChans)
	for i := 0; i < frameCount; i++ {
		for c := 0; c < numChans; c++ {
			v := s.Channels[c][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			ints[i*numChans+c] = int(v * 32767)
		}
	}
	intBuf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: numChans,
			SampleRate:  s.SampleRate,
		},
		Data:           ints,
		SourceBitDepth: 16,
	}

	var ms memWriteSeeker
	enc := wav.NewEncoder(&ms, s.SampleRate, 16, numChans, 1)
	if err := enc.Write(intBuf); err != nil {
		return nil, fmt.Errorf("sampledata: encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("sampledata: close WAV encoder: %w", err)
	}
	return ms.buf, nil
}

// memWriteSeeker is a minimal in-memory io.WriteSeeker, since wav.Encoder
// needs to seek back and patch RIFF chunk sizes after writing.
type memWriteSeeker struct {
	buf []byte
	pos int64
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = m.pos + offset
	case io.SeekEnd:
		newPos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("sampledata: invalid seek whence %d", whence)
	}
	if newPos < 0 {
		return 0, errors.New("sampledata: negative seek position")
	}
	m.pos = newPos
	return newPos, nil
}
