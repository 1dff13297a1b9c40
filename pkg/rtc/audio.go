// Package rtc holds the PCM audio frame that flows between the room, the
// speech providers and the agent, plus conversion helpers for it.
package rtc

import (
	"fmt"
	"time"
)

// FrameDuration is the length of every AudioFrame.
const FrameDuration = 10 * time.Millisecond

// AudioFrame is exactly 10 ms of 16-bit little-endian PCM.
// len(Data) == SamplesPerChannel * NumChannels * 2.
//
// A zero Timestamp means "live"; otherwise it is the offset from the start of
// the stream.
type AudioFrame struct {
	Data              []byte
	SampleRate        int
	SamplesPerChannel int // SampleRate / 100
	NumChannels       int
	Timestamp         time.Duration
}

// SamplesPerFrame returns the per-channel sample count of a 10 ms frame.
func SamplesPerFrame(sampleRate int) int {
	return sampleRate / 100
}

// FrameBytes returns the byte length of a 10 ms frame.
func FrameBytes(sampleRate, numChannels int) int {
	return SamplesPerFrame(sampleRate) * numChannels * 2
}

// NewAudioFrame validates that data holds exactly 10 ms of audio.
func NewAudioFrame(data []byte, sampleRate, numChannels int, timestamp time.Duration) (*AudioFrame, error) {
	if sampleRate <= 0 || sampleRate%100 != 0 {
		return nil, fmt.Errorf("unsupported sample rate %d", sampleRate)
	}
	if numChannels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", numChannels)
	}
	if want := FrameBytes(sampleRate, numChannels); len(data) != want {
		return nil, fmt.Errorf("audio frame length mismatch: got %d bytes, expected %d for %dHz %d-channel 10ms audio",
			len(data), want, sampleRate, numChannels)
	}

	return &AudioFrame{
		Data:              data,
		SampleRate:        sampleRate,
		SamplesPerChannel: SamplesPerFrame(sampleRate),
		NumChannels:       numChannels,
		Timestamp:         timestamp,
	}, nil
}

// Clone returns a deep copy.
func (f *AudioFrame) Clone() *AudioFrame {
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c
}

// Duration is always FrameDuration.
func (f *AudioFrame) Duration() time.Duration {
	return FrameDuration
}
