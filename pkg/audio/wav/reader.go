// Package wav reads and writes WAV files as 10 ms PCM frames.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// FallbackRate is used for files whose sample rate does not divide into
// 10 ms frames (22050 Hz, for example).
const FallbackRate = 16000

// ErrInvalidFile is returned for input that is not a PCM WAV file.
var ErrInvalidFile = errors.New("not a valid PCM WAV file")

// Info describes a decoded file.
type Info struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
	Duration    time.Duration
}

// ReadFile decodes the file at path.
func ReadFile(path string) ([]rtc.AudioFrame, Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes r into 16-bit frames. Any bit depth is accepted; the last frame
// is zero-padded.
func Read(r io.ReadSeeker) ([]rtc.AudioFrame, Info, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, Info{}, ErrInvalidFile
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Info{}, fmt.Errorf("decode wav: %w", err)
	}

	info := Info{
		SampleRate:  buf.Format.SampleRate,
		NumChannels: buf.Format.NumChannels,
		BitDepth:    int(dec.BitDepth),
	}
	if info.SampleRate <= 0 || info.NumChannels <= 0 {
		return nil, Info{}, ErrInvalidFile
	}

	samples := to16(buf, info.BitDepth)
	info.Duration = time.Duration(len(samples)/info.NumChannels) * time.Second / time.Duration(info.SampleRate)

	rate, channels := info.SampleRate, info.NumChannels
	if rate%100 != 0 {
		samples = rtc.Resample(rtc.Mono(samples, channels), rate, FallbackRate)
		rate, channels = FallbackRate, 1
	}

	s := rtc.NewFrameSplitter(rate, channels)
	frames := s.Write(rtc.PCM(samples))
	if last, ok := s.Flush(); ok {
		frames = append(frames, last)
	}
	return frames, info, nil
}

// to16 scales samples of any bit depth to int16.
func to16(buf *audio.IntBuffer, bitDepth int) []int16 {
	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case bitDepth == 8:
			out[i] = int16((v - 128) << 8) // 8-bit WAV is unsigned
		case bitDepth > 16:
			out[i] = int16(v >> (bitDepth - 16))
		default:
			out[i] = int16(v)
		}
	}
	return out
}
