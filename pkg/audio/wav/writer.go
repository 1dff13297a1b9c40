package wav

import (
	"fmt"
	"io"
	"os"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Writer encodes frames as a 16-bit PCM WAV file. Frames with another rate or
// channel count are converted to the writer's format.
type Writer struct {
	enc        *wav.Encoder
	file       *os.File
	sampleRate int
	channels   int
	frames     int
}

// NewWriter writes to w; Close finalises the header.
func NewWriter(w io.WriteSeeker, sampleRate, channels int) *Writer {
	return &Writer{
		enc:        wav.NewEncoder(w, sampleRate, 16, channels, 1),
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Create opens path for writing.
func Create(path string, sampleRate, channels int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	w := NewWriter(f, sampleRate, channels)
	w.file = f
	return w, nil
}

func (w *Writer) WriteFrame(f rtc.AudioFrame) error {
	if f.SampleRate != w.sampleRate || f.NumChannels != w.channels {
		if w.channels != 1 {
			return fmt.Errorf("cannot convert %dHz/%dch frame to %dHz/%dch", f.SampleRate, f.NumChannels, w.sampleRate, w.channels)
		}
		f = rtc.ResampleFrame(f, w.sampleRate)
	}

	if err := w.enc.Write(intBuffer(rtc.Samples(f.Data), w.sampleRate, w.channels)); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int { return w.frames }

func (w *Writer) Close() error {
	err := w.enc.Close()
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func intBuffer(samples []int16, sampleRate, channels int) *audio.IntBuffer {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	return &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
}
