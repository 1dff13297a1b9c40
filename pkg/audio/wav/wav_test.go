package wav

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/matryer/is"
)

func ramp(rate int, n int) []rtc.AudioFrame {
	per := rtc.SamplesPerFrame(rate)
	frames := make([]rtc.AudioFrame, n)
	for i := range frames {
		samples := make([]int16, per)
		for j := range samples {
			samples[j] = int16((i*per + j) % 1000)
		}
		frames[i] = rtc.AudioFrame{Data: rtc.PCM(samples), SampleRate: rate, SamplesPerChannel: per, NumChannels: 1}
	}
	return frames
}

func TestRoundTrip(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "call.wav")

	w, err := Create(path, 16000, 1)
	is.NoErr(err)
	in := ramp(16000, 25)
	for _, f := range in {
		is.NoErr(w.WriteFrame(f))
	}
	is.Equal(w.Frames(), 25)
	is.NoErr(w.Close())

	out, info, err := ReadFile(path)
	is.NoErr(err)
	is.Equal(info.SampleRate, 16000)
	is.Equal(info.NumChannels, 1)
	is.Equal(info.BitDepth, 16)
	is.Equal(info.Duration, 250*time.Millisecond)
	is.Equal(len(out), 25)
	for i := range in {
		is.Equal(out[i].Data, in[i].Data)
	}
}

func TestWriter_ConvertsRate(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "tts.wav")

	w, err := Create(path, 16000, 1)
	is.NoErr(err)
	for _, f := range ramp(24000, 10) {
		is.NoErr(w.WriteFrame(f))
	}
	is.NoErr(w.Close())

	out, info, err := ReadFile(path)
	is.NoErr(err)
	is.Equal(info.SampleRate, 16000)
	is.Equal(len(out), 10)
	is.Equal(len(out[0].Data), rtc.FrameBytes(16000, 1))
}

func TestWriter_RejectsChannelConversion(t *testing.T) {
	is := is.New(t)
	w, err := Create(filepath.Join(t.TempDir(), "stereo.wav"), 16000, 2)
	is.NoErr(err)
	defer w.Close()

	is.True(w.WriteFrame(ramp(8000, 1)[0]) != nil)
}

func TestRead_UnevenRate(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "odd.wav")

	// 22050 Hz cannot be split into 10 ms frames.
	w, err := Create(path, 22050, 1)
	is.NoErr(err)
	is.NoErr(w.enc.Write(intBuffer(make([]int16, 22050/2), 22050, 1)))
	is.NoErr(w.Close())

	out, info, err := ReadFile(path)
	is.NoErr(err)
	is.Equal(info.SampleRate, 22050)
	is.Equal(info.Duration, 500*time.Millisecond)
	is.Equal(out[0].SampleRate, FallbackRate)
	is.Equal(len(out), 50)
}

func TestRead_Invalid(t *testing.T) {
	is := is.New(t)
	_, _, err := Read(bytes.NewReader([]byte("definitely not RIFF data")))
	is.Equal(err, ErrInvalidFile)
}
