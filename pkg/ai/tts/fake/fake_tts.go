package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/tts"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
)

const (
	DefaultSampleRate    = 24000
	DefaultFramesPerChar = 2
)

// FakeTTS speaks a 440 Hz tone whose length follows the text length, paced in
// real time unless Pace is zero.
type FakeTTS struct {
	mu       sync.Mutex
	requests []tts.SynthesizeRequest

	FramesPerChar int
	Pace          time.Duration
	// Err, when set, is returned by Synthesize.
	Err error
}

func NewFakeTTS() *FakeTTS {
	return &FakeTTS{FramesPerChar: DefaultFramesPerChar, Pace: rtc.FrameDuration}
}

// Requests returns every request received so far.
func (f *FakeTTS) Requests() []tts.SynthesizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.SynthesizeRequest(nil), f.requests...)
}

func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.Err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	rate := req.SampleRate
	if rate == 0 {
		rate = DefaultSampleRate
	}
	count := len([]rune(req.Text)) * f.FramesPerChar
	out := make(chan rtc.AudioFrame, 10)

	go func() {
		defer close(out)

		n := rtc.SamplesPerFrame(rate)
		for i := 0; i < count; i++ {
			samples := make([]int16, n)
			for j := range samples {
				idx := i*n + j
				samples[j] = int16(0.3 * 32767 * math.Sin(2*math.Pi*440*float64(idx)/float64(rate)))
			}

			frame := rtc.AudioFrame{
				Data:              rtc.PCM(samples),
				SampleRate:        rate,
				SamplesPerChannel: n,
				NumChannels:       1,
				Timestamp:         time.Duration(i) * rtc.FrameDuration,
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}

			if f.Pace > 0 {
				select {
				case <-time.After(f.Pace):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (f *FakeTTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{Streaming: true, SampleRates: []int{16000, 24000, 48000}, Voice: "fake"}
}
