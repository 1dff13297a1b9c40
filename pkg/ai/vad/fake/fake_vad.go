package fake

import (
	"context"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
)

const (
	DefaultStartFrames = 2
	DefaultEndFrames   = 5
)

// FakeVAD treats any frame with a non-zero sample as speech. Speech starts
// after StartFrames voiced frames in a row and ends after EndFrames silent
// ones.
type FakeVAD struct {
	StartFrames int
	EndFrames   int
}

func NewFakeVAD() *FakeVAD {
	return &FakeVAD{StartFrames: DefaultStartFrames, EndFrames: DefaultEndFrames}
}

func (f *FakeVAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.Event, error) {
	out := make(chan vad.Event, 10)

	go func() {
		defer close(out)

		emit := func(t vad.EventType) bool {
			select {
			case out <- vad.Event{Type: t, Timestamp: time.Now(), Probability: 1}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		speaking := false
		voiced, silent := 0, 0
		for {
			select {
			case frame, ok := <-frames:
				if !ok {
					if speaking {
						emit(vad.EventSpeechEnd)
					}
					return
				}

				if hasSignal(frame.Data) {
					voiced++
					silent = 0
				} else {
					silent++
					voiced = 0
				}

				switch {
				case !speaking && voiced >= f.StartFrames:
					speaking = true
					if !emit(vad.EventSpeechStart) {
						return
					}
				case speaking && silent >= f.EndFrames:
					speaking = false
					if !emit(vad.EventSpeechEnd) {
						return
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (f *FakeVAD) Capabilities() vad.Capabilities {
	return vad.Capabilities{
		SampleRates:        []int{8000, 16000, 24000, 48000},
		MinSpeechDuration:  time.Duration(f.StartFrames) * rtc.FrameDuration,
		MinSilenceDuration: time.Duration(f.EndFrames) * rtc.FrameDuration,
		Threshold:          0,
	}
}

func hasSignal(pcm []byte) bool {
	for _, b := range pcm {
		if b != 0 {
			return true
		}
	}
	return false
}
