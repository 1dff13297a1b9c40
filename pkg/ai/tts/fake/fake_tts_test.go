package fake

import (
	"context"
	"testing"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/tts"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/matryer/is"
)

func TestFakeTTS_Synthesize(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		sampleRate int
		wantFrames int
		wantRate   int
	}{
		{name: "default rate", text: "Hello", wantFrames: 10, wantRate: DefaultSampleRate},
		{name: "explicit rate", text: "Hi", sampleRate: 16000, wantFrames: 4, wantRate: 16000},
		{name: "empty text", text: "", wantFrames: 0, wantRate: DefaultSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			provider := NewFakeTTS()
			provider.Pace = 0

			frames, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: tt.text, SampleRate: tt.sampleRate})
			is.NoErr(err)

			count := 0
			for f := range frames {
				is.Equal(f.SampleRate, tt.wantRate)
				is.Equal(len(f.Data), rtc.FrameBytes(tt.wantRate, 1))
				count++
			}
			is.Equal(count, tt.wantFrames)
			is.Equal(provider.Requests()[0].Text, tt.text)
		})
	}
}

func TestFakeTTS_Cancel(t *testing.T) {
	is := is.New(t)
	provider := NewFakeTTS()

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := provider.Synthesize(ctx, tts.SynthesizeRequest{Text: "a fairly long sentence that would take a while to say"})
	is.NoErr(err)

	<-frames
	cancel()

	done := make(chan struct{})
	go func() {
		for range frames {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("frames channel not closed after cancel")
	}
}
