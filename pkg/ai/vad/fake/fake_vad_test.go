package fake

import (
	"context"
	"testing"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/matryer/is"
)

func frame(loud bool) rtc.AudioFrame {
	data := make([]byte, 320)
	if loud {
		for i := range data {
			data[i] = 0x40
		}
	}
	return rtc.AudioFrame{Data: data, SampleRate: 16000, SamplesPerChannel: 160, NumChannels: 1}
}

func TestFakeVAD_Detect(t *testing.T) {
	tests := []struct {
		name    string
		pattern string // L = loud frame, . = silent frame
		want    []vad.EventType
	}{
		{name: "silence", pattern: "..........", want: nil},
		{name: "single blip", pattern: "L.........", want: nil},
		{name: "utterance", pattern: "LLLL......", want: []vad.EventType{vad.EventSpeechStart, vad.EventSpeechEnd}},
		{name: "short pause keeps speaking", pattern: "LLL..LLL......", want: []vad.EventType{vad.EventSpeechStart, vad.EventSpeechEnd}},
		{name: "cut off by end of input", pattern: "LLLL", want: []vad.EventType{vad.EventSpeechStart, vad.EventSpeechEnd}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			in := make(chan rtc.AudioFrame, len(tt.pattern))
			for _, c := range tt.pattern {
				in <- frame(c == 'L')
			}
			close(in)

			events, err := NewFakeVAD().Detect(ctx, in)
			is.NoErr(err)

			var got []vad.EventType
			for ev := range events {
				got = append(got, ev.Type)
			}
			is.Equal(got, tt.want)
		})
	}
}
