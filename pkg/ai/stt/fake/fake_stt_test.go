package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/matryer/is"
)

func collect(t *testing.T, events <-chan stt.SpeechEvent) []stt.SpeechEvent {
	t.Helper()
	var out []stt.SpeechEvent
	timeout := time.After(time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events to close")
		}
	}
}

func TestFakeSTTStream_Utterances(t *testing.T) {
	is := is.New(t)
	provider := NewFakeSTT("yes", "no")
	provider.ChunksPerUtterance = 3

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := provider.NewStream(ctx, stt.StreamConfig{Encoding: stt.EncodingLinear16, SampleRate: 16000, NumChannels: 1, Language: "en-US"})
	is.NoErr(err)

	frame := rtc.AudioFrame{Data: make([]byte, 320), SampleRate: 16000, SamplesPerChannel: 160, NumChannels: 1}
	for i := 0; i < 4; i++ {
		is.NoErr(stream.Push(frame))
	}
	is.NoErr(stream.CloseSend())

	events := collect(t, stream.Events())
	var types []stt.SpeechEventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}

	// one full utterance, then a partial one completed by CloseSend
	is.Equal(types, []stt.SpeechEventType{stt.SpeechEventStart, stt.SpeechEventFinal, stt.SpeechEventStart, stt.SpeechEventFinal})
	is.Equal(events[1].Text, "yes")
	is.Equal(events[1].Language, "en-US")
	is.Equal(events[3].Text, "no")
}

func TestFakeSTTStream_Write(t *testing.T) {
	is := is.New(t)
	provider := NewFakeSTT("hello")
	provider.ChunksPerUtterance = 2

	stream, err := provider.NewStream(context.Background(), stt.StreamConfig{Encoding: stt.EncodingContainer})
	is.NoErr(err)

	n, err := stream.Write([]byte("OggS"))
	is.NoErr(err)
	is.Equal(n, 4)
	_, err = stream.Write([]byte("more"))
	is.NoErr(err)

	fs := provider.LastStream()
	is.Equal(fs.Bytes(), 8)
	is.Equal(fs.Chunks(), 2)
	is.Equal(fs.Config().Encoding, stt.EncodingContainer)

	is.NoErr(stream.CloseSend())
	is.NoErr(stream.CloseSend()) // idempotent

	_, err = stream.Write([]byte("late"))
	is.True(errors.Is(err, ErrStreamClosed))

	events := collect(t, stream.Events())
	is.Equal(len(events), 2)
	is.Equal(events[1].Text, "hello")
}

func TestFakeSTTStream_NoScriptIsSilent(t *testing.T) {
	is := is.New(t)
	stream, err := NewFakeSTT().NewStream(context.Background(), stt.StreamConfig{})
	is.NoErr(err)

	for i := 0; i < 50; i++ {
		_, err := stream.Write([]byte{0})
		is.NoErr(err)
	}
	is.NoErr(stream.CloseSend())
	is.Equal(len(collect(t, stream.Events())), 0)
}
