package plugin_test

import (
	"context"
	"testing"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/llm"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/tts"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/deepgram"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/elevenlabs"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/fake"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/openai"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/silero"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/matryer/is"
)

func TestBuiltinPluginsRegistered(t *testing.T) {
	is := is.New(t)

	is.Equal(plugin.ListKinds(), []string{plugin.KindLLM, plugin.KindSTT, plugin.KindTTS, plugin.KindVAD})

	want := map[string][]string{
		plugin.KindSTT: {"deepgram", "fake"},
		plugin.KindTTS: {"elevenlabs", "fake"},
		plugin.KindLLM: {"fake", "openai"},
		plugin.KindVAD: {"energy", "fake", "silero"},
	}
	for kind, names := range want {
		var got []string
		for _, p := range plugin.List(kind) {
			got = append(got, p.Name)
		}
		is.Equal(got, names)
	}

	p, ok := plugin.Lookup(plugin.KindVAD, "silero")
	is.True(ok)
	is.True(p.Downloader != nil)
}

func TestFakePlugins_Conversation(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := plugin.New[stt.STT](plugin.KindSTT, "fake", map[string]any{
		"transcripts":          []any{"yes I do"},
		"chunks_per_utterance": 3,
	})
	is.NoErr(err)
	stream, err := s.NewStream(ctx, stt.StreamConfig{SampleRate: 16000, NumChannels: 1})
	is.NoErr(err)
	frame := rtc.AudioFrame{Data: make([]byte, rtc.FrameBytes(16000, 1)), SampleRate: 16000, SamplesPerChannel: 160, NumChannels: 1}
	for i := 0; i < 3; i++ {
		is.NoErr(stream.Push(frame))
	}
	is.NoErr(stream.CloseSend())
	var finals []string
	for ev := range stream.Events() {
		if ev.Type == stt.SpeechEventFinal {
			finals = append(finals, ev.Text)
		}
	}
	is.Equal(finals, []string{"yes I do"})

	l, err := plugin.New[llm.LLM](plugin.KindLLM, "fake", map[string]any{"responses": []string{"Great."}})
	is.NoErr(err)
	resp, err := l.Chat(ctx, llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: finals[0]}}})
	is.NoErr(err)
	is.Equal(resp.Message.Content, "Great.")

	synth, err := plugin.New[tts.TTS](plugin.KindTTS, "fake", map[string]any{"frames_per_char": 1, "pace": "0s"})
	is.NoErr(err)
	frames, err := synth.Synthesize(ctx, tts.SynthesizeRequest{Text: resp.Message.Content})
	is.NoErr(err)
	n := 0
	for range frames {
		n++
	}
	is.Equal(n, len("Great."))

	v, err := plugin.New[vad.VAD](plugin.KindVAD, "fake", nil)
	is.NoErr(err)
	is.True(v.Capabilities().MinSilenceDuration > 0)
}

func TestNew_WrongKind(t *testing.T) {
	is := is.New(t)
	_, err := plugin.New[tts.TTS](plugin.KindSTT, "fake", nil)
	is.True(err != nil)
}
