// Package fake registers the in-memory providers under the name "fake" so a
// whole session can run without network access.
package fake

import (
	llmfake "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/llm/fake"
	sttfake "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt/fake"
	ttsfake "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/tts/fake"
	vadfake "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad/fake"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"
)

const Name = "fake"

func newFakeSTT(cfg map[string]any) (any, error) {
	s := sttfake.NewFakeSTT(plugin.Strings(cfg, "transcripts")...)
	s.ChunksPerUtterance = plugin.Int(cfg, "chunks_per_utterance", sttfake.DefaultChunksPerUtterance)
	return s, nil
}

func newFakeTTS(cfg map[string]any) (any, error) {
	t := ttsfake.NewFakeTTS()
	t.FramesPerChar = plugin.Int(cfg, "frames_per_char", ttsfake.DefaultFramesPerChar)
	t.Pace = plugin.Duration(cfg, "pace", t.Pace)
	return t, nil
}

func newFakeLLM(cfg map[string]any) (any, error) {
	return llmfake.NewFakeLLM(plugin.Strings(cfg, "responses")...), nil
}

func newFakeVAD(cfg map[string]any) (any, error) {
	v := vadfake.NewFakeVAD()
	v.StartFrames = plugin.Int(cfg, "start_frames", v.StartFrames)
	v.EndFrames = plugin.Int(cfg, "end_frames", v.EndFrames)
	return v, nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        Name,
		Factory:     newFakeSTT,
		Description: "Scripted transcripts, one per N pushed chunks",
		Version:     "1.0.0",
		Config: map[string]any{
			"transcripts":          []string{"yes", "no"},
			"chunks_per_utterance": sttfake.DefaultChunksPerUtterance,
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        Name,
		Factory:     newFakeTTS,
		Description: "Sine tone proportional to text length",
		Version:     "1.0.0",
		Config: map[string]any{
			"frames_per_char": ttsfake.DefaultFramesPerChar,
			"pace":            "10ms",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        Name,
		Factory:     newFakeLLM,
		Description: "Cycles through canned replies",
		Version:     "1.0.0",
		Config: map[string]any{
			"responses": []string{"Hello! Do you own your home?"},
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindVAD,
		Name:        Name,
		Factory:     newFakeVAD,
		Description: "Non-zero samples count as speech",
		Version:     "1.0.0",
		Config: map[string]any{
			"start_frames": 2,
			"end_frames":   5,
		},
	})
}
