package elevenlabs

import (
	"os"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"
)

func newElevenLabsTTS(cfg map[string]any) (any, error) {
	return NewTTS(Config{
		APIKey:          plugin.String(cfg, "api_key", os.Getenv("ELEVENLABS_API_KEY")),
		BaseURL:         plugin.String(cfg, "base_url", DefaultBaseURL),
		VoiceID:         plugin.String(cfg, "voice_id", DefaultVoiceID),
		Model:           plugin.String(cfg, "model", DefaultModel),
		SampleRate:      plugin.Int(cfg, "sample_rate", DefaultSampleRate),
		Stability:       plugin.Float(cfg, "stability", 0.5),
		SimilarityBoost: plugin.Float(cfg, "similarity_boost", 0.75),
	})
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "elevenlabs",
		Factory:     newElevenLabsTTS,
		Description: "ElevenLabs streaming text-to-speech",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":     "ElevenLabs API key (or set ELEVENLABS_API_KEY env var)",
			"voice_id":    DefaultVoiceID,
			"model":       DefaultModel,
			"sample_rate": DefaultSampleRate,
		},
	})
}
