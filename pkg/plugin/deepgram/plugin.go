package deepgram

import (
	"os"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"
)

// YesNoKeyterms boosts the short answers callers give to qualification
// questions.
var YesNoKeyterms = []stt.Keyterm{
	{Term: "yes", Boost: 10},
	{Term: "yeah", Boost: 8},
	{Term: "yep", Boost: 8},
	{Term: "yup", Boost: 8},
	{Term: "sure", Boost: 6},
	{Term: "correct", Boost: 6},
	{Term: "absolutely", Boost: 5},
	{Term: "definitely", Boost: 5},
	{Term: "of course", Boost: 5},
	{Term: "certainly", Boost: 5},
	{Term: "affirmative", Boost: 4},
	{Term: "right", Boost: 4},
	{Term: "okay", Boost: 4},
	{Term: "ok", Boost: 4},

	{Term: "no", Boost: 10},
	{Term: "nope", Boost: 8},
	{Term: "nah", Boost: 8},
	{Term: "not", Boost: 6},
	{Term: "negative", Boost: 5},
	{Term: "never", Boost: 5},
	{Term: "incorrect", Boost: 4},
	{Term: "wrong", Boost: 4},
}

func newDeepgramSTT(cfg map[string]any) (any, error) {
	return NewSTT(Config{
		APIKey:         plugin.String(cfg, "api_key", os.Getenv("DEEPGRAM_API_KEY")),
		BaseURL:        plugin.String(cfg, "base_url", DefaultBaseURL),
		Model:          plugin.String(cfg, "model", DefaultModel),
		Language:       plugin.String(cfg, "language", DefaultLanguage),
		EndpointingMS:  plugin.Int(cfg, "endpointing_ms", DefaultEndpointingMS),
		SmartFormat:    plugin.Bool(cfg, "smart_format", true),
		FillerWords:    plugin.Bool(cfg, "filler_words", true),
		InterimResults: plugin.Bool(cfg, "interim_results", false),
		Keyterms:       YesNoKeyterms,
	})
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "deepgram",
		Factory:     newDeepgramSTT,
		Description: "Deepgram live transcription with yes/no keyterm boosting",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":        "Deepgram API key (or set DEEPGRAM_API_KEY env var)",
			"model":          DefaultModel,
			"language":       DefaultLanguage,
			"endpointing_ms": DefaultEndpointingMS,
			"smart_format":   true,
			"filler_words":   true,
		},
	})
}
