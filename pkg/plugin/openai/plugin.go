// Package openai registers the OpenAI chat completion provider.
package openai

import (
	"os"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"
)

func newOpenAILLM(cfg map[string]any) (any, error) {
	return NewLLM(Config{
		APIKey:      plugin.String(cfg, "api_key", os.Getenv("OPENAI_API_KEY")),
		Model:       plugin.String(cfg, "model", DefaultModel),
		BaseURL:     plugin.String(cfg, "base_url", os.Getenv("OPENAI_BASE_URL")),
		Temperature: float32(plugin.Float(cfg, "temperature", DefaultTemperature)),
		MaxTokens:   plugin.Int(cfg, "max_tokens", 0),
	})
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "openai",
		Factory:     newOpenAILLM,
		Description: "OpenAI chat completions",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":     "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":       DefaultModel,
			"temperature": DefaultTemperature,
			"base_url":    "optional API base URL (or set OPENAI_BASE_URL env var)",
		},
	})
}
