// Package config loads the bot definitions from bots.yaml, validates the process
// environment and resolves runtime settings.
package config

import (
	"gopkg.in/yaml.v3"
)

// Built-in provider settings, used when neither the bot block nor the defaults
// block set a value.
const (
	DefaultBotType = "home_renovation"

	DefaultSTTProvider    = "deepgram"
	DefaultSTTLanguage    = "en-US"
	DefaultSTTModel       = "nova-2"
	DefaultEndpointingMS  = 300
	DefaultTTSProvider    = "elevenlabs"
	DefaultTTSVoiceID     = "21m00Tcm4TlvDq8ikWAM"
	DefaultTTSModel       = "eleven_turbo_v2_5"
	DefaultLLMProvider    = "openai"
	DefaultLLMModel       = "gpt-4o-mini"
	DefaultLLMTemperature = 0.2
	DefaultVADProvider    = "silero"
	DefaultVADThreshold   = 0.5
)

// File is the parsed form of bots.yaml.
type File struct {
	Bots     map[string]*BotConfig `yaml:"bots"`
	Defaults Defaults              `yaml:"defaults"`
}

// Defaults holds the top-level "defaults" mapping.
type Defaults struct {
	BotType string    `yaml:"bot_type"`
	STT     STTConfig `yaml:"stt"`
	TTS     TTSConfig `yaml:"tts"`
	LLM     LLMConfig `yaml:"llm"`
	VAD     VADConfig `yaml:"vad"`
}

// BotConfig describes one qualification script.
type BotConfig struct {
	Greeting             string     `yaml:"greeting"`
	CompanyName          string     `yaml:"company_name"`
	Questions            []Question `yaml:"questions"`
	SuccessMessage       string     `yaml:"success_message"`
	FailureMessage       string     `yaml:"failure_message"`
	ClarificationMessage string     `yaml:"clarification_message"`

	STT STTConfig `yaml:"stt"`
	TTS TTSConfig `yaml:"tts"`
	LLM LLMConfig `yaml:"llm"`
	VAD VADConfig `yaml:"vad"`
}

// Question is one yes/no question. Position is 1-based and assigned from the
// order in the file.
type Question struct {
	Position int    `yaml:"-"`
	Text     string `yaml:"text"`
}

// UnmarshalYAML accepts both `- text: ...` mappings and plain string items.
func (q *Question) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		q.Text = value.Value
		return nil
	}
	type plain Question
	return value.Decode((*plain)(q))
}

// STTConfig configures speech-to-text.
type STTConfig struct {
	Provider      string `yaml:"provider"`
	Language      string `yaml:"language"`
	Model         string `yaml:"model"`
	EndpointingMS int    `yaml:"endpointing_ms"`
}

// TTSConfig configures speech synthesis.
type TTSConfig struct {
	Provider string `yaml:"provider"`
	VoiceID  string `yaml:"voice_id"`
	Model    string `yaml:"model"`
}

// LLMConfig configures the hosted language model. Temperature is a pointer
// because zero is a meaningful value.
type LLMConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
}

// VADConfig configures voice activity detection.
type VADConfig struct {
	Provider  string  `yaml:"provider"`
	Threshold float64 `yaml:"threshold"`
	ModelPath string  `yaml:"model_path"`
}

// ResolveSTT merges the bot block over the defaults and the built-in values.
func (b *BotConfig) ResolveSTT(d Defaults) STTConfig {
	return STTConfig{
		Provider:      first(b.STT.Provider, d.STT.Provider, DefaultSTTProvider),
		Language:      first(b.STT.Language, d.STT.Language, DefaultSTTLanguage),
		Model:         first(b.STT.Model, d.STT.Model, DefaultSTTModel),
		EndpointingMS: firstInt(b.STT.EndpointingMS, d.STT.EndpointingMS, DefaultEndpointingMS),
	}
}

// ResolveTTS merges the bot block over the defaults and the built-in values.
func (b *BotConfig) ResolveTTS(d Defaults) TTSConfig {
	return TTSConfig{
		Provider: first(b.TTS.Provider, d.TTS.Provider, DefaultTTSProvider),
		VoiceID:  first(b.TTS.VoiceID, d.TTS.VoiceID, DefaultTTSVoiceID),
		Model:    first(b.TTS.Model, d.TTS.Model, DefaultTTSModel),
	}
}

// ResolveLLM merges the bot block over the defaults and the built-in values.
func (b *BotConfig) ResolveLLM(d Defaults) LLMConfig {
	temp := DefaultLLMTemperature
	switch {
	case b.LLM.Temperature != nil:
		temp = *b.LLM.Temperature
	case d.LLM.Temperature != nil:
		temp = *d.LLM.Temperature
	}
	return LLMConfig{
		Provider:    first(b.LLM.Provider, d.LLM.Provider, DefaultLLMProvider),
		Model:       first(b.LLM.Model, d.LLM.Model, DefaultLLMModel),
		Temperature: &temp,
	}
}

// ResolveVAD merges the bot block over the defaults and the built-in values.
func (b *BotConfig) ResolveVAD(d Defaults) VADConfig {
	threshold := b.VAD.Threshold
	if threshold <= 0 {
		threshold = d.VAD.Threshold
	}
	if threshold <= 0 {
		threshold = DefaultVADThreshold
	}
	return VADConfig{
		Provider:  first(b.VAD.Provider, d.VAD.Provider, DefaultVADProvider),
		Threshold: threshold,
		ModelPath: first(b.VAD.ModelPath, d.VAD.ModelPath, ""),
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
