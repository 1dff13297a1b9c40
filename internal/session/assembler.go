// Package session assembles the providers for a bot and runs its
// conversation, either in a LiveKit room or over local I/O.
package session

import (
	"fmt"
	"log/slog"

	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/bot"
	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/config"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/llm"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/tts"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"
)

// Secrets read from the environment and handed to providers as api_key.
const (
	EnvDeepgramKey   = "DEEPGRAM_API_KEY"
	EnvElevenLabsKey = "ELEVENLABS_API_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
)

// Components are the constructed providers plus the settings they were built
// from.
type Components struct {
	STT stt.STT
	TTS tts.TTS
	LLM llm.LLM
	VAD vad.VAD

	STTConfig config.STTConfig
	TTSConfig config.TTSConfig
	LLMConfig config.LLMConfig
	VADConfig config.VADConfig
}

// Assembler builds Components through the plugin registry.
type Assembler struct {
	env    func(string) string
	logger *slog.Logger
}

// NewAssembler reads secrets through env, usually os.Getenv.
func NewAssembler(env func(string) string, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{env: env, logger: logger}
}

// Build resolves each provider block of q against defaults and constructs the
// providers in order: speech-to-text, text-to-speech, language model, VAD.
// The first failure is returned.
func (a *Assembler) Build(q *bot.Qualifier, defaults config.Defaults) (*Components, error) {
	c := &Components{
		STTConfig: q.Config.ResolveSTT(defaults),
		TTSConfig: q.Config.ResolveTTS(defaults),
		LLMConfig: q.Config.ResolveLLM(defaults),
		VADConfig: q.Config.ResolveVAD(defaults),
	}

	var err error
	if c.STT, err = a.BuildSTT(c.STTConfig); err != nil {
		return nil, err
	}
	if c.TTS, err = a.BuildTTS(c.TTSConfig); err != nil {
		return nil, err
	}
	if c.LLM, err = a.BuildLLM(c.LLMConfig); err != nil {
		return nil, err
	}
	if c.VAD, err = a.BuildVAD(c.VADConfig); err != nil {
		return nil, err
	}

	a.logger.Info("session components ready",
		slog.String("bot_type", q.BotType),
		slog.String("stt", c.STTConfig.Provider+"/"+c.STTConfig.Model),
		slog.String("tts", c.TTSConfig.Provider+"/"+c.TTSConfig.Model),
		slog.String("llm", c.LLMConfig.Provider+"/"+c.LLMConfig.Model),
		slog.String("vad", c.VADConfig.Provider))
	return c, nil
}

// BuildSTT constructs only the speech-to-text provider.
func (a *Assembler) BuildSTT(c config.STTConfig) (stt.STT, error) {
	p, err := plugin.New[stt.STT](plugin.KindSTT, c.Provider, a.sttOptions(c))
	if err != nil {
		return nil, fmt.Errorf("build stt: %w", err)
	}
	return p, nil
}

// BuildTTS constructs only the text-to-speech provider.
func (a *Assembler) BuildTTS(c config.TTSConfig) (tts.TTS, error) {
	p, err := plugin.New[tts.TTS](plugin.KindTTS, c.Provider, a.ttsOptions(c))
	if err != nil {
		return nil, fmt.Errorf("build tts: %w", err)
	}
	return p, nil
}

// BuildLLM constructs only the language model.
func (a *Assembler) BuildLLM(c config.LLMConfig) (llm.LLM, error) {
	p, err := plugin.New[llm.LLM](plugin.KindLLM, c.Provider, a.llmOptions(c))
	if err != nil {
		return nil, fmt.Errorf("build llm: %w", err)
	}
	return p, nil
}

// BuildVAD constructs only the voice activity detector.
func (a *Assembler) BuildVAD(c config.VADConfig) (vad.VAD, error) {
	p, err := plugin.New[vad.VAD](plugin.KindVAD, c.Provider, vadOptions(c))
	if err != nil {
		return nil, fmt.Errorf("build vad: %w", err)
	}
	return p, nil
}

func (a *Assembler) sttOptions(c config.STTConfig) map[string]any {
	return map[string]any{
		"api_key":        a.env(EnvDeepgramKey),
		"model":          c.Model,
		"language":       c.Language,
		"endpointing_ms": c.EndpointingMS,
		"smart_format":   true,
		"filler_words":   true,
	}
}

func (a *Assembler) ttsOptions(c config.TTSConfig) map[string]any {
	return map[string]any{
		"api_key":  a.env(EnvElevenLabsKey),
		"voice_id": c.VoiceID,
		"model":    c.Model,
	}
}

func (a *Assembler) llmOptions(c config.LLMConfig) map[string]any {
	opts := map[string]any{
		"api_key": a.env(EnvOpenAIKey),
		"model":   c.Model,
	}
	if c.Temperature != nil {
		opts["temperature"] = *c.Temperature
	}
	return opts
}

func vadOptions(c config.VADConfig) map[string]any {
	return map[string]any{
		"threshold":  c.Threshold,
		"model_path": c.ModelPath,
	}
}
