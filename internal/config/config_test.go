package config

import "testing"

func TestBotConfig_Resolve(t *testing.T) {
	zero := 0.0
	half := 0.5

	defaults := Defaults{
		STT: STTConfig{Language: "en-GB", EndpointingMS: 500},
		TTS: TTSConfig{VoiceID: "default-voice"},
		LLM: LLMConfig{Temperature: &half},
	}

	bot := &BotConfig{
		STT: STTConfig{Language: "en-IN"},
		LLM: LLMConfig{Model: "gpt-4o", Temperature: &zero},
	}

	stt := bot.ResolveSTT(defaults)
	if stt.Language != "en-IN" {
		t.Errorf("expected bot language to win, got %s", stt.Language)
	}
	if stt.EndpointingMS != 500 {
		t.Errorf("expected endpointing from defaults, got %d", stt.EndpointingMS)
	}
	if stt.Model != DefaultSTTModel || stt.Provider != DefaultSTTProvider {
		t.Errorf("expected built-in model/provider, got %s/%s", stt.Model, stt.Provider)
	}

	tts := bot.ResolveTTS(defaults)
	if tts.VoiceID != "default-voice" {
		t.Errorf("expected voice from defaults, got %s", tts.VoiceID)
	}
	if tts.Model != DefaultTTSModel {
		t.Errorf("expected built-in TTS model, got %s", tts.Model)
	}

	llm := bot.ResolveLLM(defaults)
	if *llm.Temperature != 0 {
		t.Errorf("expected explicit zero temperature to be kept, got %v", *llm.Temperature)
	}
	if llm.Model != "gpt-4o" {
		t.Errorf("expected bot model, got %s", llm.Model)
	}

	empty := &BotConfig{}
	if got := *empty.ResolveLLM(Defaults{}).Temperature; got != DefaultLLMTemperature {
		t.Errorf("expected default temperature %v, got %v", DefaultLLMTemperature, got)
	}

	vad := empty.ResolveVAD(Defaults{})
	if vad.Provider != DefaultVADProvider || vad.Threshold != DefaultVADThreshold {
		t.Errorf("unexpected VAD defaults: %+v", vad)
	}
}
