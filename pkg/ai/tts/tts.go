package tts

import (
	"context"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
)

// SynthesizeRequest is one utterance to speak. Empty Voice or Model fall back
// to the provider's configured values.
type SynthesizeRequest struct {
	Text       string
	Voice      string
	Model      string
	SampleRate int
}

// Capabilities describes a TTS provider.
type Capabilities struct {
	Streaming   bool
	SampleRates []int
	Voice       string
}

// TTS is implemented by text-to-speech providers.
type TTS interface {
	// Synthesize returns a channel of 10ms frames that is closed when the
	// utterance is complete or ctx is cancelled.
	Synthesize(ctx context.Context, req SynthesizeRequest) (<-chan rtc.AudioFrame, error)

	Capabilities() Capabilities
}
