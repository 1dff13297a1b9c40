package silero

import (
	"context"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
)

// EnergyVAD flags frames whose RMS exceeds a threshold.
type EnergyVAD struct {
	cfg Config
}

func NewEnergyVAD(cfg Config) *EnergyVAD {
	return &EnergyVAD{cfg: cfg.withDefaults()}
}

func (e *EnergyVAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.Event, error) {
	out := make(chan vad.Event, 10)
	h := &hysteresis{threshold: e.cfg.EnergyThreshold, minSpeech: e.cfg.MinSpeech, minSilence: e.cfg.MinSilence}
	go run(ctx, frames, energyScorer{}, h, out)
	return out, nil
}

func (e *EnergyVAD) Capabilities() vad.Capabilities {
	return vad.Capabilities{
		SampleRates:        []int{8000, 16000, 24000, 48000},
		MinSpeechDuration:  e.cfg.MinSpeech,
		MinSilenceDuration: e.cfg.MinSilence,
		Threshold:          e.cfg.EnergyThreshold,
	}
}

type energyScorer struct{}

func (energyScorer) score(f rtc.AudioFrame) (float32, time.Duration, bool, error) {
	return float32(rtc.RMS(f.Data)), rtc.FrameDuration, true, nil
}

func (energyScorer) close() {}
