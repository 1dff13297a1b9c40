// Package silero provides voice activity detection. Built with -tags=silero it
// runs the Silero ONNX model; otherwise, or when the model cannot be loaded,
// it falls back to an RMS energy detector.
package silero

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
)

const (
	ModelFileName = "silero_vad.onnx"
	ModelURL      = "https://github.com/snakers4/silero-vad/raw/master/src/silero_vad/data/silero_vad.onnx"

	DefaultThreshold       = 0.5
	DefaultEnergyThreshold = 0.02
	DefaultMinSpeech       = 50 * time.Millisecond
	DefaultMinSilence      = 550 * time.Millisecond
)

// Config for both detectors. Threshold applies to Silero probabilities,
// EnergyThreshold to normalised RMS.
type Config struct {
	Threshold       float32
	EnergyThreshold float32
	MinSpeech       time.Duration
	MinSilence      time.Duration
	ModelPath       string
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.EnergyThreshold <= 0 {
		c.EnergyThreshold = DefaultEnergyThreshold
	}
	if c.MinSpeech <= 0 {
		c.MinSpeech = DefaultMinSpeech
	}
	if c.MinSilence <= 0 {
		c.MinSilence = DefaultMinSilence
	}
	if c.ModelPath == "" {
		c.ModelPath = DefaultModelPath()
	}
	return c
}

// DefaultModelPath is $QUALIFIER_MODEL_PATH/silero_vad.onnx, or
// ~/.qualifier/models/silero_vad.onnx when unset.
func DefaultModelPath() string {
	dir := os.Getenv("QUALIFIER_MODEL_PATH")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".qualifier", "models")
	}
	return filepath.Join(dir, ModelFileName)
}

func configFromMap(cfg map[string]any) Config {
	return Config{
		Threshold:       float32(plugin.Float(cfg, "threshold", DefaultThreshold)),
		EnergyThreshold: float32(plugin.Float(cfg, "energy_threshold", DefaultEnergyThreshold)),
		MinSpeech:       plugin.Duration(cfg, "min_speech", DefaultMinSpeech),
		MinSilence:      plugin.Duration(cfg, "min_silence", DefaultMinSilence),
		ModelPath:       plugin.String(cfg, "model_path", ""),
	}
}

// hysteresis turns per-window speech scores into start and end events.
// Speech starts after minSpeech of scores at or above threshold and ends
// after minSilence below it.
type hysteresis struct {
	threshold  float32
	minSpeech  time.Duration
	minSilence time.Duration

	speaking bool
	voiced   time.Duration
	silent   time.Duration
}

func (h *hysteresis) observe(score float32, span time.Duration) (vad.EventType, bool) {
	if score >= h.threshold {
		h.voiced += span
		h.silent = 0
	} else {
		h.silent += span
		h.voiced = 0
	}

	switch {
	case !h.speaking && h.voiced >= h.minSpeech:
		h.speaking = true
		return vad.EventSpeechStart, true
	case h.speaking && h.silent >= h.minSilence:
		h.speaking = false
		return vad.EventSpeechEnd, true
	}
	return 0, false
}

// scorer returns the speech score of the audio seen so far and the span of
// audio it covers. ok is false while the scorer is still buffering.
type scorer interface {
	score(frame rtc.AudioFrame) (score float32, span time.Duration, ok bool, err error)
	close()
}

// run drives s over frames and emits events until frames closes or ctx ends.
func run(ctx context.Context, frames <-chan rtc.AudioFrame, s scorer, h *hysteresis, out chan<- vad.Event) {
	defer close(out)
	defer s.close()

	emit := func(ev vad.Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				if h.speaking {
					emit(vad.Event{Type: vad.EventSpeechEnd, Timestamp: time.Now()})
				}
				return
			}

			p, span, ready, err := s.score(frame)
			if err != nil {
				emit(vad.Event{Type: vad.EventError, Timestamp: time.Now(), Error: err})
				return
			}
			if !ready {
				continue
			}
			if t, changed := h.observe(p, span); changed {
				if !emit(vad.Event{Type: t, Timestamp: time.Now(), Probability: p}) {
					return
				}
			}
		}
	}
}
