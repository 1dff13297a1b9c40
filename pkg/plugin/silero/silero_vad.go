//go:build silero

package silero

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	ort "github.com/yalue/onnxruntime_go"
)

const description = "Silero VAD ONNX model with energy fallback"

const (
	modelRate   = 16000
	windowSize  = 512 // samples per inference at 16 kHz
	contextSize = 64  // trailing samples of the previous window prepended to each input
	stateSize   = 2 * 1 * 128
)

var (
	ortOnce    sync.Once
	ortInitErr error
)

// ensureOrtEnv initialises the process-wide ONNX runtime once. It is never
// torn down.
func ensureOrtEnv() error {
	ortOnce.Do(func() {
		if lib := os.Getenv("ONNXRUNTIME_LIB"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		} else if runtime.GOOS == "darwin" {
			ort.SetSharedLibraryPath("/opt/homebrew/lib/libonnxruntime.dylib")
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// VAD runs the Silero model. Each Detect call gets its own session and
// recurrent state.
type VAD struct {
	cfg Config
}

// NewVAD returns the Silero detector, or the energy detector when the model
// file or runtime is unavailable.
func NewVAD(cfg Config) (vad.VAD, error) {
	cfg = cfg.withDefaults()

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		slog.Warn("silero model not found, using energy detection",
			slog.String("model_path", cfg.ModelPath),
			slog.String("hint", "run `qualifier-bot plugin download vad silero`"))
		return NewEnergyVAD(cfg), nil
	}
	if err := ensureOrtEnv(); err != nil {
		slog.Warn("onnx runtime unavailable, using energy detection", slog.Any("error", err))
		return NewEnergyVAD(cfg), nil
	}
	return &VAD{cfg: cfg}, nil
}

func newSileroVAD(cfg map[string]any) (any, error) {
	return NewVAD(configFromMap(cfg))
}

func (v *VAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.Event, error) {
	m, err := newModel(v.cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	out := make(chan vad.Event, 10)
	h := &hysteresis{threshold: v.cfg.Threshold, minSpeech: v.cfg.MinSpeech, minSilence: v.cfg.MinSilence}
	go run(ctx, frames, m, h, out)
	return out, nil
}

func (v *VAD) Capabilities() vad.Capabilities {
	return vad.Capabilities{
		SampleRates:        []int{8000, 16000, 24000, 48000},
		MinSpeechDuration:  v.cfg.MinSpeech,
		MinSilenceDuration: v.cfg.MinSilence,
		Threshold:          v.cfg.Threshold,
	}
}

// model holds one inference session with tensors bound once and reused.
type model struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	sr      *ort.Tensor[int64]
	state   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	stateN  *ort.Tensor[float32]

	pending []float32 // 16 kHz samples waiting for a full window
	context []float32
}

func newModel(path string) (*model, error) {
	m := &model{context: make([]float32, contextSize)}

	var err error
	if m.input, err = ort.NewTensor(ort.NewShape(1, contextSize+windowSize), make([]float32, contextSize+windowSize)); err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	if m.sr, err = ort.NewTensor(ort.NewShape(1), []int64{modelRate}); err != nil {
		m.close()
		return nil, fmt.Errorf("create sr tensor: %w", err)
	}
	if m.state, err = ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, stateSize)); err != nil {
		m.close()
		return nil, fmt.Errorf("create state tensor: %w", err)
	}
	if m.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		m.close()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	if m.stateN, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		m.close()
		return nil, fmt.Errorf("create stateN tensor: %w", err)
	}

	m.session, err = ort.NewAdvancedSession(path,
		[]string{"input", "sr", "state"},
		[]string{"output", "stateN"},
		[]ort.Value{m.input, m.sr, m.state},
		[]ort.Value{m.output, m.stateN},
		nil)
	if err != nil {
		m.close()
		return nil, fmt.Errorf("create silero session: %w", err)
	}
	return m, nil
}

// score buffers the frame and runs one inference per full window.
func (m *model) score(f rtc.AudioFrame) (float32, time.Duration, bool, error) {
	f = rtc.ResampleFrame(f, modelRate)
	for _, s := range rtc.Samples(f.Data) {
		m.pending = append(m.pending, float32(s)/32768.0)
	}
	if len(m.pending) < windowSize {
		return 0, 0, false, nil
	}

	in := m.input.GetData()
	copy(in, m.context)
	copy(in[contextSize:], m.pending[:windowSize])
	copy(m.context, m.pending[windowSize-contextSize:windowSize])
	m.pending = append(m.pending[:0], m.pending[windowSize:]...)

	if err := m.session.Run(); err != nil {
		return 0, 0, false, fmt.Errorf("silero inference: %w", err)
	}
	copy(m.state.GetData(), m.stateN.GetData())

	span := time.Duration(windowSize) * time.Second / modelRate
	return m.output.GetData()[0], span, true, nil
}

func (m *model) close() {
	if m.session != nil {
		m.session.Destroy()
	}
	for _, t := range []interface{ Destroy() error }{m.input, m.sr, m.state, m.output, m.stateN} {
		if t != nil {
			t.Destroy()
		}
	}
}
