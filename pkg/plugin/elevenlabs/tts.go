// Package elevenlabs speaks agent replies through ElevenLabs' streaming
// websocket API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/tts"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	DefaultBaseURL    = "wss://api.elevenlabs.io/v1/text-to-speech"
	DefaultVoiceID    = "21m00Tcm4TlvDq8ikWAM"
	DefaultModel      = "eleven_turbo_v2_5"
	DefaultSampleRate = 24000

	readTimeout = 30 * time.Second
)

var supportedRates = []int{16000, 22050, 24000, 44100}

// Config for the ElevenLabs provider.
type Config struct {
	APIKey          string
	BaseURL         string
	VoiceID         string
	Model           string
	SampleRate      int
	Stability       float64
	SimilarityBoost float64
	Retry           ai.RetryConfig
	Logger          *slog.Logger
}

// TTS implements tts.TTS with one websocket per utterance.
type TTS struct {
	cfg Config
}

func NewTTS(cfg Config) (*TTS, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ElevenLabs API key is required (set ELEVENLABS_API_KEY environment variable or provide api_key in config)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost == 0 {
		cfg.SimilarityBoost = 0.75
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = ai.RetryConfig{MaxRetries: 2, InitialDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second, BackoffFactor: 2}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TTS{cfg: cfg}, nil
}

func (e *TTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{Streaming: true, SampleRates: supportedRates, Voice: e.cfg.VoiceID}
}

// outputFormat picks the closest pcm_<rate> format ElevenLabs offers.
func outputFormat(rate int) (string, int) {
	for _, r := range supportedRates {
		if r == rate {
			return fmt.Sprintf("pcm_%d", r), r
		}
	}
	return fmt.Sprintf("pcm_%d", DefaultSampleRate), DefaultSampleRate
}

func (e *TTS) streamURL(voice, model string, rate int) (string, int, error) {
	format, actual := outputFormat(rate)
	u, err := url.Parse(strings.TrimRight(e.cfg.BaseURL, "/") + "/" + url.PathEscape(voice) + "/stream-input")
	if err != nil {
		return "", 0, fmt.Errorf("invalid elevenlabs base url: %w", err)
	}
	q := u.Query()
	q.Set("model_id", model)
	q.Set("output_format", format)
	u.RawQuery = q.Encode()
	return u.String(), actual, nil
}

func (e *TTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	voice := firstNonEmpty(req.Voice, e.cfg.VoiceID)
	model := firstNonEmpty(req.Model, e.cfg.Model)
	rate := req.SampleRate
	if rate == 0 {
		rate = e.cfg.SampleRate
	}

	wsURL, rate, err := e.streamURL(voice, model, rate)
	if err != nil {
		return nil, ai.NewFatalError(err, "elevenlabs")
	}

	logger := e.cfg.Logger.With(slog.String("provider", "elevenlabs"), slog.String("voice", voice))
	conn, err := ai.DialWebsocket(ctx, wsURL, http.Header{"xi-api-key": {e.cfg.APIKey}}, e.cfg.Retry, logger)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs connect: %w", err)
	}

	bos := beginMessage{
		Text:             " ",
		VoiceSettings:    voiceSettings{Stability: e.cfg.Stability, SimilarityBoost: e.cfg.SimilarityBoost},
		GenerationConfig: generationConfig{ChunkLengthSchedule: []int{120, 160, 250, 290}},
	}
	for _, m := range []any{bos, textMessage{Text: req.Text + " ", Flush: true}, textMessage{Text: ""}} {
		if err := writeJSON(conn, m); err != nil {
			conn.Close()
			return nil, ai.NewRecoverableError(err, "elevenlabs send")
		}
	}

	out := make(chan rtc.AudioFrame, 50)
	go e.receive(ctx, conn, rate, out, logger)
	return out, nil
}

func (e *TTS) receive(ctx context.Context, conn *websocket.Conn, rate int, out chan<- rtc.AudioFrame, logger *slog.Logger) {
	defer close(out)
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	splitter := rtc.NewFrameSplitter(rate, 1)
	send := func(frames ...rtc.AudioFrame) bool {
		for _, f := range frames {
			select {
			case out <- f:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	start := time.Now()
	bytes := 0
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("elevenlabs stream ended early", slog.Any("error", err))
			}
			break
		}
		if kind != websocket.TextMessage {
			continue
		}

		var m serverMessage
		if err := sonic.Unmarshal(msg, &m); err != nil {
			logger.Warn("elevenlabs message ignored", slog.Any("error", err))
			continue
		}
		if m.Error != "" {
			logger.Error("elevenlabs error", slog.String("error", m.Error), slog.String("message", m.Message), slog.Int("code", m.Code))
			break
		}
		if m.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(m.Audio)
			if err != nil {
				logger.Warn("elevenlabs audio not decodable", slog.Any("error", err))
				continue
			}
			bytes += len(pcm)
			if !send(splitter.Write(pcm)...) {
				return
			}
		}
		if m.IsFinal {
			break
		}
	}

	if f, ok := splitter.Flush(); ok {
		send(f)
	}
	logger.Debug("elevenlabs utterance synthesized",
		slog.Int("bytes", bytes),
		slog.Duration("duration", time.Since(start)))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
