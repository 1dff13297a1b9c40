// Package deepgram streams caller audio to Deepgram's live transcription API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	DefaultBaseURL       = "wss://api.deepgram.com"
	DefaultModel         = "nova-2"
	DefaultLanguage      = "en-US"
	DefaultEndpointingMS = 300

	keepAliveInterval = 8 * time.Second
)

// ErrStreamClosed is returned when audio is sent after CloseSend.
var ErrStreamClosed = errors.New("deepgram: stream closed")

// Config holds provider-wide settings. StreamConfig values, when set,
// override them per stream.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	EndpointingMS  int
	SmartFormat    bool
	FillerWords    bool
	InterimResults bool
	Keyterms       []stt.Keyterm
	Retry          ai.RetryConfig
	Logger         *slog.Logger
}

// STT implements stt.STT.
type STT struct {
	cfg Config
}

func NewSTT(cfg Config) (*STT, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Deepgram API key is required (set DEEPGRAM_API_KEY environment variable or provide api_key in config)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.EndpointingMS == 0 {
		cfg.EndpointingMS = DefaultEndpointingMS
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = ai.DefaultRetryConfig
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &STT{cfg: cfg}, nil
}

func (d *STT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Streaming:      true,
		InterimResults: true,
		Encodings:      []stt.Encoding{stt.EncodingLinear16, stt.EncodingContainer},
	}
}

// options merges the stream configuration over the provider defaults.
func (d *STT) options(sc stt.StreamConfig) stt.StreamConfig {
	o := sc
	if o.Encoding == "" {
		o.Encoding = stt.EncodingLinear16
	}
	if o.Model == "" {
		o.Model = d.cfg.Model
	}
	if o.Language == "" {
		o.Language = d.cfg.Language
	}
	if o.EndpointingMS == 0 {
		o.EndpointingMS = d.cfg.EndpointingMS
	}
	if len(o.Keyterms) == 0 {
		o.Keyterms = d.cfg.Keyterms
	}
	o.SmartFormat = o.SmartFormat || d.cfg.SmartFormat
	o.FillerWords = o.FillerWords || d.cfg.FillerWords
	o.InterimResults = o.InterimResults || d.cfg.InterimResults
	if o.Encoding == stt.EncodingLinear16 {
		if o.SampleRate == 0 {
			o.SampleRate = 16000
		}
		if o.NumChannels == 0 {
			o.NumChannels = 1
		}
	}
	return o
}

// listenURL builds the /v1/listen URL. nova-3 models take plain keyterms;
// older models take keywords with an intensifier.
func (d *STT) listenURL(o stt.StreamConfig) (string, error) {
	u, err := url.Parse(strings.TrimRight(d.cfg.BaseURL, "/") + "/v1/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram base url: %w", err)
	}

	q := u.Query()
	q.Set("model", o.Model)
	q.Set("language", o.Language)
	q.Set("endpointing", strconv.Itoa(o.EndpointingMS))
	q.Set("smart_format", strconv.FormatBool(o.SmartFormat))
	q.Set("filler_words", strconv.FormatBool(o.FillerWords))
	q.Set("interim_results", strconv.FormatBool(o.InterimResults))
	q.Set("punctuate", "true")
	q.Set("vad_events", "true")

	if o.Encoding == stt.EncodingLinear16 {
		q.Set("encoding", "linear16")
		q.Set("sample_rate", strconv.Itoa(o.SampleRate))
		q.Set("channels", strconv.Itoa(o.NumChannels))
	}

	nova3 := strings.HasPrefix(o.Model, "nova-3")
	for _, kt := range o.Keyterms {
		if nova3 {
			q.Add("keyterm", kt.Term)
			continue
		}
		q.Add("keywords", kt.Term+":"+strconv.FormatFloat(kt.Boost, 'f', -1, 64))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *STT) NewStream(ctx context.Context, sc stt.StreamConfig) (stt.STTStream, error) {
	o := d.options(sc)
	wsURL, err := d.listenURL(o)
	if err != nil {
		return nil, ai.NewFatalError(err, "deepgram")
	}

	header := http.Header{"Authorization": {"Token " + d.cfg.APIKey}}
	conn, err := ai.DialWebsocket(ctx, wsURL, header, d.cfg.Retry, d.cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("deepgram connect: %w", err)
	}

	s := &stream{
		ctx:     ctx,
		conn:    conn,
		opts:    o,
		logger:  d.cfg.Logger.With(slog.String("provider", "deepgram"), slog.String("model", o.Model)),
		events:  make(chan stt.SpeechEvent, 64),
		stopped: make(chan struct{}),
	}
	go s.readLoop()
	go s.keepAlive()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-s.stopped:
		}
	}()

	s.logger.Debug("deepgram stream opened", slog.String("language", o.Language), slog.String("encoding", string(o.Encoding)))
	return s, nil
}

type stream struct {
	ctx    context.Context
	conn   *websocket.Conn
	opts   stt.StreamConfig
	logger *slog.Logger

	writeMu sync.Mutex
	closing bool

	// finalized segments of the utterance in progress
	segments []string
	conf     float64

	events  chan stt.SpeechEvent
	stopped chan struct{}
}

func (s *stream) Push(frame rtc.AudioFrame) error {
	if frame.SampleRate != s.opts.SampleRate || frame.NumChannels != s.opts.NumChannels {
		if s.opts.NumChannels != 1 {
			return ai.NewFatalError(nil, fmt.Sprintf("deepgram: frame is %dHz/%dch, stream expects %dHz/%dch",
				frame.SampleRate, frame.NumChannels, s.opts.SampleRate, s.opts.NumChannels))
		}
		frame = rtc.ResampleFrame(frame, s.opts.SampleRate)
	}
	return s.send(websocket.BinaryMessage, frame.Data)
}

func (s *stream) Write(p []byte) (int, error) {
	if err := s.send(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *stream) Events() <-chan stt.SpeechEvent {
	return s.events
}

// CloseSend asks Deepgram to flush its buffer and end the stream. Events is
// closed once the server has sent its last result and hung up.
func (s *stream) CloseSend() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closing {
		return nil
	}
	s.closing = true

	for _, m := range []controlMessage{msgFinalize, msgCloseStream} {
		if err := s.writeJSON(m); err != nil {
			s.conn.Close()
			return ai.NewRecoverableError(err, "deepgram close")
		}
	}
	return nil
}

func (s *stream) send(kind int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closing {
		return ErrStreamClosed
	}
	if err := s.conn.WriteMessage(kind, data); err != nil {
		return ai.NewRecoverableError(err, "deepgram send")
	}
	return nil
}

// writeJSON must be called with writeMu held.
func (s *stream) writeJSON(v any) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *stream) keepAlive() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopped:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			if !s.closing {
				_ = s.writeJSON(msgKeepAlive)
			}
			s.writeMu.Unlock()
		}
	}
}

func (s *stream) readLoop() {
	defer func() {
		s.flush()
		close(s.stopped)
		close(s.events)
		s.conn.Close()
	}()

	for {
		kind, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.writeMu.Lock()
			closing := s.closing
			s.writeMu.Unlock()

			if !closing && s.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Error("deepgram read failed", slog.Any("error", err))
				s.emit(stt.SpeechEvent{Type: stt.SpeechEventError, Error: ai.NewRecoverableError(err, "deepgram read")})
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := s.handle(msg); err != nil {
			s.logger.Warn("deepgram message ignored", slog.Any("error", err))
		}
	}
}

func (s *stream) handle(msg []byte) error {
	var env envelope
	if err := sonic.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("parse message type: %w", err)
	}

	switch env.Type {
	case "Results":
		var r resultsMessage
		if err := sonic.Unmarshal(msg, &r); err != nil {
			return fmt.Errorf("parse results: %w", err)
		}
		s.results(r)

	case "SpeechStarted":
		var m speechStartedMessage
		if err := sonic.Unmarshal(msg, &m); err != nil {
			return fmt.Errorf("parse speech started: %w", err)
		}
		s.emit(stt.SpeechEvent{Type: stt.SpeechEventStart, Timestamp: time.Now().UnixMilli()})

	case "UtteranceEnd":
		s.flush()

	case "Metadata":
		var m metadataMessage
		if err := sonic.Unmarshal(msg, &m); err == nil {
			s.logger.Debug("deepgram metadata", slog.String("request_id", m.RequestID), slog.Float64("duration", m.Duration))
		}

	default:
		return fmt.Errorf("unknown message type %q", env.Type)
	}
	return nil
}

// results folds is_final segments into one utterance that is emitted when
// Deepgram marks the end of speech.
func (s *stream) results(r resultsMessage) {
	if len(r.Channel.Alternatives) == 0 {
		return
	}
	alt := r.Channel.Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)

	if !r.IsFinal {
		if s.opts.InterimResults && text != "" {
			s.emit(stt.SpeechEvent{
				Type:       stt.SpeechEventInterim,
				Text:       strings.Join(append(append([]string(nil), s.segments...), text), " "),
				Language:   s.opts.Language,
				Confidence: alt.Confidence,
				Timestamp:  time.Now().UnixMilli(),
			})
		}
		return
	}

	if text != "" {
		s.segments = append(s.segments, text)
		s.conf = alt.Confidence
	}
	if r.SpeechFinal || r.FromFinalize {
		s.flush()
	}
}

func (s *stream) flush() {
	if len(s.segments) == 0 {
		return
	}
	text := strings.Join(s.segments, " ")
	s.segments = nil
	s.emit(stt.SpeechEvent{
		Type:       stt.SpeechEventFinal,
		Text:       text,
		IsFinal:    true,
		Language:   s.opts.Language,
		Confidence: s.conf,
		Timestamp:  time.Now().UnixMilli(),
	})
}

func (s *stream) emit(ev stt.SpeechEvent) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}
