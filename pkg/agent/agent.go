// Package agent runs one conversation. A finite state machine moves through
// Idle → Listening → Thinking → Speaking while the agent feeds caller audio to
// speech-to-text, forwards final transcripts to the language model and speaks
// the replies.
package agent

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/llm"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/tts"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/job"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
)

// AgentState represents the current state of the voice agent.
type AgentState int32

const (
	StateIdle AgentState = iota
	StateListening
	StateThinking
	StateSpeaking
)

func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateListening:
		return "Listening"
	case StateThinking:
		return "Thinking"
	case StateSpeaking:
		return "Speaking"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

const (
	SpeakerUser  = "user"
	SpeakerAgent = "agent"
)

// Transcript is one line of the conversation as it happened.
type Transcript struct {
	Speaker string
	Text    string
	Final   bool
	Time    time.Time
}

var (
	ErrClosed         = errors.New("agent closed")
	ErrAlreadyStarted = errors.New("agent already started")
)

// Process-wide counters, served on /debug/vars.
var (
	metrics          = expvar.NewMap("qualifier_agent")
	firstWordLatency = new(expvar.Float)
)

func init() {
	metrics.Set("first_word_latency_ms", firstWordLatency)
}

// Config holds configuration for creating an Agent.
//
// Caller audio arrives either as PCM frames on MicIn, which also feed the VAD,
// or as an encoded byte stream on Encoded that goes to speech-to-text as is.
// With neither set the agent only answers GenerateReply calls.
type Config struct {
	Instructions string

	STT stt.STT
	TTS tts.TTS
	LLM llm.LLM
	VAD vad.VAD

	Stream stt.StreamConfig

	// Zero values leave the provider defaults in place.
	Model       string
	Temperature float32
	MaxTokens   int
	Voice       string
	SampleRate  int

	MicIn   <-chan rtc.AudioFrame
	Encoded io.Reader
	TTSOut  chan<- rtc.AudioFrame

	OnTranscript func(Transcript)
	Logger       *slog.Logger
}

// Agent coordinates the providers for a single conversation. All state
// changes happen on the goroutine running Start.
type Agent struct {
	cfg    Config
	logger *slog.Logger

	state   atomic.Int32
	started atomic.Bool

	mu      sync.Mutex
	history []llm.Message

	replies    chan replyRequest
	interrupts chan struct{}
	spoken     chan uint64
	shutdown   chan struct{}
	closeOnce  sync.Once
	done       chan struct{}

	speakGen    uint64
	speakCancel context.CancelFunc

	sessionStart time.Time
	firstWord    sync.Once
}

type replyRequest struct {
	input  string
	result chan error
}

// New creates a new Agent with the given configuration.
func New(cfg Config) (*Agent, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM is required")
	}
	if cfg.MicIn != nil && cfg.Encoded != nil {
		return nil, fmt.Errorf("MicIn and Encoded are mutually exclusive")
	}
	if (cfg.MicIn != nil || cfg.Encoded != nil) && cfg.STT == nil {
		return nil, fmt.Errorf("STT is required for audio input")
	}
	if (cfg.TTS == nil) != (cfg.TTSOut == nil) {
		return nil, fmt.Errorf("TTS and TTSOut must be set together")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	a := &Agent{
		cfg:        cfg,
		logger:     cfg.Logger,
		replies:    make(chan replyRequest),
		interrupts: make(chan struct{}, 1),
		spoken:     make(chan uint64, 1),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	a.state.Store(int32(StateIdle))
	return a, nil
}

// Start runs the conversation until ctx is cancelled, the job shuts down,
// Close is called or a fatal provider error occurs.
func (a *Agent) Start(ctx context.Context, j *job.Job) error {
	if j == nil {
		return fmt.Errorf("job is required")
	}
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(a.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-j.Context.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	a.sessionStart = time.Now()
	defer func() {
		metrics.Add("sessions", 1)
		a.logger.Info("conversation ended",
			slog.String("job_id", j.ID),
			slog.Duration("duration", time.Since(a.sessionStart)))
	}()

	sttEvents, vadEvents, err := a.startInput(ctx)
	if err != nil {
		return err
	}

	return a.run(ctx, sttEvents, vadEvents)
}

func (a *Agent) startInput(ctx context.Context) (<-chan stt.SpeechEvent, <-chan vad.Event, error) {
	if a.cfg.MicIn == nil && a.cfg.Encoded == nil {
		return nil, nil, nil
	}

	stream, err := a.cfg.STT.NewStream(ctx, a.cfg.Stream)
	if err != nil {
		return nil, nil, fmt.Errorf("open STT stream: %w", err)
	}

	if a.cfg.Encoded != nil {
		go func() {
			if _, err := io.Copy(stream, a.cfg.Encoded); err != nil && ctx.Err() == nil {
				a.logger.Warn("audio copy to STT stopped", slog.Any("error", err))
			}
			stream.CloseSend()
		}()
		return stream.Events(), nil, nil
	}

	var vadEvents <-chan vad.Event
	vadIn := make(chan rtc.AudioFrame, 50)
	if a.cfg.VAD != nil {
		if vadEvents, err = a.cfg.VAD.Detect(ctx, vadIn); err != nil {
			stream.CloseSend()
			return nil, nil, fmt.Errorf("start VAD: %w", err)
		}
	}

	go func() {
		defer close(vadIn)
		defer stream.CloseSend()
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-a.cfg.MicIn:
				if !ok {
					return
				}
				if err := stream.Push(frame); err != nil {
					a.logger.Warn("STT push failed", slog.Any("error", err))
					return
				}
				select {
				case vadIn <- frame:
				default:
				}
			}
		}
	}()
	return stream.Events(), vadEvents, nil
}

// run is the main agent loop that processes events and manages state transitions.
func (a *Agent) run(ctx context.Context, sttEvents <-chan stt.SpeechEvent, vadEvents <-chan vad.Event) error {
	defer a.stopSpeaking()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.shutdown:
			return nil
		case <-a.interrupts:
			a.interrupt()
		case gen := <-a.spoken:
			if gen == a.speakGen && a.GetState() == StateSpeaking {
				a.setState(StateIdle)
			}
		case req := <-a.replies:
			err := a.reply(ctx, req.input)
			req.result <- err
			if ai.IsFatal(err) {
				return err
			}
		case ev, ok := <-sttEvents:
			if !ok {
				sttEvents = nil
				continue
			}
			if err := a.handleSTTEvent(ctx, ev); err != nil {
				return err
			}
		case ev, ok := <-vadEvents:
			if !ok {
				vadEvents = nil
				continue
			}
			a.handleVADEvent(ev)
		}
	}
}

func (a *Agent) handleSTTEvent(ctx context.Context, ev stt.SpeechEvent) error {
	switch ev.Type {
	case stt.SpeechEventStart:
		a.userStartedSpeaking()
	case stt.SpeechEventInterim:
		a.publish(SpeakerUser, ev.Text, false)
	case stt.SpeechEventFinal:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return nil
		}
		if a.GetState() == StateSpeaking {
			a.interrupt()
		}
		a.publish(SpeakerUser, text, true)
		a.logger.Info("user turn", slog.String("text", text))

		if err := a.reply(ctx, text); err != nil {
			if ai.IsFatal(err) {
				return err
			}
			a.logger.Warn("reply failed, waiting for the next turn", slog.Any("error", err))
		}
	case stt.SpeechEventError:
		if ai.IsFatal(ev.Error) {
			return fmt.Errorf("speech-to-text: %w", ev.Error)
		}
		a.logger.Warn("speech-to-text error", slog.Any("error", ev.Error))
	}
	return nil
}

func (a *Agent) handleVADEvent(ev vad.Event) {
	switch ev.Type {
	case vad.EventSpeechStart:
		a.userStartedSpeaking()
	case vad.EventSpeechEnd:
		a.logger.Debug("speech ended", slog.Any("probability", ev.Probability))
	case vad.EventError:
		a.logger.Warn("VAD error", slog.Any("error", ev.Error))
	}
}

func (a *Agent) userStartedSpeaking() {
	switch a.GetState() {
	case StateIdle:
		a.setState(StateListening)
	case StateSpeaking:
		a.interrupt()
	}
}

// reply runs one assistant turn. A non-empty input is added to the history
// first.
func (a *Agent) reply(ctx context.Context, input string) error {
	if input != "" {
		a.appendMessage(llm.Message{Role: llm.RoleUser, Content: input})
	}
	if a.GetState() == StateSpeaking {
		a.interrupt()
	}

	a.setState(StateThinking)
	metrics.Add("turns", 1)

	resp, err := a.cfg.LLM.Chat(ctx, llm.ChatRequest{
		Messages:    a.Messages(),
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		metrics.Add("llm_errors", 1)
		a.setState(StateListening)
		return fmt.Errorf("language model: %w", err)
	}

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		a.logger.Warn("language model returned an empty reply")
		a.setState(StateListening)
		return nil
	}

	a.appendMessage(llm.Message{Role: llm.RoleAssistant, Content: text})
	a.publish(SpeakerAgent, text, true)
	a.logger.Info("agent turn", slog.String("text", text), slog.Int("tokens", resp.TokensUsed))

	return a.speak(ctx, text)
}

// speak starts synthesis and playback in the background.
func (a *Agent) speak(ctx context.Context, text string) error {
	if a.cfg.TTS == nil {
		a.setState(StateIdle)
		return nil
	}

	a.firstWord.Do(func() {
		firstWordLatency.Set(float64(time.Since(a.sessionStart).Milliseconds()))
	})

	speakCtx, cancel := context.WithCancel(ctx)
	frames, err := a.cfg.TTS.Synthesize(speakCtx, tts.SynthesizeRequest{
		Text:       text,
		Voice:      a.cfg.Voice,
		SampleRate: a.cfg.SampleRate,
	})
	if err != nil {
		cancel()
		a.setState(StateListening)
		return fmt.Errorf("text-to-speech: %w", err)
	}

	a.speakGen++
	gen := a.speakGen
	a.speakCancel = cancel
	a.setState(StateSpeaking)

	go func() {
		defer cancel()
		for frame := range frames {
			select {
			case a.cfg.TTSOut <- frame:
			case <-speakCtx.Done():
				return
			}
		}
		select {
		case a.spoken <- gen:
		case <-speakCtx.Done():
		}
	}()
	return nil
}

func (a *Agent) stopSpeaking() {
	if a.speakCancel != nil {
		a.speakCancel()
		a.speakCancel = nil
	}
}

func (a *Agent) interrupt() {
	if a.GetState() != StateSpeaking {
		return
	}
	a.stopSpeaking()
	metrics.Add("interruptions", 1)
	a.logger.Info("agent interrupted")
	a.setState(StateListening)
}

// GenerateReply asks the model for an assistant turn. An empty userInput adds
// nothing to the history, which is how the opening greeting is produced. It
// returns once the reply has been generated and playback has started.
func (a *Agent) GenerateReply(ctx context.Context, userInput string) error {
	req := replyRequest{input: userInput, result: make(chan error, 1)}
	select {
	case a.replies <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrClosed
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		// A fatal reply is delivered just before the loop exits.
		select {
		case err := <-req.result:
			return err
		default:
			return ErrClosed
		}
	}
}

// Interrupt stops playback and returns the agent to listening.
func (a *Agent) Interrupt() {
	select {
	case a.interrupts <- struct{}{}:
	default:
	}
}

// Close stops the agent. Start returns nil.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		close(a.shutdown)
	})
	return nil
}

// Done is closed when Start returns.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// GetState returns the current state of the agent.
func (a *Agent) GetState() AgentState {
	return AgentState(a.state.Load())
}

// Messages returns the instructions followed by the conversation so far.
func (a *Agent) Messages() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	msgs := make([]llm.Message, 0, len(a.history)+1)
	if a.cfg.Instructions != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: a.cfg.Instructions})
	}
	return append(msgs, a.history...)
}

func (a *Agent) appendMessage(m llm.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, m)
}

func (a *Agent) publish(speaker, text string, final bool) {
	if a.cfg.OnTranscript == nil || text == "" {
		return
	}
	a.cfg.OnTranscript(Transcript{Speaker: speaker, Text: text, Final: final, Time: time.Now()})
}

func (a *Agent) setState(s AgentState) {
	old := AgentState(a.state.Swap(int32(s)))
	if old == s {
		return
	}
	metrics.Add(old.String()+"_to_"+s.String(), 1)
	a.logger.Debug("state change", slog.String("from", old.String()), slog.String("to", s.String()))
}
