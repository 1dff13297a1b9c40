package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/llm"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/llm/fake"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	sttfake "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt/fake"
	ttsfake "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/tts/fake"
	vadfake "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad/fake"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/job"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/matryer/is"
)

const instructions = "You are a qualification assistant."

func TestAgent_New(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name: "audio input",
			config: Config{
				STT:    sttfake.NewFakeSTT("yes"),
				TTS:    ttsfake.NewFakeTTS(),
				LLM:    fake.NewFakeLLM(),
				VAD:    vadfake.NewFakeVAD(),
				MicIn:  make(<-chan rtc.AudioFrame),
				TTSOut: make(chan<- rtc.AudioFrame),
			},
		},
		{
			name: "encoded input without VAD",
			config: Config{
				STT:     sttfake.NewFakeSTT("yes"),
				LLM:     fake.NewFakeLLM(),
				Encoded: strings.NewReader("ogg"),
			},
		},
		{
			name:   "text only",
			config: Config{LLM: fake.NewFakeLLM()},
		},
		{
			name: "missing LLM",
			config: Config{
				STT:   sttfake.NewFakeSTT("yes"),
				MicIn: make(<-chan rtc.AudioFrame),
			},
			expectError: true,
		},
		{
			name: "audio input without STT",
			config: Config{
				LLM:   fake.NewFakeLLM(),
				MicIn: make(<-chan rtc.AudioFrame),
			},
			expectError: true,
		},
		{
			name: "both inputs",
			config: Config{
				STT:     sttfake.NewFakeSTT("yes"),
				LLM:     fake.NewFakeLLM(),
				MicIn:   make(<-chan rtc.AudioFrame),
				Encoded: strings.NewReader("ogg"),
			},
			expectError: true,
		},
		{
			name: "TTS without output",
			config: Config{
				LLM: fake.NewFakeLLM(),
				TTS: ttsfake.NewFakeTTS(),
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.GetState() != StateIdle {
				t.Errorf("initial state = %v, want Idle", a.GetState())
			}
		})
	}
}

func TestAgentState_String(t *testing.T) {
	tests := []struct {
		state AgentState
		want  string
	}{
		{StateIdle, "Idle"},
		{StateListening, "Listening"},
		{StateThinking, "Thinking"},
		{StateSpeaking, "Speaking"},
		{AgentState(99), "Unknown(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// recorder collects published transcripts.
type recorder struct {
	mu    sync.Mutex
	lines []Transcript
}

func (r *recorder) add(tr Transcript) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, tr)
}

func (r *recorder) finals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.lines {
		if l.Final {
			out = append(out, l.Speaker+": "+l.Text)
		}
	}
	return out
}

func newJob(t *testing.T) *job.Job {
	t.Helper()
	j, err := job.New(context.Background(), job.Config{RoomName: "test-room"})
	if err != nil {
		t.Fatal(err)
	}
	return j
}

// start runs a in the background and returns a function that stops it and
// reports Start's error.
func start(t *testing.T, a *Agent) func() error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- a.Start(context.Background(), newJob(t)) }()
	return func() error {
		a.Close()
		select {
		case err := <-errc:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("agent did not stop")
			return nil
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func drain(ch <-chan rtc.AudioFrame) {
	go func() {
		for range ch {
		}
	}()
}

func silentFrame() rtc.AudioFrame {
	return rtc.AudioFrame{Data: make([]byte, rtc.FrameBytes(16000, 1)), SampleRate: 16000, SamplesPerChannel: 160, NumChannels: 1}
}

func TestAgent_OpeningTurn(t *testing.T) {
	is := is.New(t)
	model := fake.NewFakeLLM("Hi, this is Ava. Do you own your home?")
	rec := &recorder{}

	a, err := New(Config{Instructions: instructions, LLM: model, OnTranscript: rec.add})
	is.NoErr(err)
	stop := start(t, a)

	is.NoErr(a.GenerateReply(context.Background(), ""))
	is.NoErr(stop())

	reqs := model.Requests()
	is.Equal(len(reqs), 1)
	is.Equal(reqs[0].Messages, []llm.Message{{Role: llm.RoleSystem, Content: instructions}})
	is.Equal(rec.finals(), []string{"agent: Hi, this is Ava. Do you own your home?"})
	is.Equal(a.GetState(), StateIdle) // no TTS, nothing to speak
}

func TestAgent_UserTurnFromAudio(t *testing.T) {
	is := is.New(t)
	recognizer := sttfake.NewFakeSTT("yes I do")
	recognizer.ChunksPerUtterance = 3
	model := fake.NewFakeLLM("Great. Is your budget over ten thousand dollars?")
	synth := ttsfake.NewFakeTTS()
	synth.Pace = 0
	mic := make(chan rtc.AudioFrame, 10)
	out := make(chan rtc.AudioFrame, 100)
	rec := &recorder{}

	a, err := New(Config{
		Instructions: instructions,
		STT:          recognizer,
		TTS:          synth,
		LLM:          model,
		VAD:          vadfake.NewFakeVAD(),
		Stream:       stt.StreamConfig{Encoding: stt.EncodingLinear16, SampleRate: 16000, NumChannels: 1},
		Voice:        "voice-x",
		MicIn:        mic,
		TTSOut:       out,
		OnTranscript: rec.add,
	})
	is.NoErr(err)
	stop := start(t, a)

	for i := 0; i < 3; i++ {
		mic <- silentFrame()
	}

	waitFor(t, "agent reply", func() bool { return len(rec.finals()) == 2 })
	waitFor(t, "speech to finish", func() bool { return a.GetState() == StateIdle })
	is.NoErr(stop())

	is.Equal(rec.finals(), []string{
		"user: yes I do",
		"agent: Great. Is your budget over ten thousand dollars?",
	})
	is.Equal(model.Requests()[0].Messages, []llm.Message{
		{Role: llm.RoleSystem, Content: instructions},
		{Role: llm.RoleUser, Content: "yes I do"},
	})
	is.Equal(recognizer.LastStream().Config().SampleRate, 16000)

	reqs := synth.Requests()
	is.Equal(len(reqs), 1)
	is.Equal(reqs[0].Voice, "voice-x")
	is.Equal(len(out), len([]rune(reqs[0].Text))*ttsfake.DefaultFramesPerChar)

	msgs := a.Messages()
	is.Equal(msgs[len(msgs)-1].Role, llm.RoleAssistant)
}

func TestAgent_EncodedInput(t *testing.T) {
	is := is.New(t)
	recognizer := sttfake.NewFakeSTT("no")
	model := fake.NewFakeLLM("Thanks for your time.")
	rec := &recorder{}

	a, err := New(Config{
		STT:          recognizer,
		LLM:          model,
		Encoded:      strings.NewReader(strings.Repeat("x", 4096)),
		OnTranscript: rec.add,
	})
	is.NoErr(err)
	stop := start(t, a)

	// The reader ends after one chunk; closing the stream finishes the utterance.
	waitFor(t, "user turn", func() bool { return len(rec.finals()) == 2 })
	is.NoErr(stop())

	is.Equal(recognizer.LastStream().Bytes(), 4096)
	is.Equal(rec.finals()[0], "user: no")
}

func TestAgent_BargeIn(t *testing.T) {
	tests := []struct {
		name    string
		trigger func(a *Agent, s *sttfake.FakeSTT)
	}{
		{
			name:    "interrupt call",
			trigger: func(a *Agent, _ *sttfake.FakeSTT) { a.Interrupt() },
		},
		{
			name: "caller starts speaking",
			trigger: func(_ *Agent, s *sttfake.FakeSTT) {
				s.LastStream().Emit(stt.SpeechEvent{Type: stt.SpeechEventStart})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			recognizer := sttfake.NewFakeSTT()
			synth := ttsfake.NewFakeTTS() // paced, so playback takes seconds
			out := make(chan rtc.AudioFrame)
			drain(out)

			a, err := New(Config{
				STT:    recognizer,
				TTS:    synth,
				LLM:    fake.NewFakeLLM(strings.Repeat("Do you own your home? ", 10)),
				MicIn:  make(chan rtc.AudioFrame),
				TTSOut: out,
			})
			is.NoErr(err)
			stop := start(t, a)

			is.NoErr(a.GenerateReply(context.Background(), ""))
			is.Equal(a.GetState(), StateSpeaking)

			tt.trigger(a, recognizer)
			waitFor(t, "listening", func() bool { return a.GetState() == StateListening })
			is.NoErr(stop())
		})
	}
}

func TestAgent_LLMErrors(t *testing.T) {
	t.Run("recoverable keeps the session", func(t *testing.T) {
		is := is.New(t)
		model := fake.NewFakeLLM()
		model.Err = ai.NewRecoverableError(errors.New("503"), "overloaded")

		a, err := New(Config{LLM: model})
		is.NoErr(err)
		stop := start(t, a)

		err = a.GenerateReply(context.Background(), "hello")
		is.True(ai.IsRecoverable(err))
		is.Equal(a.GetState(), StateListening)

		select {
		case <-a.Done():
			t.Fatal("agent stopped on a recoverable error")
		default:
		}
		is.NoErr(stop())
	})

	t.Run("fatal ends the session", func(t *testing.T) {
		is := is.New(t)
		model := fake.NewFakeLLM()
		model.Err = ai.NewFatalError(errors.New("401"), "bad key")

		a, err := New(Config{LLM: model})
		is.NoErr(err)
		errc := make(chan error, 1)
		go func() { errc <- a.Start(context.Background(), newJob(t)) }()

		is.True(ai.IsFatal(a.GenerateReply(context.Background(), "")))
		is.True(ai.IsFatal(<-errc))
	})
}

func TestAgent_EmptyReplyIsNotSpoken(t *testing.T) {
	is := is.New(t)
	synth := ttsfake.NewFakeTTS()
	out := make(chan rtc.AudioFrame, 10)

	a, err := New(Config{LLM: fake.NewFakeLLM("   "), TTS: synth, TTSOut: out})
	is.NoErr(err)
	stop := start(t, a)

	is.NoErr(a.GenerateReply(context.Background(), "hello"))
	is.NoErr(stop())
	is.Equal(len(synth.Requests()), 0)
	is.Equal(len(a.Messages()), 1) // only the user message
}

func TestAgent_StopsWithJob(t *testing.T) {
	is := is.New(t)
	a, err := New(Config{LLM: fake.NewFakeLLM()})
	is.NoErr(err)

	j := newJob(t)
	errc := make(chan error, 1)
	go func() { errc <- a.Start(context.Background(), j) }()

	j.Shutdown("room empty")
	select {
	case err := <-errc:
		is.True(errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("agent ignored job shutdown")
	}

	is.Equal(a.GenerateReply(context.Background(), ""), ErrClosed)
	is.Equal(a.Start(context.Background(), j), ErrAlreadyStarted)
}

func TestAgent_StartRequiresJob(t *testing.T) {
	a, err := New(Config{LLM: fake.NewFakeLLM()})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Start(context.Background(), nil); err == nil {
		t.Error("expected error for nil job")
	}
}
