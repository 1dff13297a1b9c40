package fake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
)

// DefaultChunksPerUtterance is how many pushed frames (or written chunks) make
// up one scripted utterance.
const DefaultChunksPerUtterance = 20

// ErrStreamClosed is returned by Push and Write after CloseSend.
var ErrStreamClosed = errors.New("stt stream closed")

// FakeSTT hears one scripted transcript per utterance of pushed audio.
type FakeSTT struct {
	mu          sync.Mutex
	transcripts []string
	streams     []*FakeSTTStream

	ChunksPerUtterance int
}

func NewFakeSTT(transcripts ...string) *FakeSTT {
	return &FakeSTT{transcripts: transcripts, ChunksPerUtterance: DefaultChunksPerUtterance}
}

func (f *FakeSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &FakeSTTStream{
		ctx:         ctx,
		cfg:         cfg,
		transcripts: append([]string(nil), f.transcripts...),
		perUtt:      max(1, f.ChunksPerUtterance),
		events:      make(chan stt.SpeechEvent, 32),
	}
	f.streams = append(f.streams, s)
	return s, nil
}

// LastStream returns the most recently opened stream, or nil.
func (f *FakeSTT) LastStream() *FakeSTTStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

func (f *FakeSTT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Streaming:      true,
		InterimResults: false,
		Encodings:      []stt.Encoding{stt.EncodingLinear16, stt.EncodingContainer},
	}
}

// FakeSTTStream reports a speech start on the first chunk of each utterance
// and a final transcript on its last.
type FakeSTTStream struct {
	ctx         context.Context
	cfg         stt.StreamConfig
	transcripts []string
	perUtt      int

	mu      sync.Mutex
	pending int
	chunks  int
	bytes   int
	closed  bool
	events  chan stt.SpeechEvent
}

// Config returns the configuration the stream was opened with.
func (s *FakeSTTStream) Config() stt.StreamConfig { return s.cfg }

// Chunks returns how many frames and writes the stream has received.
func (s *FakeSTTStream) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

// Bytes returns the number of encoded bytes received through Write.
func (s *FakeSTTStream) Bytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

func (s *FakeSTTStream) Push(frame rtc.AudioFrame) error {
	return s.chunk(0)
}

func (s *FakeSTTStream) Write(p []byte) (int, error) {
	if err := s.chunk(len(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Emit delivers ev as if the provider had produced it.
func (s *FakeSTTStream) Emit(ev stt.SpeechEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	return s.send(ev)
}

func (s *FakeSTTStream) Events() <-chan stt.SpeechEvent {
	return s.events
}

// CloseSend finishes a partially heard utterance, then closes Events.
func (s *FakeSTTStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	defer close(s.events)

	if s.pending > 0 && len(s.transcripts) > 0 {
		return s.final()
	}
	return nil
}

func (s *FakeSTTStream) chunk(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.chunks++
	s.bytes += n

	if len(s.transcripts) == 0 {
		return nil
	}
	if s.pending == 0 {
		if err := s.send(stt.SpeechEvent{Type: stt.SpeechEventStart, Timestamp: time.Now().UnixMilli()}); err != nil {
			return err
		}
	}
	s.pending++
	if s.pending >= s.perUtt {
		return s.final()
	}
	return nil
}

func (s *FakeSTTStream) final() error {
	text := s.transcripts[0]
	s.transcripts = s.transcripts[1:]
	s.pending = 0
	return s.send(stt.SpeechEvent{
		Type:       stt.SpeechEventFinal,
		Text:       text,
		IsFinal:    true,
		Language:   s.cfg.Language,
		Confidence: 1,
		Timestamp:  time.Now().UnixMilli(),
	})
}

func (s *FakeSTTStream) send(ev stt.SpeechEvent) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}
