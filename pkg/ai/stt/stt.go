// Package stt defines streaming speech-to-text. A stream accepts either raw
// PCM frames (Push) or an encoded container stream (Write) and reports
// transcripts and speech activity on Events.
package stt

import (
	"context"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
)

// Encoding of the audio written to a stream.
type Encoding string

const (
	// EncodingLinear16 is little-endian 16-bit PCM delivered with Push.
	EncodingLinear16 Encoding = "linear16"
	// EncodingContainer is a self-describing stream (Ogg/Opus, WAV) delivered
	// with Write. The provider detects the codec.
	EncodingContainer Encoding = "container"
)

// Keyterm boosts recognition of a word or phrase.
type Keyterm struct {
	Term  string
	Boost float64
}

// StreamConfig configures one STT stream.
type StreamConfig struct {
	Encoding      Encoding
	SampleRate    int
	NumChannels   int
	Language      string
	Model         string
	EndpointingMS int
	Keyterms      []Keyterm
	SmartFormat   bool
	FillerWords   bool
	// InterimResults enables partial transcripts. Speech start events are
	// reported regardless.
	InterimResults bool
}

// SpeechEventType is the kind of SpeechEvent.
type SpeechEventType int

const (
	SpeechEventInterim SpeechEventType = iota
	SpeechEventFinal
	// SpeechEventStart is reported when the provider hears the caller start
	// speaking, before any transcript exists.
	SpeechEventStart
	SpeechEventError
)

func (t SpeechEventType) String() string {
	switch t {
	case SpeechEventInterim:
		return "interim"
	case SpeechEventFinal:
		return "final"
	case SpeechEventStart:
		return "speech_start"
	case SpeechEventError:
		return "error"
	}
	return "unknown"
}

// SpeechEvent is a recognition result, a speech start notification or an
// error.
type SpeechEvent struct {
	Type       SpeechEventType
	Text       string
	IsFinal    bool
	Language   string
	Confidence float64
	Timestamp  int64 // milliseconds since epoch
	Error      error
}

// Capabilities describes an STT provider.
type Capabilities struct {
	Streaming      bool
	InterimResults bool
	Encodings      []Encoding
}

// STT is implemented by speech-to-text providers.
type STT interface {
	NewStream(ctx context.Context, cfg StreamConfig) (STTStream, error)
	Capabilities() Capabilities
}

// STTStream is an open recognition session.
type STTStream interface {
	// Push sends one PCM frame (EncodingLinear16).
	Push(frame rtc.AudioFrame) error

	// Write sends encoded bytes (EncodingContainer). It lets a stream be the
	// destination of io.Copy.
	Write(p []byte) (int, error)

	// Events is closed once the provider has delivered its last result.
	Events() <-chan SpeechEvent

	// CloseSend flushes pending audio and signals that no more will follow.
	CloseSend() error
}
