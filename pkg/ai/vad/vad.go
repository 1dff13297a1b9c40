package vad

import (
	"context"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
)

// EventType is the kind of Event.
type EventType int

const (
	EventSpeechStart EventType = iota
	EventSpeechEnd
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEnd:
		return "speech_end"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is a voice activity transition.
type Event struct {
	Type        EventType
	Timestamp   time.Time
	Probability float32
	Error       error
}

// Capabilities describes a VAD provider.
type Capabilities struct {
	SampleRates        []int
	MinSpeechDuration  time.Duration
	MinSilenceDuration time.Duration
	Threshold          float32
}

// VAD is implemented by voice activity detectors.
type VAD interface {
	// Detect reads frames until the input is closed or ctx is done, then
	// closes the returned channel.
	Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan Event, error)

	Capabilities() Capabilities
}
