package job

import (
	"time"

	"github.com/livekit/protocol/livekit"
)

// EventType represents the type of room event.
type EventType string

const (
	EventParticipantConnected    EventType = "participant_connected"
	EventParticipantDisconnected EventType = "participant_disconnected"
	EventTrackSubscribed         EventType = "track_subscribed"
	EventTrackUnsubscribed       EventType = "track_unsubscribed"
	EventDataReceived            EventType = "data_received"
	EventDisconnected            EventType = "disconnected"
)

// Event represents a room event with associated data.
type Event struct {
	Type        EventType
	Timestamp   time.Time
	Participant *livekit.ParticipantInfo
	Track       *livekit.TrackInfo
	Data        []byte
}

func NewEvent(eventType EventType) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

func (e *Event) WithParticipant(p *livekit.ParticipantInfo) *Event {
	e.Participant = p
	return e
}

func (e *Event) WithTrack(t *livekit.TrackInfo) *Event {
	e.Track = t
	return e
}

func (e *Event) WithData(data []byte) *Event {
	e.Data = data
	return e
}
