package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
)

// AudioTrackFunc receives each subscribed remote audio track.
type AudioTrackFunc func(track *webrtc.TrackRemote, participant string)

// Room wraps the LiveKit room connection and provides event handling.
type Room struct {
	// Events carries participant, track and data events. It is closed by
	// Disconnect.
	Events chan *Event

	config RoomConfig
	room   *lksdk.Room
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	connected    bool
	eventsClosed bool
	participants map[string]*livekit.ParticipantInfo
}

// RoomConfig contains configuration for connecting to a room.
type RoomConfig struct {
	URL      string
	Token    string
	RoomName string

	// EventBufferSize defaults to 100.
	EventBufferSize int

	OnAudioTrack AudioTrackFunc
}

// NewRoom validates config; nothing is dialled until Connect.
func NewRoom(ctx context.Context, config RoomConfig) (*Room, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if config.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}
	if config.EventBufferSize == 0 {
		config.EventBufferSize = 100
	}

	roomCtx, cancel := context.WithCancel(ctx)
	return &Room{
		Events:       make(chan *Event, config.EventBufferSize),
		config:       config,
		ctx:          roomCtx,
		cancel:       cancel,
		participants: make(map[string]*livekit.ParticipantInfo),
	}, nil
}

// Connect joins the room and records the participants already present.
// Callbacks may fire while dialling, so the lock is not held across it.
func (r *Room) Connect() error {
	if r.IsConnected() {
		return fmt.Errorf("room is already connected")
	}

	callback := &lksdk.RoomCallback{
		OnParticipantConnected:    r.onParticipantConnected,
		OnParticipantDisconnected: r.onParticipantDisconnected,
		OnDisconnected:            r.onDisconnected,
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:   r.onTrackSubscribed,
			OnTrackUnsubscribed: r.onTrackUnsubscribed,
			OnDataReceived:      r.onDataReceived,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(r.config.URL, r.config.Token, callback)
	if err != nil {
		return fmt.Errorf("failed to connect to room: %w", err)
	}

	r.mu.Lock()
	r.room = room
	r.connected = true
	for _, p := range room.GetParticipants() {
		r.participants[p.Identity()] = participantInfo(p, livekit.ParticipantInfo_ACTIVE)
	}
	count := len(r.participants)
	r.mu.Unlock()

	slog.Info("connected to room",
		slog.String("room_name", r.config.RoomName),
		slog.Int("participants", count))
	return nil
}

// Disconnect leaves the room and closes Events.
func (r *Room) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancel()

	if r.connected {
		r.connected = false
		if r.room != nil {
			r.room.Disconnect()
		}
		slog.Info("disconnected from room", slog.String("room_name", r.config.RoomName))
	}

	if !r.eventsClosed {
		close(r.Events)
		r.eventsClosed = true
	}
	return nil
}

func (r *Room) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

func (r *Room) Name() string {
	return r.config.RoomName
}

// LocalParticipant returns the local participant, or nil before Connect.
func (r *Room) LocalParticipant() *lksdk.LocalParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.room == nil {
		return nil
	}
	return r.room.LocalParticipant
}

// GetParticipants returns a copy of the remote participants keyed by identity.
func (r *Room) GetParticipants() map[string]*livekit.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*livekit.ParticipantInfo, len(r.participants))
	for k, v := range r.participants {
		result[k] = v
	}
	return result
}

// ParticipantCount returns the number of remote participants.
func (r *Room) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// PublishData sends payload to every participant over the reliable channel.
func (r *Room) PublishData(payload []byte) error {
	lp := r.LocalParticipant()
	if lp == nil {
		return fmt.Errorf("room not connected")
	}
	return lp.PublishData(payload, livekit.DataPacket_RELIABLE, nil)
}

func participantInfo(p *lksdk.RemoteParticipant, state livekit.ParticipantInfo_State) *livekit.ParticipantInfo {
	return &livekit.ParticipantInfo{
		Sid:      p.SID(),
		Identity: p.Identity(),
		State:    state,
	}
}

func trackInfo(pub *lksdk.RemoteTrackPublication) *livekit.TrackInfo {
	return &livekit.TrackInfo{
		Sid:  pub.SID(),
		Name: pub.Name(),
		Type: pub.Kind().ProtoType(),
	}
}

func (r *Room) onParticipantConnected(p *lksdk.RemoteParticipant) {
	info := participantInfo(p, livekit.ParticipantInfo_ACTIVE)
	r.addParticipant(info)
	r.sendEvent(NewEvent(EventParticipantConnected).WithParticipant(info))

	slog.Info("participant connected",
		slog.String("identity", p.Identity()),
		slog.String("sid", p.SID()))
}

func (r *Room) onParticipantDisconnected(p *lksdk.RemoteParticipant) {
	info := participantInfo(p, livekit.ParticipantInfo_DISCONNECTED)
	r.removeParticipant(info.Identity)
	r.sendEvent(NewEvent(EventParticipantDisconnected).WithParticipant(info))

	slog.Info("participant disconnected",
		slog.String("identity", p.Identity()),
		slog.String("sid", p.SID()))
}

func (r *Room) onDisconnected() {
	r.sendEvent(NewEvent(EventDisconnected))
}

func (r *Room) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, p *lksdk.RemoteParticipant) {
	r.sendEvent(NewEvent(EventTrackSubscribed).
		WithParticipant(participantInfo(p, livekit.ParticipantInfo_ACTIVE)).
		WithTrack(trackInfo(pub)))

	slog.Info("track subscribed",
		slog.String("participant", p.Identity()),
		slog.String("track_sid", pub.SID()),
		slog.String("codec", track.Codec().MimeType))

	if track.Kind() == webrtc.RTPCodecTypeAudio && r.config.OnAudioTrack != nil {
		go r.config.OnAudioTrack(track, p.Identity())
	}
}

func (r *Room) onTrackUnsubscribed(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, p *lksdk.RemoteParticipant) {
	r.sendEvent(NewEvent(EventTrackUnsubscribed).
		WithParticipant(participantInfo(p, livekit.ParticipantInfo_ACTIVE)).
		WithTrack(trackInfo(pub)))
}

func (r *Room) onDataReceived(data []byte, p *lksdk.RemoteParticipant) {
	r.sendEvent(NewEvent(EventDataReceived).
		WithParticipant(participantInfo(p, livekit.ParticipantInfo_ACTIVE)).
		WithData(data))
}

func (r *Room) addParticipant(info *livekit.ParticipantInfo) {
	r.mu.Lock()
	r.participants[info.Identity] = info
	r.mu.Unlock()
}

func (r *Room) removeParticipant(identity string) {
	r.mu.Lock()
	delete(r.participants, identity)
	r.mu.Unlock()
}

// sendEvent drops the event when the buffer is full or the room is closed.
func (r *Room) sendEvent(event *Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.eventsClosed {
		return
	}

	select {
	case r.Events <- event:
	case <-r.ctx.Done():
	default:
		slog.Warn("room events channel full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}
