package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/bot"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/agent"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/job"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

// TranscriptionTopic tags transcript data packets.
const TranscriptionTopic = "lk.transcription"

// LiveKit holds the server endpoint and credentials.
type LiveKit struct {
	URL       string
	APIKey    string
	APISecret string

	// Codec of the published bot voice, job.CodecOpus or job.CodecPCMU.
	Codec string
}

// callerRate is the PCM rate caller audio is decoded to.
const callerRate = 16000

// IO selects how audio enters and leaves the conversation. With no input the
// session is text only and replies are requested through the agent.
type IO struct {
	MicIn   <-chan rtc.AudioFrame
	Encoded io.Reader
	TTSOut  chan<- rtc.AudioFrame

	// SampleRate of MicIn frames; Encoded input is a self-describing container.
	SampleRate int

	OnTranscript func(agent.Transcript)
}

// Session is one conversation for one Qualifier.
type Session struct {
	Qualifier  *bot.Qualifier
	Components *Components
	logger     *slog.Logger
}

func New(q *bot.Qualifier, c *Components, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{Qualifier: q, Components: c, logger: logger.With(slog.String("bot_type", q.BotType))}
}

// NewAgent builds the conversation agent wired to io.
func (s *Session) NewAgent(io IO) (*agent.Agent, error) {
	c := s.Components
	cfg := agent.Config{
		Instructions: s.Qualifier.Instructions,
		LLM:          c.LLM,
		Stream:       s.streamConfig(io),
		Voice:        c.TTSConfig.VoiceID,
		MicIn:        io.MicIn,
		Encoded:      io.Encoded,
		OnTranscript: io.OnTranscript,
		Logger:       s.logger,
	}
	if io.MicIn != nil || io.Encoded != nil {
		cfg.STT = c.STT
	}
	if io.MicIn != nil {
		cfg.VAD = c.VAD
	}
	if io.TTSOut != nil {
		cfg.TTS = c.TTS
		cfg.TTSOut = io.TTSOut
	}
	return agent.New(cfg)
}

func (s *Session) streamConfig(io IO) stt.StreamConfig {
	c := s.Components.STTConfig
	cfg := stt.StreamConfig{
		Language:      c.Language,
		Model:         c.Model,
		EndpointingMS: c.EndpointingMS,
		SmartFormat:   true,
		FillerWords:   true,
	}
	if io.Encoded != nil {
		cfg.Encoding = stt.EncodingContainer
		return cfg
	}
	cfg.Encoding = stt.EncodingLinear16
	cfg.SampleRate = io.SampleRate
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	cfg.NumChannels = 1
	return cfg
}

// Run starts the agent, requests the opening turn and blocks until the
// conversation ends. Cancellation is a normal end.
func (s *Session) Run(ctx context.Context, j *job.Job, io IO) error {
	a, err := s.NewAgent(io)
	if err != nil {
		return err
	}
	return s.run(ctx, j, a)
}

func (s *Session) run(ctx context.Context, j *job.Job, a *agent.Agent) error {
	errc := make(chan error, 1)
	go func() { errc <- a.Start(ctx, j) }()

	if err := s.Qualifier.OnEnter(ctx, a); err != nil && !errors.Is(err, agent.ErrClosed) {
		s.logger.Warn("opening turn failed", slog.Any("error", err))
	}

	return ended(<-errc)
}

// RunRoom joins the job's room, publishes the bot voice and transcripts and
// runs the conversation until the caller leaves or the job ends. A room with
// nobody in it is held open until the first caller joins.
func (s *Session) RunRoom(ctx context.Context, j *job.Job, lk LiveKit) error {
	identity := "qualifier-" + uuid.NewString()[:8]
	token, err := job.NewToken(lk.APIKey, lk.APISecret, j.RoomName, identity, 0)
	if err != nil {
		return fmt.Errorf("mint agent token: %w", err)
	}

	mic := make(chan rtc.AudioFrame, 50)
	var callerOnce sync.Once

	room, err := job.NewRoom(ctx, job.RoomConfig{
		URL:      lk.URL,
		Token:    token,
		RoomName: j.RoomName,
		OnAudioTrack: func(track *webrtc.TrackRemote, participant string) {
			callerOnce.Do(func() {
				s.logger.Info("listening to caller", slog.String("participant", participant))
				defer close(mic)
				channels := int(track.Codec().Channels)
				if err := job.DecodeOpus(ctx, job.TrackPackets(track), channels, callerRate, mic); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Warn("caller audio ended", slog.Any("error", err))
				}
			})
		},
	})
	if err != nil {
		return err
	}
	if err := room.Connect(); err != nil {
		return err
	}
	defer room.Disconnect()

	speech := make(chan rtc.AudioFrame)
	src, err := job.NewAudioSource(lk.Codec, speech)
	if err != nil {
		return err
	}
	if err := room.PublishAudio(src); err != nil {
		return err
	}

	go s.watchRoom(j, room.Events, room.ParticipantCount)

	return s.Run(ctx, j, callIO(mic, speech, s.publisher(room)))
}

// callIO is the IO of a LiveKit call: decoded caller PCM in, bot speech out.
func callIO(mic <-chan rtc.AudioFrame, speech chan<- rtc.AudioFrame, onTranscript func(agent.Transcript)) IO {
	return IO{
		MicIn:        mic,
		SampleRate:   callerRate,
		TTSOut:       speech,
		OnTranscript: onTranscript,
	}
}

// watchRoom ends the job when the last caller leaves or the connection drops.
// Until someone has joined an empty room is expected.
func (s *Session) watchRoom(j *job.Job, events <-chan *job.Event, participants func() int) {
	joined := participants() > 0
	if !joined {
		s.logger.Info("waiting for caller", slog.String("room_name", j.RoomName))
	}
	for ev := range events {
		switch ev.Type {
		case job.EventParticipantConnected:
			joined = true
		case job.EventParticipantDisconnected:
			if joined && participants() == 0 {
				j.Shutdown("room empty")
				return
			}
		case job.EventDisconnected:
			j.Shutdown("disconnected from room")
			return
		}
	}
}

// DataPublisher sends a payload to the room.
type DataPublisher interface {
	PublishData(payload []byte) error
}

type transcriptPacket struct {
	Topic   string `json:"topic"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Final   bool   `json:"final"`
	TS      int64  `json:"ts"`
}

// EncodeTranscript renders t as a transcription data packet.
func EncodeTranscript(t agent.Transcript) ([]byte, error) {
	return sonic.Marshal(transcriptPacket{
		Topic:   TranscriptionTopic,
		Speaker: t.Speaker,
		Text:    t.Text,
		Final:   t.Final,
		TS:      t.Time.UnixMilli(),
	})
}

func (s *Session) publisher(dst DataPublisher) func(agent.Transcript) {
	return func(t agent.Transcript) {
		if !t.Final {
			return
		}
		payload, err := EncodeTranscript(t)
		if err != nil {
			s.logger.Warn("encode transcript", slog.Any("error", err))
			return
		}
		if err := dst.PublishData(payload); err != nil {
			s.logger.Warn("publish transcript", slog.Any("error", err))
		}
	}
}
