package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// AgentTrackName is the name of the published bot voice track.
const AgentTrackName = "agent-voice"

// Outbound codec names.
const (
	CodecOpus = "opus"
	CodecPCMU = "pcmu"
)

// PCMU is the codec of the outbound track when CodecPCMU is selected. The
// LiveKit server must have audio/PCMU enabled in its room codec list.
var PCMU = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: rtc.MuLawRate, Channels: 1}

// AudioSource feeds a published track.
type AudioSource interface {
	lksdk.SampleProvider
	Codec() webrtc.RTPCodecCapability
	Frames() int64
}

// NewAudioSource returns the encoder for codec fed by frames. An empty codec
// selects Opus.
func NewAudioSource(codec string, frames <-chan rtc.AudioFrame) (AudioSource, error) {
	switch strings.ToLower(codec) {
	case "", CodecOpus:
		return NewOpusSource(frames)
	case CodecPCMU:
		return NewMuLawSource(frames), nil
	}
	return nil, fmt.Errorf("unsupported audio codec %q (want %s or %s)", codec, CodecOpus, CodecPCMU)
}

// MuLawSource is an lksdk.SampleProvider fed with PCM frames. Frames are
// converted to µ-law; when none is waiting it yields 10 ms of silence so the
// track keeps its real-time pace.
type MuLawSource struct {
	frames  <-chan rtc.AudioFrame
	silence []byte
	written atomic.Int64
}

func NewMuLawSource(frames <-chan rtc.AudioFrame) *MuLawSource {
	silent := rtc.AudioFrame{
		Data:              make([]byte, rtc.FrameBytes(rtc.MuLawRate, 1)),
		SampleRate:        rtc.MuLawRate,
		SamplesPerChannel: rtc.SamplesPerFrame(rtc.MuLawRate),
		NumChannels:       1,
	}
	return &MuLawSource{frames: frames, silence: rtc.EncodeMuLaw(silent)}
}

func (s *MuLawSource) NextSample(ctx context.Context) (media.Sample, error) {
	select {
	case <-ctx.Done():
		return media.Sample{}, ctx.Err()
	case f, ok := <-s.frames:
		if !ok {
			return media.Sample{}, io.EOF
		}
		s.written.Add(1)
		return media.Sample{Data: rtc.EncodeMuLaw(f), Duration: f.Duration()}, nil
	default:
		return media.Sample{Data: s.silence, Duration: rtc.FrameDuration}, nil
	}
}

// Frames returns how many speech frames have been written.
func (s *MuLawSource) Frames() int64 { return s.written.Load() }

func (s *MuLawSource) Codec() webrtc.RTPCodecCapability { return PCMU }

func (s *MuLawSource) OnBind() error   { return nil }
func (s *MuLawSource) OnUnbind() error { return nil }
func (s *MuLawSource) Close() error    { return nil }

// PublishAudio publishes a microphone track fed by src.
func (r *Room) PublishAudio(src AudioSource) error {
	lp := r.LocalParticipant()
	if lp == nil {
		return fmt.Errorf("room not connected")
	}

	codec := src.Codec()
	track, err := lksdk.NewLocalSampleTrack(codec)
	if err != nil {
		return fmt.Errorf("create sample track: %w", err)
	}
	if err := track.StartWrite(src, nil); err != nil {
		return fmt.Errorf("start sample track: %w", err)
	}

	pub, err := lp.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   AgentTrackName,
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		return fmt.Errorf("publish audio track: %w", err)
	}

	slog.Info("agent audio track published",
		slog.String("track_sid", pub.SID()),
		slog.String("codec", codec.MimeType))
	return nil
}

// PacketReader yields RTP packets; io.EOF ends the stream.
type PacketReader func() (*rtp.Packet, error)

// TrackPackets adapts a subscribed remote track.
func TrackPackets(track *webrtc.TrackRemote) PacketReader {
	return func() (*rtp.Packet, error) {
		pkt, _, err := track.ReadRTP()
		return pkt, err
	}
}
