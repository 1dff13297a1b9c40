package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"gopkg.in/hraban/opus.v2"
)

const (
	// OpusRate is the sample rate WebRTC Opus is negotiated at.
	OpusRate = 48000

	opusPacketDuration = 20 * time.Millisecond
	opusPacketSamples  = OpusRate / 50
	// maxOpusSamples holds the longest Opus packet, 120 ms at 48 kHz.
	maxOpusSamples = 5760
)

// Opus is the codec of the outbound track in the default configuration.
var Opus = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: OpusRate, Channels: 2}

// DecodeOpus decodes Opus RTP payloads into 10 ms mono frames at rate and
// sends them on out until the track ends or ctx is cancelled. Lost or
// undecodable packets are skipped.
func DecodeOpus(ctx context.Context, read PacketReader, channels, rate int, out chan<- rtc.AudioFrame) error {
	if channels < 1 {
		channels = 1
	}
	dec, err := opus.NewDecoder(OpusRate, channels)
	if err != nil {
		return fmt.Errorf("create opus decoder: %w", err)
	}

	pcm := make([]int16, maxOpusSamples*channels)
	splitter := rtc.NewFrameSplitter(OpusRate, channels)

	for ctx.Err() == nil {
		pkt, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read rtp: %w", err)
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		n, err := dec.Decode(pkt.Payload, pcm)
		if err != nil {
			continue
		}
		for _, f := range splitter.Write(rtc.PCM(pcm[:n*channels])) {
			select {
			case out <- rtc.ResampleFrame(f, rate):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return ctx.Err()
}

// OpusSource is an lksdk.SampleProvider that encodes PCM frames as 20 ms
// mono Opus packets. When no speech is waiting it yields an encoded silent
// packet so the track keeps its real-time pace.
type OpusSource struct {
	frames  <-chan rtc.AudioFrame
	enc     *opus.Encoder
	pending []int16
	packet  []byte
	silence []byte
	written atomic.Int64
}

func NewOpusSource(frames <-chan rtc.AudioFrame) (*OpusSource, error) {
	enc, err := opus.NewEncoder(OpusRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	s := &OpusSource{frames: frames, enc: enc, packet: make([]byte, 1500)}

	n, err := enc.Encode(make([]int16, opusPacketSamples), s.packet)
	if err != nil {
		return nil, fmt.Errorf("encode silence: %w", err)
	}
	s.silence = append([]byte(nil), s.packet[:n]...)
	return s, nil
}

func (s *OpusSource) NextSample(ctx context.Context) (media.Sample, error) {
	for len(s.pending) < opusPacketSamples {
		if s.frames == nil {
			if len(s.pending) == 0 {
				return media.Sample{}, io.EOF
			}
			s.pad()
			break
		}

		select {
		case <-ctx.Done():
			return media.Sample{}, ctx.Err()
		case f, ok := <-s.frames:
			if !ok {
				s.frames = nil
				continue
			}
			s.written.Add(1)
			s.pending = append(s.pending, rtc.Samples(rtc.ResampleFrame(f, OpusRate).Data)...)
		default:
			if len(s.pending) == 0 {
				return media.Sample{Data: s.silence, Duration: opusPacketDuration}, nil
			}
			s.pad()
		}
	}

	n, err := s.enc.Encode(s.pending[:opusPacketSamples], s.packet)
	s.pending = append(s.pending[:0], s.pending[opusPacketSamples:]...)
	if err != nil {
		return media.Sample{}, fmt.Errorf("encode opus: %w", err)
	}
	return media.Sample{Data: append([]byte(nil), s.packet[:n]...), Duration: opusPacketDuration}, nil
}

// pad completes a partial packet with silence.
func (s *OpusSource) pad() {
	s.pending = append(s.pending, make([]int16, opusPacketSamples-len(s.pending))...)
}

// Frames returns how many speech frames have been consumed.
func (s *OpusSource) Frames() int64 { return s.written.Load() }

func (s *OpusSource) Codec() webrtc.RTPCodecCapability { return Opus }

func (s *OpusSource) OnBind() error   { return nil }
func (s *OpusSource) OnUnbind() error { return nil }
func (s *OpusSource) Close() error    { return nil }
