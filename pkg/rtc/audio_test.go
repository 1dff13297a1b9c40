package rtc

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestNewAudioFrame(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate int
		channels   int
		wantErr    bool
	}{
		{name: "16k mono", size: 320, sampleRate: 16000, channels: 1},
		{name: "48k stereo", size: 1920, sampleRate: 48000, channels: 2},
		{name: "8k mono", size: 160, sampleRate: 8000, channels: 1},
		{name: "short", size: 100, sampleRate: 16000, channels: 1, wantErr: true},
		{name: "odd rate", size: 2, sampleRate: 44101, channels: 1, wantErr: true},
		{name: "no channels", size: 0, sampleRate: 16000, channels: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewAudioFrame(make([]byte, tt.size), tt.sampleRate, tt.channels, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewAudioFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && f.SamplesPerChannel != tt.sampleRate/100 {
				t.Errorf("SamplesPerChannel = %d", f.SamplesPerChannel)
			}
		})
	}
}

func TestAudioFrame_Clone(t *testing.T) {
	is := is.New(t)
	f, err := NewAudioFrame(make([]byte, 320), 16000, 1, time.Second)
	is.NoErr(err)

	c := f.Clone()
	c.Data[0] = 0xFF
	is.Equal(f.Data[0], byte(0)) // clone does not share data
	is.Equal(c.Timestamp, time.Second)
	is.Equal(c.Duration(), 10*time.Millisecond)
}

func TestSamplesRoundTrip(t *testing.T) {
	is := is.New(t)
	in := []int16{0, 1, -1, 32767, -32768, 1234}
	is.Equal(Samples(PCM(in)), in)
}

func TestRMS(t *testing.T) {
	is := is.New(t)
	is.Equal(RMS(nil), 0.0)
	is.Equal(RMS(make([]byte, 320)), 0.0)

	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 16384
	}
	got := RMS(PCM(loud))
	is.True(got > 0.49 && got < 0.51)
}

func TestResampleFrame(t *testing.T) {
	is := is.New(t)

	stereo := make([]int16, 480*2)
	for i := range stereo {
		stereo[i] = 1000
	}
	f := AudioFrame{Data: PCM(stereo), SampleRate: 48000, SamplesPerChannel: 480, NumChannels: 2}

	out := ResampleFrame(f, 16000)
	is.Equal(out.SampleRate, 16000)
	is.Equal(out.NumChannels, 1)
	is.Equal(out.SamplesPerChannel, 160)
	is.Equal(len(out.Data), 320)
	is.Equal(Samples(out.Data)[80], int16(1000))

	up := ResampleFrame(out, 24000)
	is.Equal(len(up.Data), FrameBytes(24000, 1))

	same := ResampleFrame(out, 16000)
	is.True(&same.Data[0] == &out.Data[0]) // unchanged frame is passed through
}

func TestFrameSplitter(t *testing.T) {
	is := is.New(t)
	s := NewFrameSplitter(16000, 1)

	is.Equal(len(s.Write(make([]byte, 100))), 0)
	frames := s.Write(make([]byte, 600)) // 700 buffered: two frames and 60 bytes left
	is.Equal(len(frames), 2)
	is.Equal(frames[1].Timestamp, 10*time.Millisecond)
	for _, f := range frames {
		is.Equal(len(f.Data), 320)
	}

	last, ok := s.Flush()
	is.True(ok)
	is.Equal(len(last.Data), 320)
	is.Equal(last.Timestamp, 20*time.Millisecond)

	_, ok = s.Flush()
	is.True(!ok)
}

func TestEncodeMuLaw(t *testing.T) {
	is := is.New(t)
	f, err := NewAudioFrame(make([]byte, FrameBytes(24000, 1)), 24000, 1, 0)
	is.NoErr(err)

	ulaw := EncodeMuLaw(*f)
	is.Equal(len(ulaw), 80) // 10 ms at 8 kHz
	is.Equal(len(DecodeMuLaw(ulaw)), 160)
}
