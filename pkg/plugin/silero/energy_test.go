package silero

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/matryer/is"
)

func tone(amplitude int16) rtc.AudioFrame {
	samples := make([]int16, 160)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return rtc.AudioFrame{Data: rtc.PCM(samples), SampleRate: 16000, SamplesPerChannel: 160, NumChannels: 1}
}

func TestEnergyVAD_Detect(t *testing.T) {
	tests := []struct {
		name  string
		loud  int
		quiet int
		want  []vad.EventType
	}{
		{name: "silence", loud: 0, quiet: 100, want: nil},
		{name: "too short", loud: 3, quiet: 100, want: nil},
		{name: "utterance", loud: 30, quiet: 60, want: []vad.EventType{vad.EventSpeechStart, vad.EventSpeechEnd}},
		{name: "input closes mid speech", loud: 30, quiet: 20, want: []vad.EventType{vad.EventSpeechStart, vad.EventSpeechEnd}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			in := make(chan rtc.AudioFrame, tt.loud+tt.quiet)
			for i := 0; i < tt.loud; i++ {
				in <- tone(8000)
			}
			for i := 0; i < tt.quiet; i++ {
				in <- tone(0)
			}
			close(in)

			events, err := NewEnergyVAD(Config{}).Detect(ctx, in)
			is.NoErr(err)

			var got []vad.EventType
			for ev := range events {
				got = append(got, ev.Type)
			}
			is.Equal(got, tt.want)
		})
	}
}

func TestHysteresis(t *testing.T) {
	is := is.New(t)
	h := &hysteresis{threshold: 0.5, minSpeech: 20 * time.Millisecond, minSilence: 30 * time.Millisecond}
	step := 10 * time.Millisecond

	_, changed := h.observe(0.9, step)
	is.True(!changed)
	ev, changed := h.observe(0.9, step)
	is.True(changed)
	is.Equal(ev, vad.EventSpeechStart)

	h.observe(0.1, step)
	h.observe(0.1, step)
	h.observe(0.9, step) // speech resumes before the silence window closes
	_, changed = h.observe(0.1, step)
	is.True(!changed)
	h.observe(0.1, step)
	ev, changed = h.observe(0.1, step)
	is.True(changed)
	is.Equal(ev, vad.EventSpeechEnd)
}

func TestRegisteredFactories(t *testing.T) {
	is := is.New(t)
	t.Setenv("QUALIFIER_MODEL_PATH", t.TempDir())

	for _, name := range []string{"silero", "energy"} {
		v, err := plugin.New[vad.VAD](plugin.KindVAD, name, map[string]any{"min_silence": "300ms"})
		is.NoErr(err)
		is.Equal(v.Capabilities().MinSilenceDuration, 300*time.Millisecond)
	}
}

func TestDownloader(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("onnx-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "models", ModelFileName)
	d := &Downloader{URL: srv.URL, Path: path, Client: srv.Client()}

	is.NoErr(d.Download())
	data, err := os.ReadFile(path)
	is.NoErr(err)
	is.Equal(string(data), "onnx-bytes")

	srv.Close()
	is.NoErr(d.Download()) // present model is not fetched again
}

func TestDownloader_HTTPError(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	path := filepath.Join(t.TempDir(), ModelFileName)
	d := &Downloader{URL: srv.URL, Path: path, Client: srv.Client()}

	is.True(d.Download() != nil)
	_, err := os.Stat(path)
	is.True(os.IsNotExist(err)) // no partial model left behind
}
