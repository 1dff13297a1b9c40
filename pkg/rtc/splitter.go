package rtc

import "time"

// FrameSplitter cuts a PCM byte stream of arbitrary chunk sizes into 10 ms
// frames.
type FrameSplitter struct {
	sampleRate  int
	numChannels int
	buf         []byte
	emitted     int
}

func NewFrameSplitter(sampleRate, numChannels int) *FrameSplitter {
	return &FrameSplitter{sampleRate: sampleRate, numChannels: numChannels}
}

// Write buffers p and returns every complete frame now available.
func (s *FrameSplitter) Write(p []byte) []AudioFrame {
	s.buf = append(s.buf, p...)
	size := FrameBytes(s.sampleRate, s.numChannels)

	var frames []AudioFrame
	for len(s.buf) >= size {
		frames = append(frames, s.frame(s.buf[:size:size]))
		s.buf = s.buf[size:]
	}
	// Keep the remainder in its own array so emitted frames are not aliased.
	s.buf = append([]byte(nil), s.buf...)
	return frames
}

// Flush returns the buffered remainder zero-padded to a full frame, or false
// when nothing is buffered.
func (s *FrameSplitter) Flush() (AudioFrame, bool) {
	if len(s.buf) == 0 {
		return AudioFrame{}, false
	}
	data := make([]byte, FrameBytes(s.sampleRate, s.numChannels))
	copy(data, s.buf)
	s.buf = nil
	return s.frame(data), true
}

func (s *FrameSplitter) frame(data []byte) AudioFrame {
	f := AudioFrame{
		Data:              data,
		SampleRate:        s.sampleRate,
		SamplesPerChannel: SamplesPerFrame(s.sampleRate),
		NumChannels:       s.numChannels,
		Timestamp:         time.Duration(s.emitted) * FrameDuration,
	}
	s.emitted++
	return f
}
