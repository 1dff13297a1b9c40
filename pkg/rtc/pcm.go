package rtc

import (
	"encoding/binary"
	"math"
)

// Samples decodes little-endian 16-bit PCM.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// PCM encodes samples as little-endian 16-bit PCM.
func PCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// RMS returns the root mean square of the frame normalised to 0..1.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// Mono averages interleaved channels down to one.
func Mono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// Resample converts mono samples between rates with linear interpolation.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]int16, n)
	ratio := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

// ResampleFrame returns f converted to mono at rate. f is returned unchanged
// when it already matches.
func ResampleFrame(f AudioFrame, rate int) AudioFrame {
	if f.SampleRate == rate && f.NumChannels == 1 {
		return f
	}
	mono := Mono(Samples(f.Data), f.NumChannels)
	out := Resample(mono, f.SampleRate, rate)

	// Interpolation may be off by one sample; frames stay exactly 10 ms.
	want := SamplesPerFrame(rate)
	if len(out) != want {
		fixed := make([]int16, want)
		copy(fixed, out)
		if len(out) > 0 && len(out) < want {
			for i := len(out); i < want; i++ {
				fixed[i] = out[len(out)-1]
			}
		}
		out = fixed
	}

	return AudioFrame{
		Data:              PCM(out),
		SampleRate:        rate,
		SamplesPerChannel: want,
		NumChannels:       1,
		Timestamp:         f.Timestamp,
	}
}
