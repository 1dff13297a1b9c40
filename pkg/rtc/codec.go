package rtc

import "github.com/zaf/g711"

// MuLawRate is the clock rate of G.711 audio.
const MuLawRate = 8000

// EncodeMuLaw converts a frame to 8 kHz mono G.711 µ-law, one byte per sample.
func EncodeMuLaw(f AudioFrame) []byte {
	return g711.EncodeUlaw(ResampleFrame(f, MuLawRate).Data)
}

// DecodeMuLaw converts 8 kHz µ-law bytes back to 16-bit PCM.
func DecodeMuLaw(ulaw []byte) []byte {
	return g711.DecodeUlaw(ulaw)
}
