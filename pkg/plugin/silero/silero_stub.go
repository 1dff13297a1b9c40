//go:build !silero

package silero

import "log/slog"

const description = "Silero VAD (energy fallback; build with -tags=silero for the ONNX model)"

func newSileroVAD(cfg map[string]any) (any, error) {
	slog.Warn("silero VAD not compiled in, using energy detection (build with -tags=silero)")
	return NewEnergyVAD(configFromMap(cfg)), nil
}
