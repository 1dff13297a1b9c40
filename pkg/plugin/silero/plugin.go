package silero

import "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindVAD,
		Name:        "silero",
		Factory:     newSileroVAD,
		Description: description,
		Version:     "1.0.0",
		Config: map[string]any{
			"threshold":        DefaultThreshold,
			"energy_threshold": DefaultEnergyThreshold,
			"min_speech":       DefaultMinSpeech.String(),
			"min_silence":      DefaultMinSilence.String(),
			"model_path":       "",
		},
		Downloader: NewDownloader(),
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindVAD,
		Name:        "energy",
		Factory:     func(cfg map[string]any) (any, error) { return NewEnergyVAD(configFromMap(cfg)), nil },
		Description: "RMS energy voice activity detection",
		Version:     "1.0.0",
		Config: map[string]any{
			"energy_threshold": DefaultEnergyThreshold,
			"min_speech":       DefaultMinSpeech.String(),
			"min_silence":      DefaultMinSilence.String(),
		},
	})
}
