package elevenlabs

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type generationConfig struct {
	ChunkLengthSchedule []int `json:"chunk_length_schedule"`
}

// beginMessage opens the stream. Its text must be a single space.
type beginMessage struct {
	Text             string           `json:"text"`
	VoiceSettings    voiceSettings    `json:"voice_settings"`
	GenerationConfig generationConfig `json:"generation_config"`
}

// textMessage carries text to speak. An empty Text ends the stream.
type textMessage struct {
	Text  string `json:"text"`
	Flush bool   `json:"flush,omitempty"`
}

// serverMessage is either audio or an error.
type serverMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`

	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
