package deepgram

// Server messages on /v1/listen.

type envelope struct {
	Type string `json:"type"`
}

type resultsMessage struct {
	Type         string  `json:"type"`
	Duration     float64 `json:"duration"`
	Start        float64 `json:"start"`
	IsFinal      bool    `json:"is_final"`
	SpeechFinal  bool    `json:"speech_final"`
	FromFinalize bool    `json:"from_finalize,omitempty"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	Metadata struct {
		RequestID string `json:"request_id"`
	} `json:"metadata"`
}

type metadataMessage struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id"`
	Duration  float64 `json:"duration"`
	Channels  int     `json:"channels"`
}

type speechStartedMessage struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

// Client control messages.

type controlMessage struct {
	Type string `json:"type"`
}

var (
	msgFinalize    = controlMessage{Type: "Finalize"}
	msgCloseStream = controlMessage{Type: "CloseStream"}
	msgKeepAlive   = controlMessage{Type: "KeepAlive"}
)
