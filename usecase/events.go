package usecase

// Outbound event names on the session channel. These are part of the wire
// contract with clients.
const (
	EventListeningStarted  = "listening-started"
	EventListeningStopped  = "listening-stopped"
	EventPartialTranscript = "partial-transcript"
	EventFinalTranscript   = "final-transcript"
	EventAIResponseText    = "ai-response-text"
	EventAIAudio           = "ai-audio"
	EventError             = "error"
)

// Emitter delivers outbound events to a session's client. Implementations
// must tolerate emits after the connection is gone by dropping them.
type Emitter interface {
	Emit(event string, payload interface{})
}

// TranscriptPayload carries a live or finalized recognition result.
type TranscriptPayload struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ResponsePayload carries the assistant reply plus the report snapshot.
type ResponsePayload struct {
	Text              string                 `json:"text"`
	CorrectedUserText string                 `json:"correctedUserText,omitempty"`
	ReportData        map[string]interface{} `json:"reportData"`
}

// AudioPayload carries one synthesized reply as base64 audio.
type AudioPayload struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

// ErrorPayload reports a non-fatal problem to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}
