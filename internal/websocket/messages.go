package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/kaiwa-labs/kaiwa-server/usecase"
)

// Inbound event names on the session channel.
const (
	EventStartListening    = "start-listening"
	EventStopListening     = "stop-listening"
	EventAudioData         = "audio-data"
	EventPauseRecognition  = "pause-recognition"
	EventResumeRecognition = "resume-recognition"
	EventTextInput         = "text-input"
)

// InboundMessage is the JSON envelope for control events from the client.
// Raw audio usually arrives as binary frames; the audio-data event carries
// it base64-encoded for clients restricted to text frames.
type InboundMessage struct {
	Type string `json:"type"`
	// Script optionally switches the session to a pre-authored question
	// list (start-listening only).
	Script *usecase.QuestionScript `json:"script,omitempty"`
	// Audio is base64 mono PCM16 (audio-data only).
	Audio string `json:"audio,omitempty"`
	// Text is a typed utterance bypassing recognition (text-input only).
	Text string `json:"text,omitempty"`
}

// ParseInbound decodes and validates one inbound control message.
func ParseInbound(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message missing type field")
	}

	switch msg.Type {
	case EventStartListening, EventStopListening, EventPauseRecognition, EventResumeRecognition:
	case EventAudioData:
		if msg.Audio == "" {
			return nil, fmt.Errorf("audio-data message missing audio field")
		}
	case EventTextInput:
		if msg.Text == "" {
			return nil, fmt.Errorf("text-input message missing text field")
		}
	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}
	return &msg, nil
}

// MarshalEvent flattens an outbound payload into one JSON object carrying
// the event name in its type field.
func MarshalEvent(event string, payload interface{}) ([]byte, error) {
	body := map[string]interface{}{"type": event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("payload is not an object: %w", err)
		}
		for k, v := range fields {
			body[k] = v
		}
	}
	return json.Marshal(body)
}
