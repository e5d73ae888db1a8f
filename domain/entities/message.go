package entities

import "time"

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one entry in a session's conversation history. History entries
// are append-only; they are never mutated or removed.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Confidence *float64    `json:"confidence,omitempty"`
}

// NewMessage creates a history entry stamped with the current time.
func NewMessage(role MessageRole, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user entry carrying the recognition confidence.
func NewUserMessage(content string, confidence float64) Message {
	msg := NewMessage(MessageRoleUser, content)
	if confidence > 0 {
		msg.Confidence = &confidence
	}
	return msg
}

// LastN returns up to n trailing history entries.
func LastN(history []Message, n int) []Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
