package entities

import "testing"

func TestNewUserMessageConfidence(t *testing.T) {
	msg := NewUserMessage("こんにちは", 0.87)
	if msg.Role != MessageRoleUser {
		t.Errorf("Expected user role, got %q", msg.Role)
	}
	if msg.Confidence == nil || *msg.Confidence != 0.87 {
		t.Errorf("Expected confidence 0.87, got %v", msg.Confidence)
	}

	// Zero confidence means the recognizer did not report one.
	msg = NewUserMessage("こんにちは", 0)
	if msg.Confidence != nil {
		t.Errorf("Expected no confidence, got %v", msg.Confidence)
	}
}

func TestLastN(t *testing.T) {
	history := []Message{
		NewMessage(MessageRoleAssistant, "1"),
		NewMessage(MessageRoleUser, "2"),
		NewMessage(MessageRoleAssistant, "3"),
	}

	if got := LastN(history, 2); len(got) != 2 || got[0].Content != "2" {
		t.Errorf("Expected trailing two entries, got %+v", got)
	}
	if got := LastN(history, 5); len(got) != 3 {
		t.Errorf("Expected the full history, got %d entries", len(got))
	}
	if got := LastN(nil, 3); len(got) != 0 {
		t.Errorf("Expected empty result, got %+v", got)
	}
}

func TestAgentValidate(t *testing.T) {
	agent := &Agent{SerialNumber: "SN-1", Name: "テスト"}
	if err := agent.Validate(); err != nil {
		t.Errorf("Expected valid agent, got %v", err)
	}
	if err := (&Agent{Name: "テスト"}).Validate(); err == nil {
		t.Error("Expected error for missing serial number")
	}
	if err := (&Agent{SerialNumber: "SN-1"}).Validate(); err == nil {
		t.Error("Expected error for missing name")
	}
}
