package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

// MockDialogueModel is a deterministic stand-in for Gemini used in
// development mode. It extracts nothing and asks directly for the first
// empty field.
type MockDialogueModel struct {
	logger *zap.Logger
}

// NewMockDialogueModel creates a mock dialogue model.
func NewMockDialogueModel(logger *zap.Logger) *MockDialogueModel {
	return &MockDialogueModel{logger: logger}
}

// ExtractSlots echoes the text back with no slot changes.
func (m *MockDialogueModel) ExtractSlots(ctx context.Context, req repositories.ExtractionRequest) (*repositories.ExtractionResult, error) {
	m.logger.Debug("Mock extraction", zap.String("text", req.Text))
	return &repositories.ExtractionResult{
		CorrectedText: req.Text,
		Slots:         map[string]interface{}{},
	}, nil
}

// NextQuestion asks for the highest-priority empty field by name.
func (m *MockDialogueModel) NextQuestion(ctx context.Context, req repositories.ResponderRequest) (string, error) {
	if len(req.EmptyFields) == 0 {
		return "他に補足はありますか？", nil
	}
	return fmt.Sprintf("%sについて教えてください。", req.EmptyFields[0]), nil
}
