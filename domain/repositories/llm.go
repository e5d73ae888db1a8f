package repositories

import (
	"context"

	"github.com/kaiwa-labs/kaiwa-server/domain/entities"
)

// ExtractionRequest is one turn's worth of input for slot extraction.
type ExtractionRequest struct {
	// Text is the user's utterance after local cleanup.
	Text string
	// Report is the current report snapshot, given to the model as context
	// so it does not re-extract what is already known.
	Report map[string]interface{}
	// Year and Month anchor relative dates ("by the 30th") in the prompt.
	Year  int
	Month int
	// SuspectedCorrection hints that local pattern matching saw correction
	// intent; the model's structured output stays authoritative.
	SuspectedCorrection bool
}

// ExtractionResult is the model's structured answer for one turn.
type ExtractionResult struct {
	CorrectedText string                 `json:"corrected_text"`
	Slots         map[string]interface{} `json:"slots"`
	Corrections   []entities.Correction  `json:"corrections,omitempty"`
}

// ResponderRequest carries the context for generating the next question.
type ResponderRequest struct {
	Report map[string]interface{}
	// EmptyFields lists still-empty report fields in priority order.
	EmptyFields []string
	// History holds the last few conversation entries.
	History []entities.Message
	// LastUserText is the corrected text of the turn just processed.
	LastUserText string
}

// DialogueModel abstracts the language-model collaborator behind the
// extraction engine and the dialogue responder. One implementation serves
// both call shapes.
type DialogueModel interface {
	// ExtractSlots performs the single extraction round-trip for a turn.
	ExtractSlots(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error)
	// NextQuestion produces the assistant's next utterance: acknowledge
	// what was just said, then ask about the highest-priority empty field.
	NextQuestion(ctx context.Context, req ResponderRequest) (string, error)
}
