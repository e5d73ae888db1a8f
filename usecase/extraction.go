package usecase

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/domain/entities"
	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

// ExtractionEngine owns the single extraction round-trip per turn and the
// rules for applying the model's output to the report.
type ExtractionEngine struct {
	model  repositories.DialogueModel
	logger *zap.Logger
	now    func() time.Time
}

// NewExtractionEngine creates an extraction engine backed by the given
// dialogue model.
func NewExtractionEngine(model repositories.DialogueModel, logger *zap.Logger) *ExtractionEngine {
	return &ExtractionEngine{
		model:  model,
		logger: logger,
		now:    time.Now,
	}
}

var fillerWords = []string{
	"えーと", "ええと", "えっと", "あのー", "うーんと", "うーん",
}

var fillerPattern = regexp.MustCompile(`(?i)\b(?:um+|uh+|er+|hmm+)\b`)

var correctionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ではなく`),
	regexp.MustCompile(`じゃなく`),
	regexp.MustCompile(`間違え|間違い`),
	regexp.MustCompile(`訂正`),
	regexp.MustCompile(`正しくは`),
	regexp.MustCompile(`(?i)\bnot\b.+\bbut\b`),
	regexp.MustCompile(`(?i)\bi (?:made|make) a mistake\b`),
	regexp.MustCompile(`(?i)\bactually\b`),
	regexp.MustCompile(`(?i)\bi meant\b`),
	regexp.MustCompile(`(?i)^correction[:：]`),
}

// CleanText strips filler words and collapses repeated punctuation. This
// runs locally before the model sees the text.
func CleanText(raw string) string {
	text := raw
	for _, filler := range fillerWords {
		text = strings.ReplaceAll(text, filler, "")
	}
	text = fillerPattern.ReplaceAllString(text, "")
	text = collapseRepeatedPunct(text)
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

// collapseRepeatedPunct reduces runs of the same punctuation mark to one.
func collapseRepeatedPunct(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var prev rune = -1
	for _, r := range text {
		if r == prev && (unicode.IsPunct(r) || r == '！' || r == '？') {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// DetectCorrectionIntent is a cheap local pre-filter for correction
// phrasings. It only hints the model; the model's structured output stays
// authoritative.
func DetectCorrectionIntent(text string) bool {
	for _, pattern := range correctionPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Extract cleans the raw turn text and performs the model round-trip. On
// collaborator failure or malformed output it returns a nil result; the
// turn still advances with the locally-cleaned text and an untouched
// report.
func (e *ExtractionEngine) Extract(ctx context.Context, rawText string, snapshot map[string]interface{}) (string, *repositories.ExtractionResult) {
	cleaned := CleanText(rawText)
	if cleaned == "" {
		return "", nil
	}

	now := e.now()
	result, err := e.model.ExtractSlots(ctx, repositories.ExtractionRequest{
		Text:                cleaned,
		Report:              snapshot,
		Year:                now.Year(),
		Month:               int(now.Month()),
		SuspectedCorrection: DetectCorrectionIntent(cleaned),
	})
	if err != nil {
		e.logger.Warn("Slot extraction failed, keeping report unchanged",
			zap.Error(err))
		return cleaned, nil
	}
	if result == nil {
		return cleaned, nil
	}
	if strings.TrimSpace(result.CorrectedText) == "" {
		result.CorrectedText = cleaned
	}
	return cleaned, result
}

// Apply mutates the report with one turn's extraction result: corrections
// first as full replacements, then the extracted slots under the merge
// rules, skipping fields a correction already touched this turn. Returns
// the set of corrected fields. A nil result is a no-op.
func (e *ExtractionEngine) Apply(report *entities.Report, result *repositories.ExtractionResult) map[string]bool {
	corrected := make(map[string]bool)
	if result == nil {
		return corrected
	}

	for _, c := range result.Corrections {
		if !entities.IsKnownField(c.Field) {
			e.logger.Warn("Ignoring correction for unknown field",
				zap.String("field", c.Field))
			continue
		}
		report.ApplyCorrection(c)
		corrected[c.Field] = true
		e.logger.Info("Applied correction",
			zap.String("field", c.Field),
			zap.String("newValue", c.NewValue))
	}

	if report.MergeExtracted(result.Slots, corrected) {
		e.logger.Debug("Merged extracted slots",
			zap.Int("slotCount", len(result.Slots)))
	}
	return corrected
}
