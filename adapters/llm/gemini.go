package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.2
	defaultMaxTokens      = 1024
	defaultTimeoutSeconds = 30
	maxAttempts           = 3
)

// GeminiConfig holds configuration for the Gemini dialogue model.
// Required fields:
// - APIKey: Google AI API key
// Optional fields with defaults:
// - Model: model name (default "gemini-2.0-flash")
// - Temperature: sampling temperature between 0 and 1 (default 0.2)
// - MaxOutputTokens: reply token cap (default 1024)
// - TimeoutSeconds: per-call deadline (default 30)
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	return nil
}

// GeminiDialogueModel implements the DialogueModel interface using Google's
// Gemini API for both slot extraction and question generation.
type GeminiDialogueModel struct {
	client      *genai.Client
	logger      *zap.Logger
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// NewGeminiDialogueModel creates a new Gemini-backed dialogue model.
func NewGeminiDialogueModel(config GeminiConfig, logger *zap.Logger) (*GeminiDialogueModel, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := config.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &GeminiDialogueModel{
		client:      client,
		logger:      logger,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ExtractSlots performs the structured extraction round-trip for one turn.
func (g *GeminiDialogueModel) ExtractSlots(ctx context.Context, req repositories.ExtractionRequest) (*repositories.ExtractionResult, error) {
	prompt, err := buildExtractionPrompt(req)
	if err != nil {
		return nil, err
	}

	raw, err := g.generate(ctx, prompt, "application/json")
	if err != nil {
		return nil, err
	}

	result, err := parseExtractionResponse(raw)
	if err != nil {
		g.logger.Warn("Malformed extraction response",
			zap.String("response", truncate(raw, 200)),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// NextQuestion produces the next assistant utterance.
func (g *GeminiDialogueModel) NextQuestion(ctx context.Context, req repositories.ResponderRequest) (string, error) {
	prompt, err := buildResponderPrompt(req)
	if err != nil {
		return "", err
	}

	text, err := g.generate(ctx, prompt, "")
	if err != nil {
		return "", err
	}
	return text, nil
}

// generate runs one GenerateContent call with retry and timeout.
func (g *GeminiDialogueModel) generate(ctx context.Context, prompt, responseMIMEType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxTokens),
	}
	if responseMIMEType != "" {
		config.ResponseMIMEType = responseMIMEType
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}
		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}
	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
