package stt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

// ScriptedRecognizer is a development stand-in for the Google recognizer.
// Every audio chunk crossing a size threshold advances through a fixed
// phrase list, emitting a partial followed by a final event.
type ScriptedRecognizer struct {
	logger  *zap.Logger
	phrases []ScriptedPhrase
}

// ScriptedPhrase is one canned recognition result.
type ScriptedPhrase struct {
	Text       string
	Confidence float64
}

// NewScriptedRecognizer creates a recognizer replaying the given phrases.
// With no phrases it replays a built-in visit-report dialogue.
func NewScriptedRecognizer(logger *zap.Logger, phrases ...ScriptedPhrase) *ScriptedRecognizer {
	if len(phrases) == 0 {
		phrases = []ScriptedPhrase{
			{Text: "東京建設さんを訪問しました", Confidence: 0.92},
			{Text: "新システムの案件です", Confidence: 0.9},
			{Text: "予算が厳しいという話でした", Confidence: 0.88},
			{Text: "来週見積もりを送ります", Confidence: 0.91},
		}
	}
	return &ScriptedRecognizer{logger: logger, phrases: phrases}
}

// StartContinuous implements repositories.SpeechRecognizer.
func (r *ScriptedRecognizer) StartContinuous(ctx context.Context, config repositories.AudioConfig, events repositories.RecognitionEvents) (repositories.RecognitionStream, error) {
	r.logger.Info("Starting scripted recognition",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))
	return &scriptedStream{
		logger:  r.logger,
		events:  events,
		phrases: r.phrases,
	}, nil
}

type scriptedStream struct {
	logger  *zap.Logger
	events  repositories.RecognitionEvents
	phrases []ScriptedPhrase

	mu       sync.Mutex
	stopped  bool
	buffered int
	index    int
}

// chunkThreshold is roughly one second of mono PCM16 at 16kHz.
const chunkThreshold = 32000

func (s *scriptedStream) Write(data []byte) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("recognition stream is stopped")
	}
	s.buffered += len(data)
	if s.buffered < chunkThreshold || s.index >= len(s.phrases) {
		s.mu.Unlock()
		return nil
	}
	s.buffered = 0
	phrase := s.phrases[s.index]
	s.index++
	s.mu.Unlock()

	if s.events.OnPartial != nil {
		s.events.OnPartial(phrase.Text)
	}
	if s.events.OnFinal != nil {
		s.events.OnFinal(phrase.Text, phrase.Confidence)
	}
	return nil
}

func (s *scriptedStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}
