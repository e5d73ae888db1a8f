package repositories

import "context"

// SynthesisResult is one opaque audio payload for a single reply.
type SynthesisResult struct {
	Audio  []byte
	Format string
}

// SpeechSynthesizer abstracts text-to-speech services
type SpeechSynthesizer interface {
	// Synthesize converts text to a single audio payload.
	Synthesize(ctx context.Context, text string) (*SynthesisResult, error)
}
