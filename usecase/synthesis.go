package usecase

import (
	"context"
	"encoding/base64"
	"time"

	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

const synthesisTimeout = 30 * time.Second

// SynthesisDispatcher fires text-to-speech for a reply without blocking the
// text delivery. Synthesis failures are logged and swallowed; they never
// fail the reply or the session.
type SynthesisDispatcher struct {
	synthesizer repositories.SpeechSynthesizer
	logger      *zap.Logger
}

// NewSynthesisDispatcher creates a dispatcher. A nil synthesizer disables
// audio output entirely.
func NewSynthesisDispatcher(synthesizer repositories.SpeechSynthesizer, logger *zap.Logger) *SynthesisDispatcher {
	return &SynthesisDispatcher{
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Dispatch synthesizes text on a detached goroutine and hands the encoded
// payload to deliver. The caller's deliver func guards liveness; after the
// session is gone the payload is discarded there.
func (d *SynthesisDispatcher) Dispatch(text string, deliver func(AudioPayload)) {
	if d.synthesizer == nil || text == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), synthesisTimeout)
		defer cancel()

		result, err := d.synthesizer.Synthesize(ctx, text)
		if err != nil {
			d.logger.Warn("Speech synthesis failed, reply already delivered as text",
				zap.Error(err))
			return
		}
		if result == nil || len(result.Audio) == 0 {
			d.logger.Warn("Speech synthesis returned no audio")
			return
		}
		deliver(AudioPayload{
			Audio:  base64.StdEncoding.EncodeToString(result.Audio),
			Format: result.Format,
		})
	}()
}
