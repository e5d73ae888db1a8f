package repositories

import "context"

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// RecognitionEvents carries the callbacks a recognition stream invokes.
// Callbacks may fire from the recognizer's own goroutine; the receiver is
// responsible for its own serialization. Nil callbacks are allowed.
type RecognitionEvents struct {
	// OnPartial delivers a live, non-final hypothesis for the current phrase.
	OnPartial func(text string)
	// OnFinal delivers one finalized phrase. Confidence is 0 when the
	// engine did not report one.
	OnFinal func(text string, confidence float64)
	// OnError reports a recognition transport failure the stream could not
	// recover from by restarting.
	OnError func(err error)
}

// RecognitionStream is one continuous recognition session.
type RecognitionStream interface {
	// Write forwards raw audio to the recognizer's input stream. The
	// recognizer buffers internally; audio is never dropped for
	// backpressure.
	Write(data []byte) error
	// Stop ends recognition and releases the underlying handles. Safe to
	// call more than once.
	Stop() error
}

// SpeechRecognizer abstracts continuous streaming speech recognition
type SpeechRecognizer interface {
	// StartContinuous opens a recognition stream that emits partial and
	// final transcript events until stopped or the context is cancelled.
	StartContinuous(ctx context.Context, config AudioConfig, events RecognitionEvents) (RecognitionStream, error)
}
