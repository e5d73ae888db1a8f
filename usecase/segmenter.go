package usecase

import (
	"strings"
	"time"
)

// DefaultSilenceWindow is how long recognition must stay quiet after a final
// phrase before the accumulated text counts as one complete turn.
const DefaultSilenceWindow = 2500 * time.Millisecond

// TurnSegmenter converts a stream of partial/final transcript events plus a
// silence timer into discrete turns. It holds no locking of its own; the
// owning session serializes all calls, and the silence callback fires on the
// timer goroutine for the session to re-enter through its own lock.
type TurnSegmenter struct {
	window      time.Duration
	onSilence   func()
	timer       *time.Timer
	accumulated strings.Builder
	lastSpeech  time.Time
}

// NewTurnSegmenter creates a segmenter firing onSilence once the window
// elapses after the last final phrase.
func NewTurnSegmenter(window time.Duration, onSilence func()) *TurnSegmenter {
	if window <= 0 {
		window = DefaultSilenceWindow
	}
	return &TurnSegmenter{
		window:    window,
		onSilence: onSilence,
	}
}

// NotePartial records that the user is still speaking: the pending finalize
// timer, if any, is cancelled.
func (s *TurnSegmenter) NotePartial() {
	s.lastSpeech = time.Now()
	s.CancelTimer()
}

// AppendFinal accumulates one finalized phrase and (re)arms the silence
// timer.
func (s *TurnSegmenter) AppendFinal(text string) {
	s.lastSpeech = time.Now()
	s.accumulated.WriteString(text)
	s.accumulated.WriteString(" ")
	s.CancelTimer()
	s.timer = time.AfterFunc(s.window, s.onSilence)
}

// Take snapshots and clears the accumulated text, cancelling any pending
// timer. Returns the empty string when nothing accumulated.
func (s *TurnSegmenter) Take() string {
	s.CancelTimer()
	text := strings.TrimSpace(s.accumulated.String())
	s.accumulated.Reset()
	return text
}

// HasPending reports whether finalized text is waiting for a turn.
func (s *TurnSegmenter) HasPending() bool {
	return strings.TrimSpace(s.accumulated.String()) != ""
}

// LastSpeech returns when speech was last observed.
func (s *TurnSegmenter) LastSpeech() time.Time {
	return s.lastSpeech
}

// CancelTimer stops the pending finalize timer, if armed.
func (s *TurnSegmenter) CancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
