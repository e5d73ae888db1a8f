package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/domain/entities"
	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

// SessionStatus represents the lifecycle state of a session
type SessionStatus string

const (
	SessionStatusIdle       SessionStatus = "idle"
	SessionStatusListening  SessionStatus = "listening"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusPaused     SessionStatus = "paused"
	SessionStatusCompleted  SessionStatus = "completed"
)

// lowConfidenceThreshold gates extraction: final phrases below it trigger a
// fixed re-prompt instead of a model round-trip.
const lowConfidenceThreshold = 0.5

// SessionDeps bundles the collaborators a session needs.
type SessionDeps struct {
	Recognizer    repositories.SpeechRecognizer
	Model         repositories.DialogueModel
	Synthesizer   repositories.SpeechSynthesizer
	Audio         repositories.AudioConfig
	SilenceWindow time.Duration
	Logger        *zap.Logger
}

// Session owns one report, one conversation history, and one turn segmenter
// for a single live connection. Recognizer callbacks, timer callbacks, and
// inbound socket events all re-enter through the session mutex, so report
// and history mutation stays serialized.
type Session struct {
	id      string
	agentID string

	mu         sync.Mutex
	status     SessionStatus
	processing bool
	paused     bool
	closed     bool

	questionCount int
	report        *entities.Report
	history       []entities.Message

	segmenter  *TurnSegmenter
	engine     *ExtractionEngine
	responder  *DialogueResponder
	dispatcher *SynthesisDispatcher
	recognizer repositories.SpeechRecognizer
	stream     repositories.RecognitionStream
	audio      repositories.AudioConfig

	emitter Emitter
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession allocates a session for one connection. The greeting turn is
// issued separately via Greet once callbacks are wired.
func NewSession(agentID string, deps SessionDeps, emitter Emitter) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	logger := deps.Logger.With(
		zap.String("sessionID", id),
		zap.String("agentID", agentID),
	)

	s := &Session{
		id:         id,
		agentID:    agentID,
		status:     SessionStatusIdle,
		report:     entities.NewReport(),
		engine:     NewExtractionEngine(deps.Model, logger),
		responder:  NewDialogueResponder(deps.Model, logger),
		dispatcher: NewSynthesisDispatcher(deps.Synthesizer, logger),
		recognizer: deps.Recognizer,
		audio:      deps.Audio,
		emitter:    emitter,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.segmenter = NewTurnSegmenter(deps.SilenceWindow, s.onSilenceElapsed)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// AgentID returns the owning agent's identifier.
func (s *Session) AgentID() string {
	return s.agentID
}

// Status returns the current lifecycle state.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// QuestionCount returns the number of assistant question turns so far.
func (s *Session) QuestionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionCount
}

// History returns a copy of the conversation history.
func (s *Session) History() []entities.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Message, len(s.history))
	copy(out, s.history)
	return out
}

// ReportSnapshot returns the current report in wire form.
func (s *Session) ReportSnapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report.Snapshot()
}

// Greet issues the opening assistant turn. questionCount starts at 1 so the
// greeting counts against the interview budget.
func (s *Session) Greet() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	text := s.responder.Greeting()
	s.questionCount = 1
	s.history = append(s.history, entities.NewMessage(entities.MessageRoleAssistant, text))
	snapshot := s.report.Snapshot()
	s.mu.Unlock()

	s.emit(EventAIResponseText, ResponsePayload{Text: text, ReportData: snapshot})
	s.dispatcher.Dispatch(text, s.deliverAudio)
}

// StartListening begins continuous recognition. An optional script switches
// the responder to pre-authored questions for this session.
func (s *Session) StartListening(script *QuestionScript) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if script != nil {
		s.responder.UseScript(script)
	}
	if s.stream != nil {
		s.mu.Unlock()
		s.emit(EventListeningStarted, nil)
		return
	}
	audio := s.audio
	recognizer := s.recognizer
	ctx := s.ctx
	s.mu.Unlock()

	if recognizer == nil {
		s.emit(EventError, ErrorPayload{Message: "speech recognition is not available"})
		return
	}

	stream, err := recognizer.StartContinuous(ctx, audio, repositories.RecognitionEvents{
		OnPartial: s.onPartial,
		OnFinal:   s.onFinal,
		OnError:   s.onRecognitionError,
	})
	if err != nil {
		s.logger.Error("Failed to start recognition", zap.Error(err))
		s.emit(EventError, ErrorPayload{Message: "failed to start recognition"})
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stream.Stop()
		return
	}
	s.stream = stream
	if s.status == SessionStatusIdle {
		s.status = SessionStatusListening
	}
	s.mu.Unlock()

	s.logger.Info("Listening started")
	s.emit(EventListeningStarted, nil)
}

// StopListening stops recognition and flushes any accumulated text as an
// immediate turn instead of waiting for the silence window.
func (s *Session) StopListening() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	stream := s.stream
	s.stream = nil
	if s.status == SessionStatusListening || s.status == SessionStatusPaused {
		s.status = SessionStatusIdle
	}
	text, ok := s.tryBeginTurnLocked()
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Stop(); err != nil {
			s.logger.Warn("Failed to stop recognition stream", zap.Error(err))
		}
	}
	s.emit(EventListeningStopped, nil)

	if ok {
		go s.processTurn(text)
	}
}

// PushAudio forwards one audio chunk to the recognizer's input stream.
// Chunks keep flowing while a turn is processing; only a missing stream
// drops them.
func (s *Session) PushAudio(data []byte) {
	s.mu.Lock()
	stream := s.stream
	closed := s.closed
	s.mu.Unlock()

	if closed || stream == nil {
		return
	}
	if err := stream.Write(data); err != nil {
		s.logger.Warn("Failed to forward audio chunk", zap.Error(err))
	}
}

// Pause deafens recognition event handling while the client plays back the
// assistant's voice, so the microphone cannot feed the AI its own speech.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.paused = true
	if s.status == SessionStatusListening {
		s.status = SessionStatusPaused
	}
}

// Resume re-enables recognition event handling after playback ends.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.paused = false
	if s.status == SessionStatusPaused {
		s.status = SessionStatusListening
	}
}

// HandleTextInput treats typed text as a pre-finalized turn, bypassing
// recognition. If a turn is already processing, the text queues in the
// segmenter like any other finalized phrase.
func (s *Session) HandleTextInput(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.processing {
		s.segmenter.AppendFinal(text)
		s.mu.Unlock()
		return
	}
	s.segmenter.AppendFinal(text)
	turn, ok := s.tryBeginTurnLocked()
	s.mu.Unlock()

	if ok {
		go s.processTurn(turn)
	}
}

// Close tears the session down: recognition stops, pending timers die, and
// any in-flight collaborator results are discarded rather than emitted.
// Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.status = SessionStatusCompleted
	s.segmenter.CancelTimer()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	s.cancel()
	if stream != nil {
		if err := stream.Stop(); err != nil {
			s.logger.Warn("Failed to stop recognition stream during teardown",
				zap.Error(err))
		}
	}
	s.logger.Info("Session closed")
}

// onPartial handles a live hypothesis: the user is still speaking, so the
// finalize timer resets.
func (s *Session) onPartial(text string) {
	s.mu.Lock()
	if s.closed || s.paused {
		s.mu.Unlock()
		return
	}
	s.segmenter.NotePartial()
	s.mu.Unlock()

	s.emit(EventPartialTranscript, TranscriptPayload{Text: text})
}

// onFinal handles one finalized phrase: low-confidence phrases short-circuit
// to a re-prompt, everything else accumulates toward the next turn.
func (s *Session) onFinal(text string, confidence float64) {
	s.mu.Lock()
	if s.closed || s.paused {
		s.mu.Unlock()
		return
	}

	if confidence > 0 && confidence < lowConfidenceThreshold {
		s.history = append(s.history, entities.NewUserMessage(text, confidence))
		s.history = append(s.history, entities.NewMessage(entities.MessageRoleAssistant, RepromptMessage))
		snapshot := s.report.Snapshot()
		s.mu.Unlock()

		s.logger.Info("Low-confidence phrase, re-prompting",
			zap.Float64("confidence", confidence))
		s.emitFinalTranscript(text, confidence)
		s.emit(EventAIResponseText, ResponsePayload{Text: RepromptMessage, ReportData: snapshot})
		s.dispatcher.Dispatch(RepromptMessage, s.deliverAudio)
		return
	}

	s.segmenter.AppendFinal(text)
	s.mu.Unlock()

	s.emitFinalTranscript(text, confidence)
}

// onRecognitionError surfaces a non-recoverable recognizer failure. The
// adapter already retried recoverable transport errors by restarting.
func (s *Session) onRecognitionError(err error) {
	s.logger.Error("Recognition failed", zap.Error(err))
	s.emit(EventError, ErrorPayload{Message: "speech recognition error"})
}

// onSilenceElapsed fires on the segmenter's timer goroutine once the
// silence window passes. A tick arriving while a turn is processing is
// skipped; the accumulated text stays put until a later final phrase
// re-arms the timer.
func (s *Session) onSilenceElapsed() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	text, ok := s.tryBeginTurnLocked()
	s.mu.Unlock()

	if ok {
		s.processTurn(text)
	}
}

// tryBeginTurnLocked claims the single processing slot and drains the
// segmenter. Caller holds s.mu.
func (s *Session) tryBeginTurnLocked() (string, bool) {
	if s.processing || !s.segmenter.HasPending() {
		return "", false
	}
	text := s.segmenter.Take()
	if text == "" {
		return "", false
	}
	s.processing = true
	s.status = SessionStatusProcessing
	return text, true
}

// processTurn runs the extraction and response pipeline for one turn. The
// session lock is released around both collaborator round-trips so audio
// and transcripts keep flowing meanwhile.
func (s *Session) processTurn(text string) {
	s.logger.Info("Processing turn", zap.String("text", text))

	s.mu.Lock()
	snapshot := s.report.Snapshot()
	s.mu.Unlock()

	cleaned, extraction := s.engine.Extract(s.ctx, text, snapshot)
	if cleaned == "" {
		s.finishTurnWithoutReply()
		return
	}
	userText := cleaned
	if extraction != nil && extraction.CorrectedText != "" {
		userText = extraction.CorrectedText
	}

	s.mu.Lock()
	s.engine.Apply(s.report, extraction)
	s.history = append(s.history, entities.NewMessage(entities.MessageRoleUser, userText))
	input := ResponderInput{
		Snapshot:      s.report.Snapshot(),
		EmptyFields:   s.report.EmptyFields(PriorityFields),
		History:       entities.LastN(s.history, 6),
		QuestionCount: s.questionCount,
		LastUserText:  userText,
	}
	s.mu.Unlock()

	reply := s.responder.Respond(s.ctx, input)

	s.mu.Lock()
	s.history = append(s.history, entities.NewMessage(entities.MessageRoleAssistant, reply.Text))
	s.questionCount++
	s.processing = false
	if reply.Completed {
		s.status = SessionStatusCompleted
	} else if s.stream != nil {
		if s.paused {
			s.status = SessionStatusPaused
		} else {
			s.status = SessionStatusListening
		}
	} else {
		s.status = SessionStatusIdle
	}
	snapshot = s.report.Snapshot()
	s.mu.Unlock()

	s.emit(EventAIResponseText, ResponsePayload{
		Text:              reply.Text,
		CorrectedUserText: userText,
		ReportData:        snapshot,
	})
	s.dispatcher.Dispatch(reply.Text, s.deliverAudio)
}

// finishTurnWithoutReply releases the processing slot when local cleanup
// left nothing worth a model round-trip.
func (s *Session) finishTurnWithoutReply() {
	s.mu.Lock()
	s.processing = false
	if s.status == SessionStatusProcessing {
		if s.stream != nil {
			s.status = SessionStatusListening
		} else {
			s.status = SessionStatusIdle
		}
	}
	s.mu.Unlock()
}

func (s *Session) emitFinalTranscript(text string, confidence float64) {
	payload := TranscriptPayload{Text: text}
	if confidence > 0 {
		payload.Confidence = &confidence
	}
	s.emit(EventFinalTranscript, payload)
}

// emit guards every outbound event with a liveness check so results from
// in-flight collaborator calls never reach a torn-down connection.
func (s *Session) emit(event string, payload interface{}) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.emitter.Emit(event, payload)
}

func (s *Session) deliverAudio(payload AudioPayload) {
	s.emit(EventAIAudio, payload)
}
