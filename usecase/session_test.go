package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kaiwa-labs/kaiwa-server/domain/entities"
	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
}

type emittedEvent struct {
	event   string
	payload interface{}
}

func (e *recordingEmitter) Emit(event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emittedEvent{event: event, payload: payload})
}

func (e *recordingEmitter) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.event == event {
			n++
		}
	}
	return n
}

func (e *recordingEmitter) last(event string) (interface{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.events) - 1; i >= 0; i-- {
		if e.events[i].event == event {
			return e.events[i].payload, true
		}
	}
	return nil, false
}

// waitFor polls until the event has been emitted at least n times.
func (e *recordingEmitter) waitFor(t *testing.T, event string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.count(event) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d %q events, got %d", n, event, e.count(event))
}

// fakeStream records written audio and its stop state.
type fakeStream struct {
	mu      sync.Mutex
	written int
	stops   int
}

func (s *fakeStream) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written += len(data)
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

// fakeRecognizer hands back a fakeStream and exposes the registered
// callbacks so tests can drive transcription events directly.
type fakeRecognizer struct {
	mu     sync.Mutex
	events repositories.RecognitionEvents
	stream *fakeStream
	starts int
}

func (r *fakeRecognizer) StartContinuous(ctx context.Context, config repositories.AudioConfig, events repositories.RecognitionEvents) (repositories.RecognitionStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = events
	r.stream = &fakeStream{}
	r.starts++
	return r.stream, nil
}

func (r *fakeRecognizer) emitFinal(text string, confidence float64) {
	r.mu.Lock()
	events := r.events
	r.mu.Unlock()
	events.OnFinal(text, confidence)
}

func (r *fakeRecognizer) emitPartial(text string) {
	r.mu.Lock()
	events := r.events
	r.mu.Unlock()
	events.OnPartial(text)
}

// scriptedDialogueModel returns canned extraction results keyed by input
// text, and a fixed next question.
type scriptedDialogueModel struct {
	mu          sync.Mutex
	extractions map[string]*repositories.ExtractionResult
	question    string
	extracts    int
	questions   int
}

func (m *scriptedDialogueModel) ExtractSlots(ctx context.Context, req repositories.ExtractionRequest) (*repositories.ExtractionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extracts++
	if result, ok := m.extractions[req.Text]; ok {
		return result, nil
	}
	return &repositories.ExtractionResult{CorrectedText: req.Text, Slots: map[string]interface{}{}}, nil
}

func (m *scriptedDialogueModel) NextQuestion(ctx context.Context, req repositories.ResponderRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions++
	return m.question, nil
}

func newTestSession(t *testing.T, recognizer *fakeRecognizer, model *scriptedDialogueModel) (*Session, *recordingEmitter) {
	t.Helper()
	emitter := &recordingEmitter{}
	session := NewSession("agent-1", SessionDeps{
		Recognizer:    recognizer,
		Model:         model,
		Audio:         repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16", Language: "ja-JP"},
		SilenceWindow: 50 * time.Millisecond,
		Logger:        zaptest.NewLogger(t),
	}, emitter)
	t.Cleanup(session.Close)
	return session, emitter
}

func TestSessionGreetingOpensInterview(t *testing.T) {
	session, emitter := newTestSession(t, &fakeRecognizer{}, &scriptedDialogueModel{})

	session.Greet()

	if got := session.QuestionCount(); got != 1 {
		t.Errorf("Expected question count 1 after greeting, got %d", got)
	}
	payload, ok := emitter.last(EventAIResponseText)
	if !ok {
		t.Fatal("Expected an ai-response-text event")
	}
	if payload.(ResponsePayload).Text != GreetingMessage {
		t.Errorf("Expected the greeting text, got %+v", payload)
	}
}

func TestSessionFullTurnPipeline(t *testing.T) {
	recognizer := &fakeRecognizer{}
	model := &scriptedDialogueModel{
		question: "参加者はどなたでしたか？",
		extractions: map[string]*repositories.ExtractionResult{
			"今日は田中建設さんを訪問しました": {
				CorrectedText: "今日は田中建設さんを訪問しました",
				Slots:         map[string]interface{}{entities.FieldCustomer: "田中建設"},
			},
		},
	}
	session, emitter := newTestSession(t, recognizer, model)
	session.Greet()
	session.StartListening(nil)

	recognizer.emitFinal("今日は田中建設さんを訪問しました", 0.92)
	emitter.waitFor(t, EventFinalTranscript, 1)
	emitter.waitFor(t, EventAIResponseText, 2)

	payload, _ := emitter.last(EventAIResponseText)
	response := payload.(ResponsePayload)
	if response.Text != "参加者はどなたでしたか？" {
		t.Errorf("Expected the model's question, got %q", response.Text)
	}
	if response.CorrectedUserText != "今日は田中建設さんを訪問しました" {
		t.Errorf("Unexpected corrected user text %q", response.CorrectedUserText)
	}
	if response.ReportData[entities.FieldCustomer] != "田中建設" {
		t.Errorf("Expected the extracted customer in report data, got %v", response.ReportData[entities.FieldCustomer])
	}
	if got := session.QuestionCount(); got != 2 {
		t.Errorf("Expected question count 2, got %d", got)
	}
}

func TestSessionLowConfidenceReprompts(t *testing.T) {
	recognizer := &fakeRecognizer{}
	model := &scriptedDialogueModel{question: "次の質問"}
	session, emitter := newTestSession(t, recognizer, model)
	session.Greet()
	session.StartListening(nil)

	recognizer.emitFinal("もごもご", 0.2)
	emitter.waitFor(t, EventAIResponseText, 2)

	payload, _ := emitter.last(EventAIResponseText)
	if payload.(ResponsePayload).Text != RepromptMessage {
		t.Errorf("Expected the fixed re-prompt, got %+v", payload)
	}
	model.mu.Lock()
	extracts := model.extracts
	model.mu.Unlock()
	if extracts != 0 {
		t.Error("Expected no extraction round-trip for a low-confidence phrase")
	}
	if got := session.QuestionCount(); got != 1 {
		t.Errorf("Expected re-prompt not to advance the question count, got %d", got)
	}
	for _, value := range session.ReportSnapshot() {
		if s, ok := value.(string); ok && s != "" {
			t.Errorf("Expected the report untouched, found %q", s)
		}
	}
}

func TestSessionSilenceWindowTriggersTurn(t *testing.T) {
	recognizer := &fakeRecognizer{}
	model := &scriptedDialogueModel{question: "次は？"}
	session, emitter := newTestSession(t, recognizer, model)
	session.Greet()
	session.StartListening(nil)

	recognizer.emitFinal("一つ目の発話", 0.9)
	recognizer.emitFinal("二つ目の発話", 0.9)

	emitter.waitFor(t, EventAIResponseText, 2)
	model.mu.Lock()
	extracts := model.extracts
	model.mu.Unlock()
	if extracts != 1 {
		t.Errorf("Expected both finals merged into one turn, got %d extractions", extracts)
	}

	history := session.History()
	var userTurn string
	for _, msg := range history {
		if msg.Role == entities.MessageRoleUser {
			userTurn = msg.Content
		}
	}
	if userTurn != "一つ目の発話 二つ目の発話" {
		t.Errorf("Expected concatenated turn text, got %q", userTurn)
	}
}

func TestSessionStopListeningFlushesImmediately(t *testing.T) {
	recognizer := &fakeRecognizer{}
	model := &scriptedDialogueModel{question: "続きをどうぞ"}
	session, emitter := newTestSession(t, recognizer, model)
	session.Greet()
	session.StartListening(nil)

	recognizer.emitFinal("停止前の発話", 0.9)
	session.StopListening()

	emitter.waitFor(t, EventListeningStopped, 1)
	emitter.waitFor(t, EventAIResponseText, 2)

	recognizer.mu.Lock()
	stream := recognizer.stream
	recognizer.mu.Unlock()
	stream.mu.Lock()
	stops := stream.stops
	stream.mu.Unlock()
	if stops != 1 {
		t.Errorf("Expected the recognition stream stopped once, got %d", stops)
	}
}

func TestSessionPauseDeafensRecognitionEvents(t *testing.T) {
	recognizer := &fakeRecognizer{}
	model := &scriptedDialogueModel{question: "無視されるはず"}
	session, emitter := newTestSession(t, recognizer, model)
	session.Greet()
	session.StartListening(nil)
	session.Pause()

	recognizer.emitPartial("聞こえていないはず")
	recognizer.emitFinal("これも無視", 0.9)

	time.Sleep(150 * time.Millisecond)
	if got := emitter.count(EventPartialTranscript); got != 0 {
		t.Errorf("Expected no partial transcripts while paused, got %d", got)
	}
	if got := emitter.count(EventFinalTranscript); got != 0 {
		t.Errorf("Expected no final transcripts while paused, got %d", got)
	}
	if status := session.Status(); status != SessionStatusPaused {
		t.Errorf("Expected paused status, got %q", status)
	}

	session.Resume()
	recognizer.emitFinal("復帰後の発話", 0.9)
	emitter.waitFor(t, EventFinalTranscript, 1)
}

func TestSessionPushAudioForwardsToStream(t *testing.T) {
	recognizer := &fakeRecognizer{}
	session, _ := newTestSession(t, recognizer, &scriptedDialogueModel{})
	session.StartListening(nil)

	session.PushAudio(make([]byte, 10))

	recognizer.mu.Lock()
	stream := recognizer.stream
	recognizer.mu.Unlock()
	stream.mu.Lock()
	written := stream.written
	stream.mu.Unlock()
	if written != 10 {
		t.Errorf("Expected 10 bytes forwarded, got %d", written)
	}
}

func TestSessionTextInputBypassesRecognition(t *testing.T) {
	model := &scriptedDialogueModel{question: "予算はいかがでしたか？"}
	session, emitter := newTestSession(t, &fakeRecognizer{}, model)
	session.Greet()

	session.HandleTextInput("案件は新社屋の建設です")
	emitter.waitFor(t, EventAIResponseText, 2)

	model.mu.Lock()
	extracts := model.extracts
	model.mu.Unlock()
	if extracts != 1 {
		t.Errorf("Expected one extraction for the typed turn, got %d", extracts)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	recognizer := &fakeRecognizer{}
	session, emitter := newTestSession(t, recognizer, &scriptedDialogueModel{})
	session.StartListening(nil)

	session.Close()
	session.Close()

	recognizer.mu.Lock()
	stream := recognizer.stream
	recognizer.mu.Unlock()
	stream.mu.Lock()
	stops := stream.stops
	stream.mu.Unlock()
	if stops != 1 {
		t.Errorf("Expected exactly one stream stop across repeated closes, got %d", stops)
	}

	before := emitter.count(EventAIResponseText)
	session.Greet()
	if got := emitter.count(EventAIResponseText); got != before {
		t.Error("Expected no events after teardown")
	}
	if status := session.Status(); status != SessionStatusCompleted {
		t.Errorf("Expected completed status after close, got %q", status)
	}
}

func TestSessionReportSnapshotSerializes(t *testing.T) {
	session, _ := newTestSession(t, &fakeRecognizer{}, &scriptedDialogueModel{})

	raw, err := json.Marshal(session.ReportSnapshot())
	if err != nil {
		t.Fatalf("Expected snapshot to marshal, got %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Expected round-trip, got %v", err)
	}
	for _, field := range entities.ReportFieldOrder {
		if _, ok := decoded[field]; !ok {
			t.Errorf("Expected field %q in the snapshot", field)
		}
	}
}
