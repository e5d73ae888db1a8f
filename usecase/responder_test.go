package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/kaiwa-labs/kaiwa-server/domain/entities"
	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

type responderModel struct {
	question string
	err      error
	calls    int
}

func (m *responderModel) ExtractSlots(ctx context.Context, req repositories.ExtractionRequest) (*repositories.ExtractionResult, error) {
	return nil, nil
}

func (m *responderModel) NextQuestion(ctx context.Context, req repositories.ResponderRequest) (string, error) {
	m.calls++
	return m.question, m.err
}

func filledInput(questionCount int) ResponderInput {
	report := entities.NewReport()
	report.MergeValue(entities.FieldCustomer, "田中建設", nil)
	report.MergeValue(entities.FieldProject, "新社屋建設", nil)
	report.MergeValue(entities.FieldNextAction, "見積もり送付", nil)
	return ResponderInput{
		Snapshot:      report.Snapshot(),
		EmptyFields:   report.EmptyFields(PriorityFields),
		QuestionCount: questionCount,
	}
}

func TestRespondAsksModelWhileIncomplete(t *testing.T) {
	model := &responderModel{question: "予算はどのくらいでしたか？"}
	r := NewDialogueResponder(model, zaptest.NewLogger(t))

	reply := r.Respond(context.Background(), ResponderInput{
		Snapshot:      entities.NewReport().Snapshot(),
		EmptyFields:   PriorityFields,
		QuestionCount: 1,
	})
	if reply.Completed {
		t.Error("Expected the session to stay open")
	}
	if reply.Text != "予算はどのくらいでしたか？" {
		t.Errorf("Expected the model's question, got %q", reply.Text)
	}
}

func TestRespondCompletesAtMaxQuestions(t *testing.T) {
	model := &responderModel{question: "まだ聞きます"}
	r := NewDialogueResponder(model, zaptest.NewLogger(t))

	reply := r.Respond(context.Background(), ResponderInput{
		EmptyFields:   PriorityFields,
		QuestionCount: MaxQuestions,
	})
	if !reply.Completed {
		t.Fatal("Expected completion at the question cap")
	}
	if reply.Text != CompletionMessage {
		t.Errorf("Expected the fixed completion message, got %q", reply.Text)
	}
	if model.calls != 0 {
		t.Error("Expected no model call once the session is complete")
	}
}

func TestRespondCompletesWithEssentials(t *testing.T) {
	model := &responderModel{question: "次の質問"}
	r := NewDialogueResponder(model, zaptest.NewLogger(t))

	// Essentials filled but minimum question count not reached yet.
	reply := r.Respond(context.Background(), filledInput(MinQuestions-1))
	if reply.Completed {
		t.Error("Expected the interview to continue below the minimum")
	}

	reply = r.Respond(context.Background(), filledInput(MinQuestions))
	if !reply.Completed {
		t.Error("Expected completion once essentials and minimum are met")
	}
}

func TestRespondRequiresCustomerAndProject(t *testing.T) {
	report := entities.NewReport()
	report.MergeValue(entities.FieldCustomer, "田中建設", nil)
	report.MergeValue(entities.FieldNextAction, "見積もり送付", nil)

	model := &responderModel{question: "案件について教えてください"}
	r := NewDialogueResponder(model, zaptest.NewLogger(t))

	reply := r.Respond(context.Background(), ResponderInput{
		Snapshot:      report.Snapshot(),
		EmptyFields:   report.EmptyFields(PriorityFields),
		QuestionCount: MinQuestions + 2,
	})
	if reply.Completed {
		t.Error("Expected no completion while project is empty")
	}
}

func TestRespondFallsBackOnModelFailure(t *testing.T) {
	model := &responderModel{err: errors.New("model unavailable")}
	r := NewDialogueResponder(model, zaptest.NewLogger(t))

	reply := r.Respond(context.Background(), ResponderInput{
		EmptyFields:   []string{entities.FieldBudget, entities.FieldSchedule},
		QuestionCount: 2,
	})
	if reply.Completed {
		t.Error("Expected the session to stay open on fallback")
	}
	if reply.Text != fallbackQuestions[entities.FieldBudget] {
		t.Errorf("Expected the highest-priority fallback question, got %q", reply.Text)
	}

	// Empty model output also falls back.
	model2 := &responderModel{question: ""}
	r2 := NewDialogueResponder(model2, zaptest.NewLogger(t))
	reply = r2.Respond(context.Background(), ResponderInput{QuestionCount: 2})
	if reply.Text != fallbackGenericQuestion {
		t.Errorf("Expected the generic fallback with no known empty field, got %q", reply.Text)
	}
}

func TestGreeting(t *testing.T) {
	r := NewDialogueResponder(&responderModel{}, zaptest.NewLogger(t))
	if got := r.Greeting(); got != GreetingMessage {
		t.Errorf("Expected the fixed greeting, got %q", got)
	}
}

func TestScriptedModeWalksQuestions(t *testing.T) {
	model := &responderModel{question: "呼ばれないはず"}
	r := NewDialogueResponder(model, zaptest.NewLogger(t))
	r.UseScript(&QuestionScript{
		Questions:  []string{"最初の質問です。", "二番目の質問です。"},
		Completion: "スクリプト終了です。",
	})

	if got := r.Greeting(); got != "最初の質問です。" {
		t.Fatalf("Expected the script's first question as greeting, got %q", got)
	}

	reply := r.Respond(context.Background(), ResponderInput{QuestionCount: 1})
	if reply.Completed || reply.Text != "二番目の質問です。" {
		t.Errorf("Expected the second scripted question, got %+v", reply)
	}

	reply = r.Respond(context.Background(), ResponderInput{QuestionCount: 2})
	if !reply.Completed || reply.Text != "スクリプト終了です。" {
		t.Errorf("Expected scripted completion, got %+v", reply)
	}
	if model.calls != 0 {
		t.Error("Expected no model calls in scripted mode")
	}
}

func TestScriptedModeEndsEarlyWhenRequiredFilled(t *testing.T) {
	r := NewDialogueResponder(&responderModel{}, zaptest.NewLogger(t))
	r.UseScript(&QuestionScript{
		Questions:      []string{"質問1", "質問2", "質問3"},
		RequiredFields: []string{entities.FieldCustomer},
	})
	r.Greeting()

	// Customer still empty: script continues.
	reply := r.Respond(context.Background(), ResponderInput{
		EmptyFields: []string{entities.FieldCustomer},
	})
	if reply.Completed {
		t.Fatal("Expected script to continue while required fields are empty")
	}

	// Customer filled: script ends before exhausting questions.
	reply = r.Respond(context.Background(), ResponderInput{EmptyFields: nil})
	if !reply.Completed || reply.Text != CompletionMessage {
		t.Errorf("Expected early scripted completion, got %+v", reply)
	}
}
