package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/domain/entities"
	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

const (
	// MaxQuestions caps the interview length regardless of report state.
	MaxQuestions = 12
	// MinQuestions must pass before a filled report completes the session.
	MinQuestions = 5
)

// PriorityFields orders still-empty fields by how urgently the responder
// should ask about them.
var PriorityFields = []string{
	entities.FieldCustomer,
	entities.FieldProject,
	entities.FieldNextAction,
	entities.FieldBudget,
	entities.FieldSchedule,
	entities.FieldParticipants,
	entities.FieldLocation,
	entities.FieldIssues,
}

// essentialAnyOf: completion requires customer and project plus at least
// one of these.
var essentialAnyOf = []string{
	entities.FieldNextAction,
	entities.FieldBudget,
	entities.FieldSchedule,
}

// Fixed assistant utterances.
const (
	GreetingMessage   = "お疲れさまです。本日の訪問について教えてください。まず、どちらのお客様を訪問されましたか？"
	CompletionMessage = "ありがとうございました。本日の報告はここまでで十分です。内容をまとめておきますので、画面でご確認ください。"
	RepromptMessage   = "すみません、うまく聞き取れませんでした。もう一度お願いできますか？"
)

// fallbackQuestions asks directly for a single field when the model is
// unavailable.
var fallbackQuestions = map[string]string{
	entities.FieldCustomer:     "お客様の名前を教えてください。",
	entities.FieldProject:      "どのような案件についての訪問でしたか？",
	entities.FieldNextAction:   "次のアクションは何になりますか？",
	entities.FieldBudget:       "予算についてはいかがでしたか？",
	entities.FieldSchedule:     "スケジュールについて教えてください。",
	entities.FieldParticipants: "先方はどなたが同席されていましたか？",
	entities.FieldLocation:     "どちらで打ち合わせをされましたか？",
	entities.FieldIssues:       "何か課題や懸念はありましたか？",
}

const fallbackGenericQuestion = "他に補足しておきたいことはありますか？"

// QuestionScript replaces adaptive questioning with a fixed, pre-authored
// question list. RequiredFields, when all filled, ends the script early.
type QuestionScript struct {
	Questions      []string `json:"questions"`
	RequiredFields []string `json:"required_fields,omitempty"`
	Completion     string   `json:"completion,omitempty"`
}

// ResponderInput is the per-turn context for the next assistant utterance.
// All report-derived fields are snapshots taken under the session lock.
type ResponderInput struct {
	Snapshot      map[string]interface{}
	EmptyFields   []string
	History       []entities.Message
	QuestionCount int
	LastUserText  string
}

// Reply is one assistant turn.
type Reply struct {
	Text      string
	Completed bool
}

// DialogueResponder produces the next assistant message and decides whether
// the session is complete. One responder belongs to one session; the
// session's single-flight turn pipeline serializes calls.
type DialogueResponder struct {
	model       repositories.DialogueModel
	logger      *zap.Logger
	script      *QuestionScript
	scriptIndex int
}

// NewDialogueResponder creates a responder in adaptive questioning mode.
func NewDialogueResponder(model repositories.DialogueModel, logger *zap.Logger) *DialogueResponder {
	return &DialogueResponder{
		model:  model,
		logger: logger,
	}
}

// UseScript switches the responder to scripted mode. Passing nil returns to
// adaptive questioning.
func (r *DialogueResponder) UseScript(script *QuestionScript) {
	r.script = script
	r.scriptIndex = 0
}

// Greeting returns the opening assistant turn.
func (r *DialogueResponder) Greeting() string {
	if r.script != nil && len(r.script.Questions) > 0 {
		r.scriptIndex = 1
		return r.script.Questions[0]
	}
	return GreetingMessage
}

// Respond produces the next assistant utterance. Completion short-circuits
// before any model call, so a completed session answers deterministically.
func (r *DialogueResponder) Respond(ctx context.Context, input ResponderInput) Reply {
	if r.script != nil {
		return r.respondScripted(input)
	}

	if r.isComplete(input) {
		return Reply{Text: CompletionMessage, Completed: true}
	}

	text, err := r.model.NextQuestion(ctx, repositories.ResponderRequest{
		Report:       input.Snapshot,
		EmptyFields:  input.EmptyFields,
		History:      entities.LastN(input.History, 6),
		LastUserText: input.LastUserText,
	})
	if err != nil || text == "" {
		if err != nil {
			r.logger.Warn("Question generation failed, using fallback",
				zap.Error(err))
		}
		return Reply{Text: r.fallbackQuestion(input.EmptyFields)}
	}
	return Reply{Text: text}
}

func (r *DialogueResponder) respondScripted(input ResponderInput) Reply {
	completion := r.script.Completion
	if completion == "" {
		completion = CompletionMessage
	}
	if r.scriptIndex >= len(r.script.Questions) {
		return Reply{Text: completion, Completed: true}
	}
	if len(r.script.RequiredFields) > 0 && r.requiredFilled(input.EmptyFields) {
		return Reply{Text: completion, Completed: true}
	}
	question := r.script.Questions[r.scriptIndex]
	r.scriptIndex++
	return Reply{Text: question}
}

func (r *DialogueResponder) requiredFilled(emptyFields []string) bool {
	empty := toSet(emptyFields)
	for _, field := range r.script.RequiredFields {
		if empty[field] {
			return false
		}
	}
	return true
}

func (r *DialogueResponder) isComplete(input ResponderInput) bool {
	if input.QuestionCount >= MaxQuestions {
		return true
	}
	if input.QuestionCount < MinQuestions {
		return false
	}
	empty := toSet(input.EmptyFields)
	if empty[entities.FieldCustomer] || empty[entities.FieldProject] {
		return false
	}
	for _, field := range essentialAnyOf {
		if !empty[field] {
			return true
		}
	}
	return false
}

func (r *DialogueResponder) fallbackQuestion(emptyFields []string) string {
	for _, field := range emptyFields {
		if q, ok := fallbackQuestions[field]; ok {
			return q
		}
	}
	return fallbackGenericQuestion
}

func toSet(fields []string) map[string]bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
