package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaiwa-labs/kaiwa-server/domain/entities"
	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

const extractionSystemPrompt = `あなたは営業訪問報告の聞き取りアシスタントです。
ユーザーの発話から報告項目を抽出し、音声認識の誤りを文脈で修正してください。

報告項目(キーは英語のまま使うこと):
customer(顧客名), project(案件名), budget(予算), schedule(スケジュール),
next_action(次のアクション), participants(先方の同席者), location(場所),
issues(課題), decision_makers(決裁者), concerns(懸念), competition(競合)

必ず次のJSONだけを返すこと:
{
  "corrected_text": "認識誤りを直した発話全文",
  "slots": {"抽出できた項目のみ": "値"},
  "corrections": [{"field": "項目", "old_value": "旧値", "new_value": "新値"}]
}

ルール:
- slotsには今回の発話で新しく言及された項目だけを入れる。
- 既に埋まっている項目と同じ内容は繰り返さない。
- 「〜ではなく」「間違えました」など訂正の発話のときだけcorrectionsを使う。
- 相対的な日付(「30日まで」など)は現在の年月を使って「YYYY-MM-DD」形式に直す。
- 抽出できるものがなければslotsは空オブジェクトにする。`

const responderSystemPrompt = `あなたは営業訪問報告の聞き取りアシスタントです。
直前のユーザーの発話を一言で受け止めてから、まだ埋まっていない報告項目のうち
優先度が最も高いものについて1つだけ質問してください。

ルール:
- 既に埋まっている項目については絶対に再質問しない。
- 質問は1文、自然な話し言葉で、前置きや番号は付けない。
- 回答は質問文のみを返す。`

// buildExtractionPrompt assembles the single extraction prompt for a turn.
func buildExtractionPrompt(req repositories.ExtractionRequest) (string, error) {
	reportJSON, err := json.Marshal(req.Report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report context: %w", err)
	}

	var b strings.Builder
	b.WriteString(extractionSystemPrompt)
	fmt.Fprintf(&b, "\n\n現在の年月: %d年%d月\n", req.Year, req.Month)
	fmt.Fprintf(&b, "現在の報告内容: %s\n", reportJSON)
	if req.SuspectedCorrection {
		b.WriteString("注意: この発話には訂正の意図が含まれている可能性が高い。correctionsの抽出を検討すること。\n")
	}
	fmt.Fprintf(&b, "\nユーザーの発話: %s", req.Text)
	return b.String(), nil
}

// buildResponderPrompt assembles the next-question prompt.
func buildResponderPrompt(req repositories.ResponderRequest) (string, error) {
	reportJSON, err := json.Marshal(req.Report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report context: %w", err)
	}

	var b strings.Builder
	b.WriteString(responderSystemPrompt)
	fmt.Fprintf(&b, "\n\n現在の報告内容: %s\n", reportJSON)
	fmt.Fprintf(&b, "未入力の項目(優先度順): %s\n", strings.Join(req.EmptyFields, ", "))
	if len(req.History) > 0 {
		b.WriteString("\n直近の会話:\n")
		for _, msg := range req.History {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}
	fmt.Fprintf(&b, "\n直前のユーザーの発話: %s", req.LastUserText)
	return b.String(), nil
}

// parseExtractionResponse decodes the model's JSON answer, tolerating a
// markdown code fence around it.
func parseExtractionResponse(raw string) (*repositories.ExtractionResult, error) {
	cleaned := stripCodeFence(raw)

	var payload struct {
		CorrectedText string                 `json:"corrected_text"`
		Slots         map[string]interface{} `json:"slots"`
		Corrections   []struct {
			Field    string `json:"field"`
			OldValue string `json:"old_value"`
			NewValue string `json:"new_value"`
		} `json:"corrections"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}

	result := &repositories.ExtractionResult{
		CorrectedText: strings.TrimSpace(payload.CorrectedText),
		Slots:         payload.Slots,
	}
	if result.Slots == nil {
		result.Slots = map[string]interface{}{}
	}
	for _, c := range payload.Corrections {
		if c.Field == "" || strings.TrimSpace(c.NewValue) == "" {
			continue
		}
		result.Corrections = append(result.Corrections, entities.Correction{
			Field:    c.Field,
			OldValue: c.OldValue,
			NewValue: c.NewValue,
		})
	}
	return result, nil
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
