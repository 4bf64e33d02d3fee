// Package nlu turns free-text patient messages into an intent label and a
// flat entity map consumed by the dialogue pipeline.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"symptom-triage-agent/internal/dialogue"
)

const extractionSystemPrompt = `你是医疗分诊系统的信息抽取模块。对用户消息输出JSON:
{"intent": "...", "entities": {...}}
intent 取值: GREETING, TRIAGE, SLOT_FILLING, CONSULT, MEDICATION, CARE。
entities 的键只允许: age, gender, duration, temperature, mental_state, symptom, severity, frequency, medication_taken。
症状统一为规范词,如 fever, cough, diarrhea, headache, rash, vomiting。
只输出JSON,不要输出其他内容。`

// OpenAIExtractor classifies intent and extracts entities with a chat model.
// API credentials and the model name come from the environment.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

// NewOpenAIExtractor reads OPENAI_API_KEY and OPENAI_MODEL_NLU from the
// environment and falls back to a sensible default model.
func NewOpenAIExtractor() *OpenAIExtractor {
	model := os.Getenv("OPENAI_MODEL_NLU")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIExtractor{
		client: openai.NewClient(os.Getenv("OPENAI_API_KEY")),
		model:  model,
	}
}

type extractionPayload struct {
	Intent   string            `json:"intent"`
	Entities map[string]string `json:"entities"`
}

// Extract calls the chat completion API in JSON mode. Any transport error or
// malformed payload is returned as an error; the pipeline degrades on its
// side rather than failing the turn.
func (e *OpenAIExtractor) Extract(ctx context.Context, text string, profile map[string]string) (dialogue.Intent, map[string]string, error) {
	userContent := text
	if len(profile) > 0 {
		known, _ := json.Marshal(profile)
		userContent = fmt.Sprintf("已知信息: %s\n用户消息: %s", known, text)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		Temperature:    0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return dialogue.IntentUnknown, nil, fmt.Errorf("extraction request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return dialogue.IntentUnknown, nil, fmt.Errorf("extraction: empty response")
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return dialogue.IntentUnknown, nil, fmt.Errorf("extraction: malformed payload: %w", err)
	}

	intent, err := parseIntent(payload.Intent)
	if err != nil {
		return dialogue.IntentUnknown, nil, err
	}
	return intent, payload.Entities, nil
}

func parseIntent(label string) (dialogue.Intent, error) {
	switch dialogue.Intent(strings.ToUpper(strings.TrimSpace(label))) {
	case dialogue.IntentGreeting:
		return dialogue.IntentGreeting, nil
	case dialogue.IntentTriage:
		return dialogue.IntentTriage, nil
	case dialogue.IntentSlotFilling:
		return dialogue.IntentSlotFilling, nil
	case dialogue.IntentConsult:
		return dialogue.IntentConsult, nil
	case dialogue.IntentMedication:
		return dialogue.IntentMedication, nil
	case dialogue.IntentCare:
		return dialogue.IntentCare, nil
	}
	return dialogue.IntentUnknown, fmt.Errorf("extraction: unknown intent label %q", label)
}
