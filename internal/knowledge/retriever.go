// Package knowledge answers informational questions (consult, medication,
// care intents) from a small built-in care-advice corpus, optionally
// rephrased by a chat model.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"symptom-triage-agent/internal/dialogue"
)

// document is one knowledge-base entry matched by keyword.
type document struct {
	Title    string
	Keywords []string
	Body     string
}

var corpus = []document{
	{
		Title:    "儿童发热家庭护理",
		Keywords: []string{"发烧", "发热", "体温", "fever"},
		Body:     "体温38.5度以下且精神良好时可先物理降温并多补充水分;持续高热、精神萎靡或伴抽搐时应尽快就医。",
	},
	{
		Title:    "腹泻与补液",
		Keywords: []string{"腹泻", "拉肚子", "脱水"},
		Body:     "腹泻期间重点是预防脱水,可少量多次口服补液盐;出现尿量明显减少、口唇干燥或精神差提示脱水,需要就医。",
	},
	{
		Title:    "咳嗽的观察要点",
		Keywords: []string{"咳嗽", "cough"},
		Body:     "咳嗽伴呼吸急促、口唇发绀或影响进食睡眠时应就诊;一般干咳可保持室内湿度并观察变化。",
	},
	{
		Title:    "用药安全常识",
		Keywords: []string{"药", "用药", "吃药"},
		Body:     "儿童用药须严格按体重和医嘱,不建议自行联合使用多种感冒药;任何剂量问题请咨询医生或药师。",
	},
}

const answerSystemPrompt = "你是医疗咨询助手。基于提供的资料,用简洁的中文回答用户问题,不要给出处方或剂量。"

// Retriever answers a question with matched corpus excerpts. When an OpenAI
// client is configured the answer text is generated over the excerpts;
// otherwise the excerpts themselves form the answer.
type Retriever struct {
	client *openai.Client
	model  string
}

// NewRetriever builds a Retriever. A nil client (no API key) is valid and
// selects the offline rendering.
func NewRetriever() *Retriever {
	apiKey := os.Getenv("OPENAI_API_KEY")
	r := &Retriever{model: os.Getenv("OPENAI_MODEL_CHAT")}
	if r.model == "" {
		r.model = "gpt-4o-mini"
	}
	if apiKey != "" {
		r.client = openai.NewClient(apiKey)
	}
	return r
}

func (r *Retriever) Query(ctx context.Context, text string) (string, []dialogue.Source, error) {
	docs := match(text)
	sources := make([]dialogue.Source, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, dialogue.Source{Title: d.Title, Excerpt: d.Body})
	}

	if r.client == nil {
		return offlineAnswer(docs), sources, nil
	}

	var sb strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&sb, "【%s】%s\n", d.Title, d.Body)
	}
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("资料:\n%s\n问题:%s", sb.String(), text)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", nil, fmt.Errorf("knowledge answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return offlineAnswer(docs), sources, nil
	}
	return resp.Choices[0].Message.Content, sources, nil
}

func match(text string) []document {
	var hits []document
	for _, d := range corpus {
		for _, kw := range d.Keywords {
			if strings.Contains(text, kw) {
				hits = append(hits, d)
				break
			}
		}
	}
	return hits
}

func offlineAnswer(docs []document) string {
	if len(docs) == 0 {
		return "这个问题我暂时没有足够的资料,建议咨询医生获取专业意见。"
	}
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(d.Body)
	}
	return sb.String()
}
