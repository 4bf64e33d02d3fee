package nlu

import (
	"context"
	"regexp"
	"strings"

	"symptom-triage-agent/internal/dialogue"
)

// KeywordExtractor is a deterministic rule-based extractor. It backs local
// development and tests, and serves as the wiring default when no OpenAI key
// is configured.
type KeywordExtractor struct{}

func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

var (
	reAgeYears     = regexp.MustCompile(`(\d+)\s*岁`)
	reAgeMonths    = regexp.MustCompile(`(?:宝宝|孩子|婴儿)\s*(\d+)\s*个月|(\d+)\s*个月大`)
	reTemperature  = regexp.MustCompile(`(\d{2}(?:\.\d)?)\s*(?:度|℃|°C)`)
	reDuration     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(天|日|小时|周|星期)`)
	greetingWords  = []string{"你好", "您好", "在吗", "hello", "hi", "早上好", "晚上好"}
	consultWords   = []string{"是什么原因", "为什么", "怎么回事", "什么原因", "正常吗"}
	careWords      = []string{"怎么护理", "如何护理", "怎么照顾", "注意什么", "怎么办"}
	medicationWord = []string{"吃什么药", "用什么药", "什么药好"}
)

var symptomLexicon = map[string]string{
	"发烧":   "fever",
	"发热":   "fever",
	"咳嗽":   "cough",
	"拉肚子":  "diarrhea",
	"腹泻":   "diarrhea",
	"头疼":   "headache",
	"头痛":   "headache",
	"呕吐":   "vomiting",
	"皮疹":   "rash",
	"出疹":   "rash",
	"抽搐":   "convulsion",
	"惊厥":   "convulsion",
	"呼吸困难": "breathing_difficulty",
	"fever": "fever",
	"cough": "cough",
}

// Extract never fails; it classifies by keyword and pulls entities with
// regular expressions over a small symptom lexicon.
func (e *KeywordExtractor) Extract(_ context.Context, text string, _ map[string]string) (dialogue.Intent, map[string]string, error) {
	lower := strings.ToLower(text)
	entities := map[string]string{}

	for keyword, normalized := range symptomLexicon {
		if strings.Contains(lower, keyword) {
			entities[dialogue.SlotSymptom] = normalized
			break
		}
	}
	if m := reTemperature.FindStringSubmatch(text); m != nil {
		entities[dialogue.SlotTemperature] = m[1]
	}
	if m := reAgeYears.FindStringSubmatch(text); m != nil {
		entities[dialogue.SlotAge] = m[1] + "岁"
	} else if m := reAgeMonths.FindStringSubmatch(text); m != nil {
		months := m[1]
		if months == "" {
			months = m[2]
		}
		entities[dialogue.SlotAge] = months + "个月"
	}
	// Months read as an age above must not double as a duration.
	if m := reDuration.FindStringSubmatch(text); m != nil {
		entities[dialogue.SlotDuration] = m[1] + m[2]
	}
	if strings.Contains(text, "精神不好") || strings.Contains(text, "精神差") ||
		strings.Contains(text, "没精神") || strings.Contains(text, "嗜睡") {
		entities[dialogue.SlotMentalState] = "poor"
	} else if strings.Contains(text, "精神好") || strings.Contains(text, "精神不错") {
		entities[dialogue.SlotMentalState] = "good"
	}

	return classify(lower, entities), entities, nil
}

func classify(lower string, entities map[string]string) dialogue.Intent {
	if len(entities) == 0 {
		for _, w := range greetingWords {
			if strings.Contains(lower, w) {
				return dialogue.IntentGreeting
			}
		}
	}
	for _, w := range medicationWord {
		if strings.Contains(lower, w) {
			return dialogue.IntentMedication
		}
	}
	for _, w := range consultWords {
		if strings.Contains(lower, w) {
			return dialogue.IntentConsult
		}
	}
	for _, w := range careWords {
		if strings.Contains(lower, w) {
			return dialogue.IntentCare
		}
	}
	if _, ok := entities[dialogue.SlotSymptom]; ok {
		return dialogue.IntentTriage
	}
	if len(entities) > 0 {
		return dialogue.IntentSlotFilling
	}
	return dialogue.IntentTriage
}
