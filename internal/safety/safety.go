// Package safety applies the outbound text filter and the prescription-
// request gate. Neither touches dialogue state.
package safety

import "strings"

const disclaimer = "\n\n(以上内容仅供参考,不能替代医生的当面诊断。)"

// prescriptionPhrases trigger the hard gate before the pipeline runs: the
// assistant never answers dosage or prescription requests.
var prescriptionPhrases = []string{
	"开药", "开处方", "处方", "剂量", "吃多少", "用量", "一次吃几", "服用多少",
	"dosage", "prescribe", "prescription",
}

// disclaimerTriggers mark replies that carry medical assessment or
// medication content and therefore get the disclaimer appended.
var disclaimerTriggers = []string{"评估", "建议", "用药", "药"}

// blockedPhrases are redacted from any outbound reply.
var blockedPhrases = []string{"保证治愈", "百分之百", "无需就医"}

// Filter implements the dialogue.SafetyFilter contract.
type Filter struct{}

func NewFilter() *Filter {
	return &Filter{}
}

func (f *Filter) IsPrescriptionRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range prescriptionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Filter redacts blocked phrases and appends the disclaimer to replies with
// assessment or medication content.
func (f *Filter) Filter(message string) string {
	for _, phrase := range blockedPhrases {
		message = strings.ReplaceAll(message, phrase, "…")
	}
	if strings.HasSuffix(message, disclaimer) {
		return message
	}
	for _, trigger := range disclaimerTriggers {
		if strings.Contains(message, trigger) {
			return message + disclaimer
		}
	}
	return message
}
