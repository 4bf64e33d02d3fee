package dialogue

import (
	"fmt"
	"strings"
)

// User-facing reply templates. These are fixed strings, not generated text,
// so the outbound safety filter only ever needs to handle the RAG answer and
// the disclaimer logic.

const (
	greetingReply = "您好,我是智能分诊助手。请描述一下您或家人的症状,我会帮您判断需要如何就医。"

	askSymptomReply = "请问具体是什么症状?例如发烧、咳嗽、腹泻等,越具体越好。"

	dangerAlertReply = "您描述的情况可能比较危急,请立即前往最近的急诊科就诊或拨打120急救电话,不要等待线上评估。"

	prescriptionRefusal = "抱歉,我不能提供处方或具体用药剂量建议。请咨询医生或药师,按医嘱用药。"
)

// slotQuestions maps each entity key to the question that elicits it. The
// pipeline asks only the front of the missing-slot sequence each turn; the
// order comes from the rules collaborator and decides question order.
var slotQuestions = map[string]string{
	SlotAge:             "请问患者的年龄是多大?",
	SlotGender:          "请问患者的性别是?",
	SlotDuration:        "这种情况持续多长时间了?",
	SlotTemperature:     "现在测量的体温是多少度?",
	SlotMentalState:     "患者现在的精神状态怎么样?",
	SlotSeverity:        "症状的严重程度如何,是轻微还是比较严重?",
	SlotFrequency:       "症状发作的频率大概是怎样的?",
	SlotMedicationTaken: "目前有没有服用过什么药物?",
}

func slotQuestion(missing []string) string {
	if len(missing) == 0 {
		return askSymptomReply
	}
	if q, ok := slotQuestions[missing[0]]; ok {
		return q
	}
	return fmt.Sprintf("请补充一下%s的信息。", missing[0])
}

func triageReply(d *TriageDecision) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("根据您提供的信息,初步评估等级为:%s。\n", levelLabel(d.Level)))
	if d.Reason != "" {
		b.WriteString(fmt.Sprintf("评估依据:%s\n", d.Reason))
	}
	if d.Action != "" {
		b.WriteString(fmt.Sprintf("建议:%s", d.Action))
	}
	return b.String()
}

func levelLabel(level string) string {
	switch level {
	case "emergency":
		return "急诊(立即就医)"
	case "urgent":
		return "尽快就诊(24小时内)"
	case "routine":
		return "常规就诊"
	case "selfcare":
		return "居家观察"
	default:
		return level
	}
}
