package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"symptom-triage-agent/internal/dialogue"
)

// Urgency levels, most to least urgent.
const (
	LevelEmergency = "emergency"
	LevelUrgent    = "urgent"
	LevelRoutine   = "routine"
	LevelSelfcare  = "selfcare"
)

// TriageDecider maps a completed slot set to an urgency level, a reason and
// a recommended action. It runs only after the danger check has passed, so
// the emergency band here covers combinations that are serious without being
// immediate escalations.
type TriageDecider struct{}

func NewTriageDecider() *TriageDecider {
	return &TriageDecider{}
}

func (d *TriageDecider) Decide(_ context.Context, slots map[string]string) (*dialogue.TriageDecision, error) {
	symptom := slots[dialogue.SlotSymptom]
	if symptom == "" {
		return nil, fmt.Errorf("triage decision requires a symptom")
	}

	switch symptom {
	case "fever":
		return decideFever(slots), nil
	case "diarrhea", "vomiting":
		return decideFluidLoss(symptom, slots), nil
	default:
		return decideGeneric(symptom, slots), nil
	}
}

func decideFever(slots map[string]string) *dialogue.TriageDecision {
	temp, _ := strconv.ParseFloat(strings.TrimSpace(slots[dialogue.SlotTemperature]), 64)
	poorMental := slots[dialogue.SlotMentalState] == "poor"
	longRunning := durationDays(slots[dialogue.SlotDuration]) >= 3

	switch {
	case temp >= 39.0 && poorMental:
		return &dialogue.TriageDecision{
			Level:  LevelUrgent,
			Reason: "高热伴精神状态差",
			Action: "建议24小时内就诊,期间注意补水和物理降温",
		}
	case temp >= 38.5 && (poorMental || longRunning):
		return &dialogue.TriageDecision{
			Level:  LevelUrgent,
			Reason: "中高热伴精神不佳或持续时间较长",
			Action: "建议24小时内就诊",
		}
	case temp >= 38.5:
		return &dialogue.TriageDecision{
			Level:  LevelRoutine,
			Reason: "中高热,一般状态尚可",
			Action: "建议门诊就诊,居家期间监测体温",
		}
	default:
		return &dialogue.TriageDecision{
			Level:  LevelSelfcare,
			Reason: "低热且一般状态良好",
			Action: "可先居家观察,补充水分,体温升高或精神变差时及时就医",
		}
	}
}

func decideFluidLoss(symptom string, slots map[string]string) *dialogue.TriageDecision {
	frequency := slots[dialogue.SlotFrequency]
	frequent := strings.ContainsAny(frequency, "多频") || parseLeadingInt(frequency) >= 6

	if frequent || durationDays(slots[dialogue.SlotDuration]) >= 2 {
		return &dialogue.TriageDecision{
			Level:  LevelUrgent,
			Reason: "呕吐或腹泻次数较多,存在脱水风险",
			Action: "建议24小时内就诊,注意口服补液",
		}
	}
	return &dialogue.TriageDecision{
		Level:  LevelRoutine,
		Reason: "症状次数不多,暂无明显脱水表现",
		Action: "建议门诊就诊,居家注意补液和饮食",
	}
}

func decideGeneric(symptom string, slots map[string]string) *dialogue.TriageDecision {
	if slots[dialogue.SlotSeverity] == "severe" || strings.Contains(slots[dialogue.SlotSeverity], "严重") {
		return &dialogue.TriageDecision{
			Level:  LevelUrgent,
			Reason: "症状程度较重",
			Action: "建议24小时内就诊",
		}
	}
	return &dialogue.TriageDecision{
		Level:  LevelRoutine,
		Reason: fmt.Sprintf("%s症状,程度一般", symptom),
		Action: "建议门诊就诊",
	}
}

// durationDays parses values like "1天", "3日", "2周", "12小时".
func durationDays(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	for _, unit := range []struct {
		suffix string
		days   float64
	}{{"小时", 1.0 / 24}, {"星期", 7}, {"周", 7}, {"天", 1}, {"日", 1}} {
		if idx := strings.Index(raw, unit.suffix); idx > 0 {
			if n, err := strconv.ParseFloat(raw[:idx], 64); err == nil {
				return n * unit.days
			}
		}
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return 0
}

func parseLeadingInt(raw string) int {
	digits := ""
	for _, r := range strings.TrimSpace(raw) {
		if r < '0' || r > '9' {
			break
		}
		digits += string(r)
	}
	n, _ := strconv.Atoi(digits)
	return n
}
