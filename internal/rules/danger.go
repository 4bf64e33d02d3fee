package rules

import (
	"strconv"
	"strings"

	"symptom-triage-agent/internal/dialogue"
)

// dangerSymptoms are symptom values that warrant escalation on their own.
var dangerSymptoms = map[string]string{
	"convulsion":           "convulsion",
	"breathing_difficulty": "breathing_difficulty",
	"bleeding":             "bleeding",
}

// highFeverThreshold is the axillary temperature above which a fever is
// escalated regardless of other slots.
const highFeverThreshold = 40.0

// DangerChecker implements the danger-signal collaborator.
type DangerChecker struct{}

func NewDangerChecker() *DangerChecker {
	return &DangerChecker{}
}

// Check evaluates the collected slots against the escalation rules and
// returns the name of the first triggered rule.
func (c *DangerChecker) Check(slots map[string]string) (bool, string, error) {
	if signal, ok := dangerSymptoms[slots[dialogue.SlotSymptom]]; ok {
		return true, signal, nil
	}

	if raw := slots[dialogue.SlotTemperature]; raw != "" {
		if temp, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && temp >= highFeverThreshold {
			return true, "high_fever", nil
		}
	}

	mental := slots[dialogue.SlotMentalState]
	if mental == "unconscious" || mental == "unresponsive" ||
		strings.Contains(mental, "昏迷") || strings.Contains(mental, "叫不醒") {
		return true, "unresponsive", nil
	}

	// Infants under three months with any fever go straight to escalation.
	if slots[dialogue.SlotSymptom] == "fever" {
		if months, ok := ageInMonths(slots[dialogue.SlotAge]); ok && months < 3 {
			return true, "young_infant_fever", nil
		}
	}

	return false, "", nil
}

// ageInMonths parses age values like "8个月", "2岁", "18个月大".
func ageInMonths(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if idx := strings.Index(raw, "个月"); idx > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(raw[:idx])); err == nil {
			return n, true
		}
	}
	if idx := strings.Index(raw, "岁"); idx > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(raw[:idx])); err == nil {
			return n * 12, true
		}
	}
	if n, err := strconv.Atoi(raw); err == nil {
		// Bare numbers are read as years.
		return n * 12, true
	}
	return 0, false
}
