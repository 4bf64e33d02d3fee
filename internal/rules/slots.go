// Package rules holds the triage rule tables: which entities each symptom
// requires, which slot combinations trigger an escalation, and how a
// completed slot set maps to an urgency level.
package rules

import "symptom-triage-agent/internal/dialogue"

// requiredSlots lists, in asking order, the entities needed before a triage
// decision can be made for each symptom. The order is authoritative: the
// pipeline asks the front of the missing subset first.
var requiredSlots = map[string][]string{
	"fever":                {dialogue.SlotAge, dialogue.SlotTemperature, dialogue.SlotDuration, dialogue.SlotMentalState},
	"cough":                {dialogue.SlotAge, dialogue.SlotDuration, dialogue.SlotSeverity},
	"diarrhea":             {dialogue.SlotAge, dialogue.SlotDuration, dialogue.SlotFrequency},
	"headache":             {dialogue.SlotAge, dialogue.SlotDuration, dialogue.SlotSeverity},
	"vomiting":             {dialogue.SlotAge, dialogue.SlotDuration, dialogue.SlotFrequency},
	"rash":                 {dialogue.SlotAge, dialogue.SlotDuration},
	"convulsion":           {dialogue.SlotAge},
	"breathing_difficulty": {dialogue.SlotAge},
}

// defaultRequired covers symptoms without a dedicated table entry.
var defaultRequired = []string{dialogue.SlotAge, dialogue.SlotDuration}

// SlotChecker implements the missing-slot collaborator from the rule tables.
type SlotChecker struct{}

func NewSlotChecker() *SlotChecker {
	return &SlotChecker{}
}

// Missing returns the ordered subset of required slots not yet filled for
// symptom. An empty result signals "ready to triage".
func (c *SlotChecker) Missing(symptom string, slots map[string]string) ([]string, error) {
	if symptom == "" {
		return nil, nil
	}
	required, ok := requiredSlots[symptom]
	if !ok {
		required = defaultRequired
	}
	var missing []string
	for _, key := range required {
		if slots[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing, nil
}
