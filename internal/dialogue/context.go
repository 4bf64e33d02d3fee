package dialogue

import (
	"encoding/json"
	"time"
)

// DialogueState is the phase of a triage conversation. Exactly one holds at
// any time, and only the state machine moves it.
type DialogueState string

const (
	StateInitial        DialogueState = "INITIAL"
	StateCollecting     DialogueState = "COLLECTING_SLOTS"
	StateReadyForTriage DialogueState = "READY_FOR_TRIAGE"
	StateTriageComplete DialogueState = "TRIAGE_COMPLETE"
	StateDangerDetected DialogueState = "DANGER_DETECTED"
	StateRAGQuery       DialogueState = "RAG_QUERY"
	StateGreeting       DialogueState = "GREETING"
)

// Intent is the classified purpose of a single user message.
type Intent string

const (
	IntentUnknown     Intent = ""
	IntentGreeting    Intent = "GREETING"
	IntentTriage      Intent = "TRIAGE"
	IntentSlotFilling Intent = "SLOT_FILLING"
	IntentConsult     Intent = "CONSULT"
	IntentMedication  Intent = "MEDICATION"
	IntentCare        Intent = "CARE"
)

// SlotKey names an entity the extractor may produce. The vocabulary is
// closed: merges drop anything outside it so extractor drift cannot pollute
// stored state.
const (
	SlotAge             = "age"
	SlotGender          = "gender"
	SlotDuration        = "duration"
	SlotTemperature     = "temperature"
	SlotMentalState     = "mental_state"
	SlotSymptom         = "symptom"
	SlotSeverity        = "severity"
	SlotFrequency       = "frequency"
	SlotMedicationTaken = "medication_taken"
)

var slotVocabulary = map[string]bool{
	SlotAge:             true,
	SlotGender:          true,
	SlotDuration:        true,
	SlotTemperature:     true,
	SlotMentalState:     true,
	SlotSymptom:         true,
	SlotSeverity:        true,
	SlotFrequency:       true,
	SlotMedicationTaken: true,
}

// ConversationContext is the aggregate root of a triage conversation. It is
// the unit of durability: everything needed to resume a conversation after a
// restart lives here, keyed by ConversationID.
type ConversationContext struct {
	ConversationID string        `json:"conversation_id"`
	UserID         string        `json:"user_id"`
	State          DialogueState `json:"dialogue_state"`
	CurrentIntent  Intent        `json:"current_intent,omitempty"`

	// ChiefComplaint is the user's first raw description of the problem,
	// preserved verbatim. Set once, never overwritten.
	ChiefComplaint string `json:"chief_complaint,omitempty"`

	// PrimarySymptom mirrors Slots["symptom"], normalized. Kept in sync by
	// MergeEntities.
	PrimarySymptom string `json:"primary_symptom,omitempty"`

	Slots map[string]string `json:"slots"`

	TriageLevel  string `json:"triage_level,omitempty"`
	TriageReason string `json:"triage_reason,omitempty"`
	TriageAction string `json:"triage_action,omitempty"`
	DangerSignal string `json:"danger_signal,omitempty"`

	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationContext returns a fresh context in INITIAL state.
func NewConversationContext(conversationID, userID string) *ConversationContext {
	now := time.Now().UTC()
	return &ConversationContext{
		ConversationID: conversationID,
		UserID:         userID,
		State:          StateInitial,
		Slots:          map[string]string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MergeEntities overwrites slots with the non-empty values of newEntities.
// Keys outside the slot vocabulary are dropped. A merge never deletes a key,
// and an empty map is a no-op. PrimarySymptom is refreshed whenever the
// symptom slot changes; nothing else on the context is touched — state,
// turn count and timestamps are the caller's job.
func (c *ConversationContext) MergeEntities(newEntities map[string]string) {
	if len(newEntities) == 0 {
		return
	}
	if c.Slots == nil {
		c.Slots = map[string]string{}
	}
	for key, value := range newEntities {
		if value == "" || !slotVocabulary[key] {
			continue
		}
		c.Slots[key] = value
	}
	if symptom, ok := c.Slots[SlotSymptom]; ok {
		c.PrimarySymptom = symptom
	}
}

// HasSymptom reports whether a primary symptom is known.
func (c *ConversationContext) HasSymptom() bool {
	return c.PrimarySymptom != ""
}

// SetChiefComplaint records the first raw problem description. Later calls
// are ignored.
func (c *ConversationContext) SetChiefComplaint(text string) {
	if c.ChiefComplaint == "" {
		c.ChiefComplaint = text
	}
}

// RepairPrimarySymptom repopulates PrimarySymptom from previously stored
// slots. Defensive: a context loaded from an older record may predate the
// mirror field.
func (c *ConversationContext) RepairPrimarySymptom() {
	if c.PrimarySymptom == "" {
		if symptom, ok := c.Slots[SlotSymptom]; ok {
			c.PrimarySymptom = symptom
		}
	}
}

// Marshal serializes the context for the durable store. Unmarshal is its
// lossless inverse.
func (c *ConversationContext) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalContext reconstructs a context from its stored form. Contexts that
// round-trip behave identically to the original under MergeEntities.
func UnmarshalContext(data []byte) (*ConversationContext, error) {
	var c ConversationContext
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Slots == nil {
		c.Slots = map[string]string{}
	}
	return &c, nil
}
