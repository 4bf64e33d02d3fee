package dialogue

// Action is what the pipeline must do next. The orchestrator dispatches
// exhaustively over these; a new action is a compile-visible gap there, not a
// silent fallthrough.
type Action string

const (
	ActionSendGreeting       Action = "SEND_GREETING"
	ActionAskForSymptom      Action = "ASK_FOR_SYMPTOM"
	ActionSendDangerAlert    Action = "SEND_DANGER_ALERT"
	ActionAskMissingSlots    Action = "ASK_MISSING_SLOTS"
	ActionMakeTriageDecision Action = "MAKE_TRIAGE_DECISION"
	ActionRunRAGQuery        Action = "RUN_RAG_QUERY"
)

// TransitionResult pairs the next dialogue state with the action that fires
// it. MissingSlots is populated only for ActionAskMissingSlots and is not
// persisted with the context.
type TransitionResult struct {
	NewState     DialogueState
	Action       Action
	MissingSlots []string
}

// Transition is the single decision point for "what should the assistant do
// next". Pure: no I/O, no mutation of ctx. The rule order is a deliberate
// priority policy, first match wins:
//
//  1. greeting short-circuits everything
//  2. informational intents (consult/care/medication) bypass triage
//  3. triage and slot-filling share one path:
//     no symptom → ask for it; danger → alert; missing slots → ask them
//     in the given order; otherwise → decide.
//
// The danger check only applies once a symptom is known, and preempts slot
// completeness. TRIAGE and SLOT_FILLING are aliases into the same branch so
// there is exactly one code path for "am I ready to triage".
func Transition(ctx *ConversationContext, intent Intent, dangerAlert bool, missingSlots []string, hasSymptom bool) TransitionResult {
	if intent == IntentGreeting {
		return TransitionResult{NewState: StateGreeting, Action: ActionSendGreeting}
	}

	if intent == IntentConsult || intent == IntentCare || intent == IntentMedication {
		return TransitionResult{NewState: StateRAGQuery, Action: ActionRunRAGQuery}
	}

	if !hasSymptom {
		return TransitionResult{NewState: StateCollecting, Action: ActionAskForSymptom}
	}
	if dangerAlert {
		return TransitionResult{NewState: StateDangerDetected, Action: ActionSendDangerAlert}
	}
	if len(missingSlots) > 0 {
		return TransitionResult{
			NewState:     StateCollecting,
			Action:       ActionAskMissingSlots,
			MissingSlots: missingSlots,
		}
	}
	return TransitionResult{NewState: StateReadyForTriage, Action: ActionMakeTriageDecision}
}
