package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Collaborator interfaces are declared here, at the consumer, to decouple the
// pipeline from the concrete rule tables, NLU client and retriever.

// Extractor turns free text into an intent label and a flat entity map.
type Extractor interface {
	Extract(ctx context.Context, text string, profile map[string]string) (Intent, map[string]string, error)
}

// DangerChecker evaluates the collected slots against escalation rules.
type DangerChecker interface {
	Check(slots map[string]string) (triggered bool, signal string, err error)
}

// SlotChecker returns the ordered list of still-required entity keys for the
// given symptom. An empty list signals "ready to triage". The returned order
// is authoritative per call; it is never diffed against a prior turn.
type SlotChecker interface {
	Missing(symptom string, slots map[string]string) ([]string, error)
}

// TriageDecision is the final assessed urgency for a conversation.
type TriageDecision struct {
	Level  string
	Reason string
	Action string
}

// TriageDecider produces the triage decision from the full slot map.
type TriageDecider interface {
	Decide(ctx context.Context, slots map[string]string) (*TriageDecision, error)
}

// Source is a citation attached to a knowledge-base answer.
type Source struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// Retriever answers informational questions from the knowledge base.
type Retriever interface {
	Query(ctx context.Context, text string) (answer string, sources []Source, err error)
}

// TranscriptStore appends raw chat messages. Appends are fire-and-forget;
// the transcript is independent of context persistence.
type TranscriptStore interface {
	Append(ctx context.Context, conversationID, role, text string)
}

// SafetyFilter gates prescription requests and filters outbound replies.
// Filter may redact or append disclaimers but never touches dialogue state.
type SafetyFilter interface {
	IsPrescriptionRequest(text string) bool
	Filter(message string) string
}

// PipelineResult is the fully-computed outcome of one turn. It supports both
// a single synchronous response and a chunked rendering of the same message
// text; chunking is a transport concern, nothing is generated incrementally.
type PipelineResult struct {
	ConversationID string            `json:"conversation_id"`
	Message        string            `json:"message"`
	Sources        []Source          `json:"sources,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Processor is the pipeline boundary contract. The legacy inline orchestrator
// and the new pipeline are interchangeable implementations selected at wiring
// time (PIPELINE_V2 flag).
type Processor interface {
	ProcessMessage(ctx context.Context, userID, text, conversationID string) (*PipelineResult, error)
}

// Pipeline sequences extraction, entity merge, danger and slot checks, the
// state machine and the resulting action, then persists the context.
type Pipeline struct {
	repo       Repository
	extractor  Extractor
	danger     DangerChecker
	slots      SlotChecker
	decider    TriageDecider
	retriever  Retriever
	transcript TranscriptStore
	safety     SafetyFilter
	logger     *zap.Logger

	// Messages for the same conversation must run strictly one at a time:
	// merge and transition are read-modify-write over shared context.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewPipeline wires the orchestrator with its collaborators.
func NewPipeline(repo Repository, extractor Extractor, danger DangerChecker, slots SlotChecker, decider TriageDecider, retriever Retriever, transcript TranscriptStore, safety SafetyFilter, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		repo:       repo,
		extractor:  extractor,
		danger:     danger,
		slots:      slots,
		decider:    decider,
		retriever:  retriever,
		transcript: transcript,
		safety:     safety,
		logger:     logger,
		locks:      map[string]*sync.Mutex{},
	}
}

func (p *Pipeline) conversationLock(conversationID string) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	if lock, ok := p.locks[conversationID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	p.locks[conversationID] = lock
	return lock
}

// ProcessMessage runs one full turn. Extraction failure degrades to an
// unknown intent; danger-check, slot-check, triage and persistence failures
// abort the turn without persisting, so a retry resumes from the last
// committed state.
func (p *Pipeline) ProcessMessage(ctx context.Context, userID, text, conversationID string) (*PipelineResult, error) {
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	lock := p.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := p.loadOrCreate(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	// Hard gate, independent of the state machine: dosage and prescription
	// requests get a fixed refusal and never reach extraction. The turn
	// still counts and is persisted.
	if p.safety.IsPrescriptionRequest(text) {
		p.logger.Info("prescription request blocked",
			zap.String("conversation_id", conversationID))
		conv.TurnCount++
		if err := p.repo.Save(ctx, conv); err != nil {
			return nil, fmt.Errorf("persist context: %w", err)
		}
		reply := p.safety.Filter(prescriptionRefusal)
		p.transcript.Append(ctx, conversationID, "user", text)
		p.transcript.Append(ctx, conversationID, "assistant", reply)
		return &PipelineResult{
			ConversationID: conversationID,
			Message:        reply,
			Metadata:       map[string]string{"gate": "prescription"},
		}, nil
	}

	intent, entities, err := p.extractor.Extract(ctx, text, conv.Slots)
	if err != nil {
		// Recoverable: proceed with unknown intent and no entities
		// rather than failing the whole turn.
		p.logger.Warn("extraction failed, degrading to unknown intent",
			zap.String("conversation_id", conversationID), zap.Error(err))
		intent = IntentUnknown
		entities = nil
	}

	conv.MergeEntities(entities)
	conv.CurrentIntent = intent

	if intent == IntentTriage || intent == IntentSlotFilling {
		conv.SetChiefComplaint(text)
	}
	conv.RepairPrimarySymptom()

	dangerAlert, signal, err := p.danger.Check(conv.Slots)
	if err != nil {
		// No safe default exists: a failed danger check must never
		// resolve to "no danger".
		return nil, fmt.Errorf("danger check: %w", err)
	}

	missing, err := p.slots.Missing(conv.PrimarySymptom, conv.Slots)
	if err != nil {
		return nil, fmt.Errorf("missing-slot check: %w", err)
	}

	result := Transition(conv, intent, dangerAlert, missing, conv.HasSymptom())
	conv.State = result.NewState

	out := &PipelineResult{
		ConversationID: conversationID,
		Metadata: map[string]string{
			"dialogue_state": string(result.NewState),
			"action":         string(result.Action),
		},
	}

	switch result.Action {
	case ActionSendGreeting:
		out.Message = greetingReply
	case ActionAskForSymptom:
		out.Message = askSymptomReply
	case ActionSendDangerAlert:
		conv.DangerSignal = signal
		out.Message = dangerAlertReply
		out.Metadata["danger_signal"] = signal
	case ActionAskMissingSlots:
		out.Message = slotQuestion(result.MissingSlots)
		out.Metadata["missing_slots"] = strings.Join(result.MissingSlots, ",")
	case ActionMakeTriageDecision:
		decision, err := p.decider.Decide(ctx, conv.Slots)
		if err != nil {
			return nil, fmt.Errorf("triage decision: %w", err)
		}
		conv.TriageLevel = decision.Level
		conv.TriageReason = decision.Reason
		conv.TriageAction = decision.Action
		conv.State = StateTriageComplete
		out.Metadata["dialogue_state"] = string(StateTriageComplete)
		out.Metadata["triage_level"] = decision.Level
		out.Message = triageReply(decision)
	case ActionRunRAGQuery:
		answer, sources, err := p.retriever.Query(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("knowledge query: %w", err)
		}
		out.Message = answer
		out.Sources = sources
	default:
		// The state machine is total over declared intents; anything
		// else is a programming error.
		return nil, fmt.Errorf("unhandled action %q", result.Action)
	}

	conv.TurnCount++

	out.Message = p.safety.Filter(out.Message)

	// All mutations are complete before the write: a cancelled render of
	// the reply cannot leave the context half-updated.
	if err := p.repo.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("persist context: %w", err)
	}

	p.transcript.Append(ctx, conversationID, "user", text)
	p.transcript.Append(ctx, conversationID, "assistant", out.Message)

	p.logger.Info("turn processed",
		zap.String("conversation_id", conversationID),
		zap.String("intent", string(intent)),
		zap.String("action", string(result.Action)),
		zap.Int("turn", conv.TurnCount))

	return out, nil
}

func (p *Pipeline) loadOrCreate(ctx context.Context, conversationID, userID string) (*ConversationContext, error) {
	conv, err := p.repo.Load(ctx, conversationID)
	if err == nil {
		return conv, nil
	}
	if errors.Is(err, ErrNotFound) {
		return NewConversationContext(conversationID, userID), nil
	}
	// A transient read error is not absence; treating it as a fresh
	// conversation would silently discard history.
	return nil, fmt.Errorf("load context: %w", err)
}
