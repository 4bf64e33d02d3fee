package dialogue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LegacyProcessor is the pre-refactor inline orchestrator, kept behind the
// PIPELINE_V2 flag as an interchangeable Processor implementation. It
// branches on intent directly instead of going through the state machine.
// TODO: delete once the v2 pipeline has been validated in production.
type LegacyProcessor struct {
	repo      Repository
	extractor Extractor
	danger    DangerChecker
	slots     SlotChecker
	decider   TriageDecider
	retriever Retriever
	safety    SafetyFilter
	logger    *zap.Logger
}

func NewLegacyProcessor(repo Repository, extractor Extractor, danger DangerChecker, slots SlotChecker, decider TriageDecider, retriever Retriever, safety SafetyFilter, logger *zap.Logger) *LegacyProcessor {
	return &LegacyProcessor{
		repo:      repo,
		extractor: extractor,
		danger:    danger,
		slots:     slots,
		decider:   decider,
		retriever: retriever,
		safety:    safety,
		logger:    logger,
	}
}

func (p *LegacyProcessor) ProcessMessage(ctx context.Context, userID, text, conversationID string) (*PipelineResult, error) {
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	conv, err := p.repo.Load(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		conv = NewConversationContext(conversationID, userID)
	} else if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}

	if p.safety.IsPrescriptionRequest(text) {
		return &PipelineResult{
			ConversationID: conversationID,
			Message:        p.safety.Filter(prescriptionRefusal),
		}, nil
	}

	intent, entities, err := p.extractor.Extract(ctx, text, conv.Slots)
	if err != nil {
		p.logger.Warn("legacy: extraction failed", zap.Error(err))
		intent = IntentUnknown
	}
	conv.MergeEntities(entities)
	conv.CurrentIntent = intent

	out := &PipelineResult{ConversationID: conversationID}

	switch intent {
	case IntentGreeting:
		conv.State = StateGreeting
		out.Message = greetingReply
	case IntentConsult, IntentCare, IntentMedication:
		conv.State = StateRAGQuery
		answer, sources, err := p.retriever.Query(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("knowledge query: %w", err)
		}
		out.Message = answer
		out.Sources = sources
	default:
		conv.SetChiefComplaint(text)
		if !conv.HasSymptom() {
			conv.State = StateCollecting
			out.Message = askSymptomReply
			break
		}
		triggered, signal, err := p.danger.Check(conv.Slots)
		if err != nil {
			return nil, fmt.Errorf("danger check: %w", err)
		}
		if triggered {
			conv.State = StateDangerDetected
			conv.DangerSignal = signal
			out.Message = dangerAlertReply
			break
		}
		missing, err := p.slots.Missing(conv.PrimarySymptom, conv.Slots)
		if err != nil {
			return nil, fmt.Errorf("missing-slot check: %w", err)
		}
		if len(missing) > 0 {
			conv.State = StateCollecting
			out.Message = slotQuestion(missing)
			break
		}
		decision, err := p.decider.Decide(ctx, conv.Slots)
		if err != nil {
			return nil, fmt.Errorf("triage decision: %w", err)
		}
		conv.TriageLevel = decision.Level
		conv.TriageReason = decision.Reason
		conv.TriageAction = decision.Action
		conv.State = StateTriageComplete
		out.Message = triageReply(decision)
	}

	conv.TurnCount++
	out.Message = p.safety.Filter(out.Message)

	if err := p.repo.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("persist context: %w", err)
	}
	return out, nil
}
