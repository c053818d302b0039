package steps

import (
	"context"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/fallback"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
	"github.com/healthconcierge/wa-concierge/pkg/router"
)

// escalationLookback bounds how many prior turns are scanned for an
// escalation cue alongside the current message.
const escalationLookback = 5

// EscalationCheckStep hands the conversation to a human the moment the
// patient asks for one, without waiting for the LLM to notice. It reuses
// the router's handoff-intent patterns as the keyword heuristic, rather
// than maintaining a second copy of the same phrase list.
type EscalationCheckStep struct {
	Store convstore.ConversationStore
}

func (s *EscalationCheckStep) Name() string { return "escalation_check" }

func (s *EscalationCheckStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	language := pc.Session.Language
	if language == "" {
		language = "en"
	}

	if !s.triggered(pc, language) {
		return true, nil
	}

	pc.Session.State.ControlMode = convstate.ControlHuman
	pc.Session.State.FlowState = convstate.FlowEscalated
	pc.Session.State.TurnStatus = convstate.TurnEscalated

	if err := s.Store.Save(ctx, pc.Session); err != nil {
		return false, err
	}

	pc.Response = fallback.EscalationHolding(language)
	if err := s.Store.AppendMessage(ctx, convstore.Message{
		SessionID: pc.Session.ID,
		Role:      convstore.RoleAssistant,
		Content:   pc.Response,
		Metadata:  convstore.MessageMetadata{Language: language, CorrelationID: pc.CorrelationID},
	}); err != nil {
		return false, err
	}

	return false, nil
}

func (s *EscalationCheckStep) triggered(pc *pipeline.Context, language string) bool {
	if router.Classify(pc.InboundText, language) == router.IntentHandoffHuman {
		return true
	}

	lookback := pc.History
	if len(lookback) > escalationLookback {
		lookback = lookback[len(lookback)-escalationLookback:]
	}
	for _, msg := range lookback {
		if msg.Role != convstore.RoleUser {
			continue
		}
		if router.Classify(msg.Content, language) == router.IntentHandoffHuman {
			return true
		}
	}
	return false
}
