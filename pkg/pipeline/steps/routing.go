package steps

import (
	"context"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
	"github.com/healthconcierge/wa-concierge/pkg/router"
)

// PriceLookup resolves an already-known answer for a price question, so
// the fast-path handler can answer without the LLM. An empty result
// means "fall through to full generation".
type PriceLookup interface {
	PriceAnswer(ctx context.Context, clinicID, language, query string) (string, error)
}

// RoutingStep detects the turn's language (with short-message inertia),
// classifies its intent into a lane, and — when fast-path is enabled —
// dispatches a handful of intents to the router's local handlers so they
// never reach the LLM.
type RoutingStep struct {
	Store           convstore.ConversationStore
	Prices          PriceLookup
	FastPathEnabled bool
}

func (s *RoutingStep) Name() string { return "routing" }

func (s *RoutingStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	pc.DetectedLanguage = detectLanguage(pc.InboundText, pc.Session.Language)
	intent := router.Classify(pc.InboundText, pc.DetectedLanguage)
	pc.Intent = string(intent)
	pc.Lane = laneFor(intent)

	if !s.FastPathEnabled || !router.HasFastHandler(intent) {
		return true, nil
	}

	reply := s.dispatch(ctx, intent, pc)
	if !reply.StopHere {
		return true, nil
	}

	pc.Response = reply.Text

	if reply.Escalate {
		pc.Session.State.ControlMode = convstate.ControlHuman
		pc.Session.State.FlowState = convstate.FlowEscalated
		pc.Session.State.TurnStatus = convstate.TurnEscalated
	} else {
		pc.Session.State.TurnStatus = convstate.TurnResolved
	}
	pc.Session.Language = pc.DetectedLanguage
	if err := s.Store.Save(ctx, pc.Session); err != nil {
		return false, err
	}

	if err := s.Store.AppendMessage(ctx, convstore.Message{
		SessionID: pc.Session.ID,
		Role:      convstore.RoleAssistant,
		Content:   pc.Response,
		Metadata:  convstore.MessageMetadata{Language: pc.DetectedLanguage, IntentTag: pc.Intent, CorrelationID: pc.CorrelationID, FastPath: true},
	}); err != nil {
		return false, err
	}

	return false, nil
}

func (s *RoutingStep) dispatch(ctx context.Context, intent router.Intent, pc *pipeline.Context) router.Reply {
	switch intent {
	case router.IntentGreeting:
		return router.HandleGreeting(pc.DetectedLanguage)
	case router.IntentHandoffHuman:
		return router.HandleHandoffHuman(pc.DetectedLanguage)
	case router.IntentConfirmTime:
		return router.HandleConfirmTime(pc.InboundText, pc.DetectedLanguage)
	case router.IntentPriceQuery:
		var priceText string
		if s.Prices != nil {
			priceText, _ = s.Prices.PriceAnswer(ctx, pc.ClinicID, pc.DetectedLanguage, pc.InboundText)
		}
		return router.HandlePriceQuery(priceText)
	default:
		return router.Reply{StopHere: false}
	}
}

func laneFor(intent router.Intent) string {
	switch intent {
	case router.IntentPriceQuery:
		return "PRICE"
	case router.IntentFAQQuery:
		return "FAQ"
	case router.IntentBookAppointment, router.IntentReschedule, router.IntentCancel, router.IntentConfirmTime:
		return "SCHEDULING"
	default:
		return "COMPLEX"
	}
}
