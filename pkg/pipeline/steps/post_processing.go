package steps

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/memory"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
	"github.com/healthconcierge/wa-concierge/pkg/waqueue"
)

// OutboundQueue is the egress boundary PostProcessing enqueues the
// final reply into, keyed by the clinic's WhatsApp instance name.
type OutboundQueue interface {
	Enqueue(ctx context.Context, instance, to, text, messageID string, metadata map[string]any) error
}

// InstanceResolver resolves a clinic ID to the WhatsApp instance name
// its outbound messages should be queued under.
type InstanceResolver interface {
	InstanceForClinic(ctx context.Context, clinicID string) (string, error)
}

// followUpPatterns recognize a reply promising to get back to the
// patient later, so the session is marked agent_action_pending instead
// of resolved.
var followUpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(i'?ll check|let me check|i will check|i'?ll follow up|i will get back to you|someone will (get back|follow up|contact you))\b`),
	regexp.MustCompile(`(?i)\b(voy a verificar|le confirmo|nos pondremos en contacto)\b`),
	regexp.MustCompile(`(?i)(я проверю|мы свяжемся|сообщу вам)`),
}

// PostProcessingStep finalizes the turn: optionally echoes the narrowed
// state back to the patient, updates session bookkeeping, persists the
// assistant's reply, schedules a memory write, and enqueues the reply
// for delivery.
type PostProcessingStep struct {
	Store     convstore.ConversationStore
	Writer    memory.Writer
	Queue     OutboundQueue
	Instances InstanceResolver
}

func (s *PostProcessingStep) Name() string { return "post_processing" }

func (s *PostProcessingStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	if pc.Response == "" {
		return true, nil
	}

	if pc.ConstraintsChanged && !pc.Constraints.IsEmpty() {
		pc.Response = stateEcho(pc.Constraints, pc.DetectedLanguage) + "\n\n" + pc.Response
	}

	now := time.Now()
	if hasFollowUpPromise(pc.Response) {
		pc.Session.State.TurnStatus = convstate.TurnAgentPending
		pc.Session.State.PendingAction = convstate.PendingAction(pc.Response)
		pc.Session.State.PendingSince = &now
	} else {
		pc.Session.State.TurnStatus = convstate.TurnResolved
		pc.Session.State.PendingAction = convstate.PendingActionNone
		pc.Session.State.PendingSince = nil
	}
	pc.Session.Language = pc.DetectedLanguage
	pc.Session.Constraints = pc.Constraints

	if err := s.Store.Save(ctx, pc.Session); err != nil {
		return false, err
	}

	msg := convstore.Message{
		ID:        uuid.NewString(),
		SessionID: pc.Session.ID,
		Role:      convstore.RoleAssistant,
		Content:   pc.Response,
		Metadata: convstore.MessageMetadata{
			Language:      pc.DetectedLanguage,
			IntentTag:     pc.Intent,
			CorrelationID: pc.CorrelationID,
		},
	}
	if err := s.Store.AppendMessage(ctx, msg); err != nil {
		return false, err
	}

	if s.Writer != nil {
		s.Writer.EnqueueMessage(pc.Phone, pc.ClinicID, pc.Response, msg.ID, pc.Session.ID, "", string(convstore.RoleAssistant), map[string]any{
			"intent": pc.Intent,
		})
	}

	if s.Queue != nil && s.Instances != nil {
		instance, err := s.Instances.InstanceForClinic(ctx, pc.ClinicID)
		if err != nil {
			return false, err
		}
		if err := s.Queue.Enqueue(ctx, instance, pc.Phone, pc.Response, pc.CorrelationID, map[string]any{
			"correlation_id": pc.CorrelationID,
			"intent":         pc.Intent,
		}); err != nil {
			if errors.Is(err, waqueue.ErrIdempotentDuplicate) {
				slog.Default().With("component", "post_processing").Info("reply already enqueued, skipping",
					"correlation_id", pc.CorrelationID, "clinic_id", pc.ClinicID)
			} else {
				return false, err
			}
		}
	}

	return true, nil
}

func hasFollowUpPromise(reply string) bool {
	for _, p := range followUpPatterns {
		if p.MatchString(reply) {
			return true
		}
	}
	return false
}

func stateEcho(c convstore.Constraints, language string) string {
	var parts []string
	if c.DesiredService != "" {
		parts = append(parts, c.DesiredService)
	}
	if c.DesiredDoctor != "" {
		parts = append(parts, c.DesiredDoctor)
	}
	if c.TimeWindowLabel != "" {
		parts = append(parts, c.TimeWindowLabel)
	}
	if len(parts) == 0 {
		return ""
	}
	summary := strings.Join(parts, ", ")
	switch language {
	case "es":
		return "Entendido: " + summary + "."
	case "ru":
		return "Понял: " + summary + "."
	case "he":
		return "הבנתי: " + summary + "."
	case "pt":
		return "Entendido: " + summary + "."
	default:
		return "Got it: " + summary + "."
	}
}
