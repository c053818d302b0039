package steps

import (
	"context"
	"strings"
	"time"

	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/extractor"
	"github.com/healthconcierge/wa-concierge/pkg/fallback"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
)

// ConstraintEnforcementStep runs the constraint extractor over the
// inbound message and applies whatever it finds to the session's
// narrowed preferences, or honors a meta-reset request outright.
type ConstraintEnforcementStep struct {
	Store    convstore.ConversationStore
	Location *time.Location
}

func (s *ConstraintEnforcementStep) Name() string { return "constraint_enforcement" }

func (s *ConstraintEnforcementStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	result := extractor.Extract(pc.InboundText, pc.DetectedLanguage, time.Now(), loc)

	if result.MetaReset {
		pc.Constraints.Reset()
		pc.Constraints.UpdatedAt = time.Now()
		pc.ConstraintsChanged = true
		pc.MetaReset = true
		pc.Session.Constraints = pc.Constraints
		if err := s.Store.Save(ctx, pc.Session); err != nil {
			return false, err
		}

		pc.Response = fallback.MetaResetConfirmation(pc.DetectedLanguage)
		if err := s.Store.AppendMessage(ctx, convstore.Message{
			SessionID: pc.Session.ID,
			Role:      convstore.RoleAssistant,
			Content:   pc.Response,
			Metadata:  convstore.MessageMetadata{Language: pc.DetectedLanguage, CorrelationID: pc.CorrelationID},
		}); err != nil {
			return false, err
		}
		return false, nil
	}

	changed := false

	for _, entity := range result.Excluded {
		if looksLikeDoctor(entity) {
			pc.Constraints.ExcludeDoctor(entity)
		} else {
			pc.Constraints.ExcludeService(entity)
		}
		changed = true
	}

	if result.Switch != nil {
		if looksLikeDoctor(result.Switch.Desire) || looksLikeDoctor(result.Switch.Exclude) {
			pc.Constraints.SwitchDoctor(result.Switch.Exclude, result.Switch.Desire)
		} else {
			pc.Constraints.SwitchService(result.Switch.Exclude, result.Switch.Desire)
		}
		changed = true
	}

	if result.TimeWindow != nil {
		start := result.TimeWindow.Start
		end := result.TimeWindow.End
		pc.Constraints.TimeWindowStart = &start
		pc.Constraints.TimeWindowEnd = &end
		pc.Constraints.TimeWindowLabel = result.TimeWindow.Label
		changed = true
	}

	if changed {
		pc.Constraints.UpdatedAt = time.Now()
		pc.ConstraintsChanged = true
		pc.Session.Constraints = pc.Constraints
		if err := s.Store.Save(ctx, pc.Session); err != nil {
			return false, err
		}
	}

	return true, nil
}

// looksLikeDoctor is a cheap heuristic distinguishing a doctor reference
// from a service reference in extractor output, which carries free text
// without an entity type. Doctor mentions in patient messages almost
// always carry a name title.
func looksLikeDoctor(entity string) bool {
	lower := strings.ToLower(entity)
	return strings.HasPrefix(lower, "dr ") || strings.HasPrefix(lower, "dr. ") ||
		strings.HasPrefix(lower, "doctor ") || strings.Contains(lower, "dr.")
}
