package steps

import (
	"context"
	"fmt"

	"github.com/healthconcierge/wa-concierge/pkg/clinic"
	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
)

// ContextHydrationStep loads everything the rest of the turn needs to
// reason about this patient and clinic: the clinic profile, a relevant
// FAQ, the patient's own profile if known, and recent message history.
type ContextHydrationStep struct {
	Clinics      clinic.ClinicDirectory
	FAQs         clinic.FAQDirectory
	Patients     clinic.PatientDirectory
	Store        convstore.ConversationStore
	HistoryLimit int
}

func (s *ContextHydrationStep) Name() string { return "context_hydration" }

func (s *ContextHydrationStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	if s.Clinics != nil {
		c, err := s.Clinics.Get(ctx, pc.ClinicID)
		if err != nil {
			return false, err
		}
		pc.Clinic = c
	}

	if s.Patients != nil {
		patient, err := s.Patients.FindByPhone(ctx, pc.ClinicID, pc.Phone)
		if err != nil {
			return false, err
		}
		pc.Patient = patient
		if patient != nil && !isGenericPatientName(patient.Name) {
			pc.PatientName = patient.Name
		}
	}

	language := pc.Session.Language
	if language == "" {
		language = pc.Clinic.Language
	}
	if language == "" {
		language = "en"
	}

	if s.FAQs != nil {
		faq, err := s.FAQs.Lookup(ctx, pc.ClinicID, language, pc.InboundText)
		if err == nil && faq != nil {
			pc.FAQs = []clinic.FAQ{*faq}
		}
	}

	limit := s.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	history, err := s.Store.History(ctx, pc.Session.ID, convstore.HistoryOptions{Limit: limit})
	if err != nil {
		return false, err
	}
	pc.History = history

	if pc.Session.State.TurnStatus == convstate.TurnAgentPending && pc.Session.State.PendingAction != "" {
		reminder := fmt.Sprintf("You previously told the patient: %q. Follow up on that before anything else.", string(pc.Session.State.PendingAction))
		if pc.AdditionalContext == "" {
			pc.AdditionalContext = reminder
		} else {
			pc.AdditionalContext = pc.AdditionalContext + "\n" + reminder
		}
	}

	return true, nil
}
