package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/clinic"
	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
)

type fakeClinics struct{ clinic clinic.Clinic }

func (f fakeClinics) Get(ctx context.Context, clinicID string) (clinic.Clinic, error) {
	return f.clinic, nil
}

type fakeFAQs struct{ faq *clinic.FAQ }

func (f fakeFAQs) Lookup(ctx context.Context, clinicID, language, query string) (*clinic.FAQ, error) {
	return f.faq, nil
}

type fakePatients struct{ patient *clinic.Patient }

func (f fakePatients) FindByPhone(ctx context.Context, clinicID, phone string) (*clinic.Patient, error) {
	return f.patient, nil
}

func TestContextHydrationFiltersGenericPatientName(t *testing.T) {
	store := convstore.NewMemoryStore()
	session, err := store.GetOrCreate(context.Background(), "+1555", "clinic-1", convstore.ChannelWhatsApp, convstore.Session{})
	require.NoError(t, err)

	step := &ContextHydrationStep{
		Clinics:  fakeClinics{clinic: clinic.Clinic{ID: "clinic-1", Name: "Bright Smile"}},
		Patients: fakePatients{patient: &clinic.Patient{Name: "WhatsApp User"}},
		Store:    store,
	}

	pc := pipeline.NewContext("corr", "clinic-1", "+1555", convstore.ChannelWhatsApp, "hi")
	pc.Session = session

	cont, err := step.Execute(context.Background(), pc)
	require.NoError(t, err)
	require.True(t, cont)
	require.Equal(t, "Bright Smile", pc.Clinic.Name)
	require.Empty(t, pc.PatientName)
}

func TestContextHydrationInjectsPendingActionReminder(t *testing.T) {
	store := convstore.NewMemoryStore()
	session, err := store.GetOrCreate(context.Background(), "+1555", "clinic-1", convstore.ChannelWhatsApp, convstore.Session{
		State: convstate.State{TurnStatus: convstate.TurnAgentPending, PendingAction: "checking with front desk"},
	})
	require.NoError(t, err)

	step := &ContextHydrationStep{Store: store}
	pc := pipeline.NewContext("corr", "clinic-1", "+1555", convstore.ChannelWhatsApp, "any update?")
	pc.Session = session

	_, err = step.Execute(context.Background(), pc)
	require.NoError(t, err)
	require.Contains(t, pc.AdditionalContext, "checking with front desk")
}
