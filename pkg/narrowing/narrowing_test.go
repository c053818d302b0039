package narrowing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/clinic"
)

type fakeDirectory struct {
	serviceID string
	doctors   []clinic.Doctor
	resolveErr error
	doctorsErr error
}

func (f *fakeDirectory) ResolveServiceID(_ context.Context, _, _ string) (string, error) {
	return f.serviceID, f.resolveErr
}

func (f *fakeDirectory) DoctorsByService(_ context.Context, _, _ string, _ []string) ([]clinic.Doctor, error) {
	return f.doctors, f.doctorsErr
}

func TestClassifyUrgency(t *testing.T) {
	assert.Equal(t, UrgencyUrgent, ClassifyUrgency("this is an emergency"))
	assert.Equal(t, UrgencyUrgent, ClassifyUrgency("es urgente por favor"))
	assert.Equal(t, UrgencyUrgent, ClassifyUrgency("срочно нужна помощь"))
	assert.Equal(t, UrgencySoon, ClassifyUrgency("can I come in today"))
	assert.Equal(t, UrgencyRoutine, ClassifyUrgency("just checking in about next month"))
}

func TestClassifyCase(t *testing.T) {
	assert.Equal(t, CaseFullySpecified, ClassifyCase(true, true, true))
	assert.Equal(t, CaseServiceAndTime, ClassifyCase(true, false, true))
	assert.Equal(t, CaseServiceAndDoctor, ClassifyCase(true, true, false))
	assert.Equal(t, CaseServiceOnly, ClassifyCase(true, false, false))
	assert.Equal(t, CaseDoctorOnly, ClassifyCase(false, true, false))
	assert.Equal(t, CaseTimeOnly, ClassifyCase(false, false, true))
	assert.Equal(t, CaseNothingKnown, ClassifyCase(false, false, false))
}

func TestDecideFullySpecifiedCallsTool(t *testing.T) {
	svc := NewService(&fakeDirectory{})
	instr := svc.Decide(context.Background(), Input{
		DesiredService: "cleaning", DesiredDoctorID: "doc-1", TimeWindow: "tomorrow morning",
	})
	require.Equal(t, ActionCallTool, instr.Action)
	require.NotNil(t, instr.ToolCall)
	assert.Equal(t, "check_availability", instr.ToolCall.ToolName)
	assert.Equal(t, 1, instr.ToolCall.Params["flex"])
}

func TestDecideServiceOnlyZeroDoctorsSuggestsConsultation(t *testing.T) {
	svc := NewService(&fakeDirectory{serviceID: "svc-1", doctors: nil})
	instr := svc.Decide(context.Background(), Input{DesiredService: "rare procedure"})

	require.Equal(t, ActionAskQuestion, instr.Action)
	require.NotNil(t, instr.EligibleDoctorCount)
	assert.Equal(t, 0, *instr.EligibleDoctorCount)
	assert.Equal(t, SuggestConsultation, instr.QuestionType)
}

func TestDecideServiceOnlyOneDoctorAsksTimeWithDoctor(t *testing.T) {
	svc := NewService(&fakeDirectory{serviceID: "svc-1", doctors: []clinic.Doctor{{ID: "d1", Name: "Dr. Lee"}}})
	instr := svc.Decide(context.Background(), Input{DesiredService: "cleaning"})

	assert.Equal(t, AskTimeWithDoctor, instr.QuestionType)
	assert.Equal(t, "Dr. Lee", instr.QuestionArgs["doctor_name"])
	assert.Equal(t, "cleaning", instr.QuestionArgs["service_name"])
}

func TestDecideServiceOnlyFewDoctorsOffersFirstAvailable(t *testing.T) {
	doctors := []clinic.Doctor{{ID: "d1", Name: "Dr. Lee"}, {ID: "d2", Name: "Dr. Kim"}}
	svc := NewService(&fakeDirectory{serviceID: "svc-1", doctors: doctors})
	instr := svc.Decide(context.Background(), Input{DesiredService: "cleaning"})

	assert.Equal(t, AskFirstAvailable, instr.QuestionType)
	assert.ElementsMatch(t, []string{"Dr. Lee", "Dr. Kim"}, instr.QuestionArgs["doctor_names"])
}

func TestDecideServiceOnlyManyDoctorsAsksForTime(t *testing.T) {
	doctors := make([]clinic.Doctor, 10)
	for i := range doctors {
		doctors[i] = clinic.Doctor{ID: "d", Name: "Dr. X"}
	}
	svc := NewService(&fakeDirectory{serviceID: "svc-1", doctors: doctors})
	instr := svc.Decide(context.Background(), Input{DesiredService: "cleaning"})

	assert.Equal(t, AskForTime, instr.QuestionType)
	require.NotNil(t, instr.EligibleDoctorCount)
	assert.Equal(t, 10, *instr.EligibleDoctorCount)
}

func TestDecideServiceOnlyLookupFailureAsksForTimeWithNilCount(t *testing.T) {
	svc := NewService(&fakeDirectory{resolveErr: assert.AnError})
	instr := svc.Decide(context.Background(), Input{DesiredService: "cleaning"})

	assert.Equal(t, AskForTime, instr.QuestionType)
	assert.Nil(t, instr.EligibleDoctorCount, "a lookup failure must not be confused with a confirmed zero")
}

func TestDecideUrgentNoTimeAsksTodayOrTomorrow(t *testing.T) {
	svc := NewService(&fakeDirectory{})
	instr := svc.Decide(context.Background(), Input{Text: "this is an emergency"})

	assert.Equal(t, CaseUrgentNoTime, instr.Case)
	assert.Equal(t, AskTodayOrTomorrow, instr.QuestionType)
}

func TestDecideDoctorOnlyRespectsServiceFirstStrategy(t *testing.T) {
	svc := NewService(&fakeDirectory{})

	instr := svc.Decide(context.Background(), Input{DesiredDoctorID: "doc-1", ServiceFirstStrategy: true})
	assert.Equal(t, AskForService, instr.QuestionType)

	instr = svc.Decide(context.Background(), Input{DesiredDoctorID: "doc-1", DesiredDoctorName: "Dr. Lee"})
	assert.Equal(t, AskTimeWithDoctor, instr.QuestionType)
	assert.Equal(t, "Dr. Lee", instr.QuestionArgs["doctor_name"])
}

func TestDecideNothingKnownAsksForService(t *testing.T) {
	svc := NewService(&fakeDirectory{})
	instr := svc.Decide(context.Background(), Input{})
	assert.Equal(t, AskForService, instr.QuestionType)
}
