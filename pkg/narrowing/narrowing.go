// Package narrowing turns a partially-specified booking request into the
// next concrete action: either ask the patient one more clarifying
// question, or call the availability tool with what's already known.
package narrowing

import (
	"context"
	"regexp"

	"github.com/healthconcierge/wa-concierge/pkg/clinic"
)

// Action is the high-level decision a NarrowingInstruction carries.
type Action string

const (
	ActionAskQuestion Action = "ask_question"
	ActionCallTool    Action = "call_tool"
	ActionPassThrough Action = "pass_through"
)

// QuestionType names the specific clarifying question to ask the patient.
type QuestionType string

const (
	AskForService       QuestionType = "ask_for_service"
	AskForTime          QuestionType = "ask_for_time"
	AskForDoctor        QuestionType = "ask_for_doctor"
	AskTimeWithDoctor   QuestionType = "ask_time_with_doctor"
	AskTimeWithService  QuestionType = "ask_time_with_service"
	AskTodayOrTomorrow  QuestionType = "ask_today_or_tomorrow"
	SuggestConsultation QuestionType = "suggest_consultation"
	AskFirstAvailable   QuestionType = "ask_first_available"
)

// Case classifies which of service, doctor, and time the patient has
// already specified.
type Case string

const (
	CaseFullySpecified   Case = "fully_specified"
	CaseServiceOnly      Case = "service_only"
	CaseServiceAndTime   Case = "service+time"
	CaseServiceAndDoctor Case = "service+doctor"
	CaseDoctorOnly       Case = "doctor_only"
	CaseTimeOnly         Case = "time_only"
	CaseNothingKnown     Case = "nothing_known"
	CaseUrgentNoTime     Case = "urgent_no_time"
)

// Urgency classifies how soon the patient needs to be seen.
type Urgency string

const (
	UrgencyRoutine Urgency = "routine"
	UrgencySoon    Urgency = "soon"
	UrgencyUrgent  Urgency = "urgent"
)

// ToolCallPlan describes a ready-to-issue availability lookup.
type ToolCallPlan struct {
	ToolName string
	Params   map[string]any
}

// Instruction is the narrowing decision for one turn.
type Instruction struct {
	Action             Action
	Case               Case
	QuestionType       QuestionType
	QuestionArgs       map[string]any
	QuestionContext    string
	ToolCall           *ToolCallPlan
	EligibleDoctorCount *int // nil = lookup failed or was not attempted, not "zero"
	Urgency            Urgency
}

// Input is everything the narrowing decision needs about the current turn.
type Input struct {
	ClinicID        string
	DesiredService  string
	DesiredDoctorID string
	DesiredDoctorName string
	TimeWindow      string
	ExcludedDoctors []string
	Text            string
	ServiceFirstStrategy bool
}

var urgentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(emergency|urgent|asap|severe pain|can'?t wait|right now)\b`),
	regexp.MustCompile(`(?i)\b(urgente|emergencia|dolor fuerte|lo antes posible)\b`),
	regexp.MustCompile(`(?i)(срочно|неотложн|сильная боль|как можно скорее)`),
}

var soonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(soon|today|this week|as soon as possible)\b`),
	regexp.MustCompile(`(?i)\b(pronto|hoy|esta semana)\b`),
	regexp.MustCompile(`(?i)(сегодня|на этой неделе|поскорее)`),
}

// ClassifyUrgency inspects free text for urgency cues, defaulting to routine.
func ClassifyUrgency(text string) Urgency {
	for _, p := range urgentPatterns {
		if p.MatchString(text) {
			return UrgencyUrgent
		}
	}
	for _, p := range soonPatterns {
		if p.MatchString(text) {
			return UrgencySoon
		}
	}
	return UrgencyRoutine
}

// ClassifyCase determines which combination of service/doctor/time the
// patient has specified.
func ClassifyCase(hasService, hasDoctor, hasTime bool) Case {
	switch {
	case hasService && hasDoctor && hasTime:
		return CaseFullySpecified
	case hasService && hasTime:
		return CaseServiceAndTime
	case hasService && hasDoctor:
		return CaseServiceAndDoctor
	case hasService:
		return CaseServiceOnly
	case hasDoctor:
		return CaseDoctorOnly
	case hasTime:
		return CaseTimeOnly
	default:
		return CaseNothingKnown
	}
}

// Service decides the next narrowing instruction.
type Service struct {
	Directory clinic.ServiceDirectory
}

// NewService builds a narrowing Service backed by the given directory.
func NewService(dir clinic.ServiceDirectory) *Service {
	return &Service{Directory: dir}
}

// eligibleDoctors resolves the service name and returns the count and the
// first few eligible doctors for display. A nil count means the lookup
// could not be completed (missing service, or a directory error) — this
// is distinct from a confirmed count of zero.
func (s *Service) eligibleDoctors(ctx context.Context, in Input) (*int, []clinic.Doctor) {
	if in.DesiredService == "" {
		return nil, nil
	}

	serviceID, err := s.Directory.ResolveServiceID(ctx, in.ClinicID, in.DesiredService)
	if err != nil || serviceID == "" {
		return nil, nil
	}

	doctors, err := s.Directory.DoctorsByService(ctx, in.ClinicID, serviceID, in.ExcludedDoctors)
	if err != nil {
		return nil, nil
	}

	count := len(doctors)
	display := doctors
	if len(display) > 5 {
		display = display[:5]
	}
	return &count, display
}

// Decide resolves the full narrowing instruction for one turn.
func (s *Service) Decide(ctx context.Context, in Input) Instruction {
	urgency := ClassifyUrgency(in.Text)
	kase := ClassifyCase(in.DesiredService != "", in.DesiredDoctorID != "", in.TimeWindow != "")

	if urgency == UrgencyUrgent && kase == CaseNothingKnown {
		kase = CaseUrgentNoTime
	}

	var count *int
	var doctors []clinic.Doctor
	if in.DesiredService != "" {
		count, doctors = s.eligibleDoctors(ctx, in)
	}

	return s.build(in, kase, urgency, count, doctors)
}

func (s *Service) build(in Input, kase Case, urgency Urgency, count *int, doctors []clinic.Doctor) Instruction {
	base := Instruction{Case: kase, Urgency: urgency, EligibleDoctorCount: count}

	switch kase {
	case CaseFullySpecified:
		base.Action = ActionCallTool
		base.ToolCall = &ToolCallPlan{ToolName: "check_availability", Params: map[string]any{
			"service": in.DesiredService, "doctor_id": in.DesiredDoctorID, "time_window": in.TimeWindow, "flex": 1,
		}}
		return base

	case CaseServiceAndTime:
		base.Action = ActionCallTool
		flex := 2
		if urgency == UrgencyUrgent {
			flex = 1
		}
		base.ToolCall = &ToolCallPlan{ToolName: "check_availability", Params: map[string]any{
			"service": in.DesiredService, "time_window": in.TimeWindow, "flex": flex,
		}}
		return base

	case CaseServiceAndDoctor:
		base.Action = ActionAskQuestion
		base.QuestionType = AskTimeWithService
		base.QuestionArgs = map[string]any{"service": in.DesiredService, "doctor_id": in.DesiredDoctorID}
		return base

	case CaseServiceOnly:
		return s.buildServiceOnly(in, base, count, doctors)

	case CaseDoctorOnly:
		base.Action = ActionAskQuestion
		if in.ServiceFirstStrategy {
			base.QuestionType = AskForService
		} else {
			base.QuestionType = AskTimeWithDoctor
			base.QuestionArgs = map[string]any{"doctor_id": in.DesiredDoctorID, "doctor_name": in.DesiredDoctorName}
		}
		return base

	case CaseTimeOnly:
		base.Action = ActionAskQuestion
		base.QuestionType = AskForService
		return base

	case CaseUrgentNoTime:
		base.Action = ActionAskQuestion
		base.QuestionType = AskTodayOrTomorrow
		return base

	default: // CaseNothingKnown
		base.Action = ActionAskQuestion
		base.QuestionType = AskForService
		return base
	}
}

func (s *Service) buildServiceOnly(in Input, base Instruction, count *int, doctors []clinic.Doctor) Instruction {
	base.Action = ActionAskQuestion

	if count == nil {
		base.QuestionType = AskForTime
		return base
	}

	switch {
	case *count == 0:
		base.QuestionType = SuggestConsultation
	case *count == 1:
		base.QuestionType = AskTimeWithDoctor
		base.QuestionArgs = map[string]any{"doctor_name": doctors[0].Name, "service_name": in.DesiredService}
	case *count <= 3:
		names := make([]string, len(doctors))
		for i, d := range doctors {
			names[i] = d.Name
		}
		base.QuestionType = AskFirstAvailable
		base.QuestionArgs = map[string]any{"doctor_names": names}
	default:
		base.QuestionType = AskForTime
	}
	return base
}
