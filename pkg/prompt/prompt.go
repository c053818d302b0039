// Package prompt composes the LLM system prompt from an ordered set of
// plain-string sections. There is no templating engine: each section is
// a small function that formats its own named substitutions, the way the
// rest of this codebase prefers explicit string building over a
// text/template indirection for short, fixed-shape text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/healthconcierge/wa-concierge/pkg/clinic"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/narrowing"
)

// Section names a composable block of the system prompt, in the fixed
// order they are assembled (narrowing control is pulled to the front of
// the final string, everything else keeps this order).
type Section string

const (
	SectionPersona                Section = "persona"
	SectionClinic                 Section = "clinic"
	SectionDateTime               Section = "date_time"
	SectionDateRules              Section = "date_rules"
	SectionBookingPolicy          Section = "booking_policy"
	SectionPatientProfile         Section = "patient_profile"
	SectionConversationSummary    Section = "conversation_summary"
	SectionPreviousSessionSummary Section = "previous_session_summary"
	SectionAdditionalContext      Section = "additional_context"
	SectionActiveConstraints      Section = "active_constraints"
	SectionNarrowingControl       Section = "narrowing_control"
)

var order = []Section{
	SectionPersona,
	SectionClinic,
	SectionDateTime,
	SectionDateRules,
	SectionBookingPolicy,
	SectionPatientProfile,
	SectionConversationSummary,
	SectionPreviousSessionSummary,
	SectionAdditionalContext,
	SectionActiveConstraints,
}

// Overrides maps a section name to per-clinic replacement text. Absent
// entries fall back to the default section.
type Overrides map[Section]string

// Input carries everything a composed prompt might reference.
type Input struct {
	Clinic                 clinic.Clinic
	PatientName            string
	PatientProfileNotes    string
	ConversationSummary    string
	PreviousSessionSummary string
	AdditionalContext      string
	Constraints            convstore.Constraints
	Instruction            *narrowing.Instruction
	Now                    string // pre-formatted in the clinic's local timezone
	ToolCallingEnabled     bool
	Overrides              Overrides
}

const defaultPersona = `You are a friendly, efficient healthcare concierge assistant communicating over WhatsApp.
Keep replies short, warm, and specific. Never invent clinical advice, prices, or availability you were not given.`

const defaultBookingPolicy = `Booking policy: never confirm an appointment until the scheduling tool has returned a concrete slot.
Always prefer offering fewer, higher-confidence options over an open-ended list.`

const defaultDateRules = `Date rules: resolve relative dates ("tomorrow", "next Monday") against the date/time context above, in the clinic's own timezone.
Never assume a year; never schedule in the past.`

// Compose builds the full system prompt for in.
func Compose(in Input) string {
	var parts []string

	if in.Instruction != nil {
		parts = append(parts, narrowingControlBlock(*in.Instruction))
	}

	for _, section := range order {
		text := renderSection(section, in)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}

	prompt := strings.Join(parts, "\n\n")
	if !in.ToolCallingEnabled {
		prompt = stripToolInstructions(prompt)
	}
	return prompt
}

func renderSection(section Section, in Input) string {
	if override, ok := in.Overrides[section]; ok {
		return override
	}
	switch section {
	case SectionPersona:
		return defaultPersona
	case SectionClinic:
		return clinicContext(in.Clinic)
	case SectionDateTime:
		if in.Now == "" {
			return ""
		}
		return fmt.Sprintf("Current date/time at the clinic: %s.", in.Now)
	case SectionDateRules:
		return defaultDateRules
	case SectionBookingPolicy:
		return defaultBookingPolicy
	case SectionPatientProfile:
		return patientProfile(in.PatientName, in.PatientProfileNotes)
	case SectionConversationSummary:
		if in.ConversationSummary == "" {
			return ""
		}
		return "Conversation so far: " + in.ConversationSummary
	case SectionPreviousSessionSummary:
		if in.PreviousSessionSummary == "" {
			return ""
		}
		return "Summary of the patient's previous conversation: " + in.PreviousSessionSummary
	case SectionAdditionalContext:
		if in.AdditionalContext == "" {
			return ""
		}
		return in.AdditionalContext
	case SectionActiveConstraints:
		return activeConstraints(in.Constraints)
	}
	return ""
}

func clinicContext(c clinic.Clinic) string {
	if c.ID == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are assisting patients of %s.", c.Name)
	if c.Timezone != "" {
		fmt.Fprintf(&b, " The clinic operates in the %s timezone.", c.Timezone)
	}
	return b.String()
}

func patientProfile(name, notes string) string {
	// Generic placeholders ("Patient", "Unknown", "") are filtered upstream
	// before reaching this package — only a real name lands here.
	if name == "" && notes == "" {
		return ""
	}
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "You are speaking with %s.", name)
	}
	if notes != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(notes)
	}
	return b.String()
}

func activeConstraints(c convstore.Constraints) string {
	if c.IsEmpty() {
		return ""
	}
	var lines []string
	if c.DesiredService != "" {
		lines = append(lines, "Desired service: "+c.DesiredService)
	}
	if c.DesiredDoctor != "" {
		lines = append(lines, "Desired doctor: "+c.DesiredDoctor)
	}
	if len(c.ExcludedServices) > 0 {
		lines = append(lines, "Excluded services: "+strings.Join(c.ExcludedServices, ", "))
	}
	if len(c.ExcludedDoctors) > 0 {
		lines = append(lines, "Excluded doctors: "+strings.Join(c.ExcludedDoctors, ", "))
	}
	if c.TimeWindowLabel != "" {
		lines = append(lines, "Requested time window: "+c.TimeWindowLabel)
	}
	if len(lines) == 0 {
		return ""
	}
	return "Active constraints:\n- " + strings.Join(lines, "\n- ")
}

func narrowingControlBlock(instr narrowing.Instruction) string {
	var b strings.Builder
	b.WriteString("Narrowing control (internal, do not mention to the patient):\n")
	fmt.Fprintf(&b, "- case: %s\n- urgency: %s\n- action: %s\n", instr.Case, instr.Urgency, instr.Action)
	switch instr.Action {
	case narrowing.ActionAskQuestion:
		fmt.Fprintf(&b, "- ask the patient: %s\n", instr.QuestionType)
	case narrowing.ActionCallTool:
		if instr.ToolCall != nil {
			fmt.Fprintf(&b, "- call tool %q\n", instr.ToolCall.ToolName)
		}
	}
	if instr.EligibleDoctorCount != nil {
		fmt.Fprintf(&b, "- eligible doctors matching current constraints: %d\n", *instr.EligibleDoctorCount)
	}
	return strings.TrimRight(b.String(), "\n")
}

// toolInstructionMarkers names substrings of lines that instruct the LLM
// to call a tool; stripped when the prompt won't be sent with tool
// schemas attached, to avoid hallucinated tool-call syntax.
var toolInstructionMarkers = []string{"call tool", "invoke the", "use the tool", "call the tool"}

func stripToolInstructions(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		lower := strings.ToLower(line)
		skip := false
		for _, marker := range toolInstructionMarkers {
			if strings.Contains(lower, marker) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
