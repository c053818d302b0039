package prompt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/clinic"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/narrowing"
	"github.com/healthconcierge/wa-concierge/pkg/prompt"
)

func TestComposeIncludesClinicAndPersona(t *testing.T) {
	text := prompt.Compose(prompt.Input{
		Clinic: clinic.Clinic{ID: "clinic-1", Name: "Bright Smile Dental", Timezone: "America/New_York"},
	})
	assert.Contains(t, text, "Bright Smile Dental")
	assert.Contains(t, text, "America/New_York")
	assert.Contains(t, text, "healthcare concierge")
}

func TestComposeSkipsEmptySections(t *testing.T) {
	text := prompt.Compose(prompt.Input{Clinic: clinic.Clinic{ID: "clinic-1", Name: "Bright Smile Dental"}})
	assert.NotContains(t, text, "Conversation so far")
	assert.NotContains(t, text, "Summary of the patient's previous conversation")
}

func TestComposeActiveConstraints(t *testing.T) {
	constraints := convstore.Constraints{DesiredService: "cleaning", ExcludedDoctors: []string{"dr smith"}}
	text := prompt.Compose(prompt.Input{Constraints: constraints})
	assert.Contains(t, text, "Desired service: cleaning")
	assert.Contains(t, text, "Excluded doctors: dr smith")
}

func TestComposeNarrowingControlIsFirst(t *testing.T) {
	count := 2
	instr := &narrowing.Instruction{
		Action:              narrowing.ActionCallTool,
		Case:                narrowing.CaseFullySpecified,
		Urgency:             narrowing.UrgencyRoutine,
		EligibleDoctorCount: &count,
		ToolCall:            &narrowing.ToolCallPlan{ToolName: "check_availability"},
	}
	text := prompt.Compose(prompt.Input{Instruction: instr})
	require.True(t, len(text) > 0)
	assert.Equal(t, 0, indexOf(text, "Narrowing control"))
	assert.Contains(t, text, `call tool "check_availability"`)
	assert.Contains(t, text, "eligible doctors matching current constraints: 2")
}

func TestComposeStripsToolInstructionsWhenToolCallingDisabled(t *testing.T) {
	instr := &narrowing.Instruction{Action: narrowing.ActionCallTool, ToolCall: &narrowing.ToolCallPlan{ToolName: "check_availability"}}
	text := prompt.Compose(prompt.Input{Instruction: instr, ToolCallingEnabled: false})
	assert.NotContains(t, text, "call tool")
}

func TestComposeOverrideReplacesDefaultPersona(t *testing.T) {
	text := prompt.Compose(prompt.Input{
		Overrides: prompt.Overrides{prompt.SectionPersona: "Custom persona for this clinic."},
	})
	assert.Contains(t, text, "Custom persona for this clinic.")
	assert.NotContains(t, text, "healthcare concierge")
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
