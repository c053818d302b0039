package fallback_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/healthconcierge/wa-concierge/pkg/fallback"
)

func TestGenericFallsBackToEnglish(t *testing.T) {
	assert.NotEmpty(t, fallback.Generic("ru"))
	assert.Equal(t, fallback.Generic("en"), fallback.Generic("fr"))
}

func TestLLMTimeoutVariesByDoctorRelated(t *testing.T) {
	generic := fallback.LLMTimeout("en", false)
	doctor := fallback.LLMTimeout("en", true)
	assert.NotEqual(t, generic, doctor)
}

func TestMetaResetConfirmationLocalized(t *testing.T) {
	en := fallback.MetaResetConfirmation("en")
	ru := fallback.MetaResetConfirmation("ru")
	assert.NotEqual(t, en, ru)
	assert.Contains(t, en, "fresh")
}

func TestEscalationHoldingLocalized(t *testing.T) {
	assert.NotEmpty(t, fallback.EscalationHolding("es"))
}
