// Package steps implements the ten fixed-order pipeline.Step
// implementations that process one conversation turn: session
// bookkeeping, the human-control gate, context hydration, escalation
// detection, routing, constraint extraction, narrowing, the optional
// LangGraph lane, LLM generation, and post-processing.
package steps

import (
	"strings"
	"unicode"
)

// shortMessageThreshold is the character count below which a message is
// too short to carry a reliable language signal of its own and should
// inherit the session's previous language instead.
const shortMessageThreshold = 10

var commonWordsByLanguage = map[string][]string{
	"es": {"hola", "gracias", "buenos", "buenas", "cuanto", "cuánto", "cita", "quiero", "necesito", "por favor"},
	"pt": {"ola", "olá", "obrigado", "obrigada", "bom dia", "boa tarde", "preciso", "quero", "por favor"},
	"en": {"hello", "hi", "thanks", "please", "appointment", "need", "want"},
}

// detectLanguage guesses the language of text, falling back to previous
// when text is too short to carry a strong signal of its own. A strong
// indicator — a script distinctive enough to be unambiguous, like
// Cyrillic or Hebrew — always overrides inertia regardless of length.
func detectLanguage(text, previous string) string {
	trimmed := strings.TrimSpace(text)

	if strong := strongScriptIndicator(trimmed); strong != "" {
		return strong
	}

	if len([]rune(trimmed)) < shortMessageThreshold && previous != "" {
		return previous
	}

	if lang := guessByCommonWords(trimmed); lang != "" {
		return lang
	}

	if previous != "" {
		return previous
	}
	return "en"
}

// strongScriptIndicator reports a language implied unambiguously by the
// Unicode script of text's letters, independent of message length.
func strongScriptIndicator(text string) string {
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			return "ru"
		case unicode.Is(unicode.Hebrew, r):
			return "he"
		}
	}
	return ""
}

func guessByCommonWords(text string) string {
	lower := strings.ToLower(text)
	for _, lang := range []string{"es", "pt", "en"} {
		for _, word := range commonWordsByLanguage[lang] {
			if strings.Contains(lower, word) {
				return lang
			}
		}
	}
	return ""
}

// isGenericPatientName reports whether name is a provider-assigned
// placeholder rather than a real patient-supplied name, so the prompt
// composer is never told to address someone by a non-name.
func isGenericPatientName(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "whatsapp user", "unknown", "patient", "guest":
		return true
	default:
		return false
	}
}

// isDoctorRelatedQuestion reports whether the narrowing instruction
// attached to a turn concerns a specific doctor, used to pick between
// the generic and doctor-related LLM-timeout fallback.
func isDoctorRelatedQuestion(questionType string) bool {
	switch questionType {
	case "ask_for_doctor", "ask_time_with_doctor", "suggest_consultation", "ask_first_available":
		return true
	default:
		return false
	}
}
