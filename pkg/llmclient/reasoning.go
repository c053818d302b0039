package llmclient

import (
	"regexp"
	"strings"
)

// reasoningTagPattern matches <think>...</think>/<reasoning>...</reasoning>
// blocks some providers interleave into the visible reply.
var reasoningTagPattern = regexp.MustCompile(`(?is)<(think|reasoning)>.*?</(think|reasoning)>`)

// stripReasoningTags removes any inline reasoning blocks from a model
// reply before it's shown to a patient.
func stripReasoningTags(content string) string {
	return strings.TrimSpace(reasoningTagPattern.ReplaceAllString(content, ""))
}
