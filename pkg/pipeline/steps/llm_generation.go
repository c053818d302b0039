package steps

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/fallback"
	"github.com/healthconcierge/wa-concierge/pkg/llmclient"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
	"github.com/healthconcierge/wa-concierge/pkg/prompt"
)

// maxHistoryTurnsInPrompt bounds how much prior conversation is replayed
// to the LLM on every call, per spec.md's "system + last 12 turns +
// current" message-array shape.
const maxHistoryTurnsInPrompt = 12

// DefaultLLMTimeout is the hard timeout on the whole multi-turn
// generation call, independent of the per-tool-turn provider timeout.
const DefaultLLMTimeout = 20 * time.Second

// LLMGenerationStep composes the system prompt, drives the bounded
// tool-calling loop against the configured provider, and turns a
// timeout into a localized, context-aware fallback instead of letting
// it propagate as a step error.
type LLMGenerationStep struct {
	Store    convstore.ConversationStore
	Provider llmclient.Provider
	Executor llmclient.ToolExecutor
	Tools    []llmclient.ToolDefinition
	Model    string
	Timeout  time.Duration
	MaxTurns int
}

func (s *LLMGenerationStep) Name() string { return "llm_generation" }

func (s *LLMGenerationStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	system := prompt.Compose(prompt.Input{
		Clinic:                 pc.Clinic,
		PatientName:            pc.PatientName,
		ConversationSummary:    pc.ConversationSummary,
		PreviousSessionSummary: pc.PreviousSessionSummary,
		AdditionalContext:      pc.AdditionalContext,
		Constraints:            pc.Constraints,
		Instruction:            pc.Instruction,
		Now:                    time.Now().Format(time.RFC1123),
		ToolCallingEnabled:     s.Executor != nil,
	})

	messages := []llmclient.Message{{Role: llmclient.RoleSystem, Content: system}}
	messages = append(messages, historyToMessages(pc.History)...)
	messages = append(messages, llmclient.Message{Role: llmclient.RoleUser, Content: pc.InboundText})

	req := llmclient.GenerateRequest{
		Messages: messages,
		Tools:    s.Tools,
		Model:    s.Model,
	}

	start := time.Now()
	result, err := llmclient.RunToolLoop(genCtx, s.Provider, req, s.Executor, s.MaxTurns)
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, llmclient.ErrTimeout) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			doctorRelated := pc.Instruction != nil && isDoctorRelatedQuestion(string(pc.Instruction.QuestionType))
			pc.Response = fallback.LLMTimeout(pc.DetectedLanguage, doctorRelated)
			pc.ResponseMetadata["error"] = "llm_timeout"
			pc.ResponseMetadata["latency_ms"] = latency.Milliseconds()
			return true, nil
		}
		return false, err
	}

	pc.Response = result.Final.Content
	pc.ResponseMetadata["model"] = s.Model
	pc.ResponseMetadata["input_tokens"] = result.Final.InputTokens
	pc.ResponseMetadata["output_tokens"] = result.Final.OutputTokens
	pc.ResponseMetadata["latency_ms"] = latency.Milliseconds()
	pc.ResponseMetadata["tool_turns"] = result.ToolTurns

	if applyToolDerivedConstraints(&pc.Constraints, result) {
		pc.ConstraintsChanged = true
		pc.Constraints.UpdatedAt = time.Now()
		pc.Session.Constraints = pc.Constraints
		if err := s.Store.Save(ctx, pc.Session); err != nil {
			return false, err
		}
	}

	pc.DetectedLanguage = detectLanguage(pc.Response, pc.DetectedLanguage)

	return true, nil
}

// applyToolDerivedConstraints scans the transcript for check_availability
// tool calls and folds the service/doctor they were made with back into
// the session's narrowed constraints, so the next turn's narrowing
// decision reflects what the LLM actually asked the tool for.
func applyToolDerivedConstraints(constraints *convstore.Constraints, result llmclient.ToolLoopResult) bool {
	changed := false
	for _, msg := range result.Transcript {
		for _, call := range msg.ToolCalls {
			if call.Name != "check_availability" {
				continue
			}
			var args map[string]any
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				continue
			}
			if service, ok := args["service"].(string); ok && service != "" && service != constraints.DesiredService {
				constraints.DesiredService = service
				changed = true
			}
			if doctorID, ok := args["doctor_id"].(string); ok && doctorID != "" && doctorID != constraints.DesiredDoctorID {
				constraints.DesiredDoctorID = doctorID
				changed = true
			}
		}
	}
	return changed
}

func historyToMessages(history []convstore.Message) []llmclient.Message {
	if len(history) > maxHistoryTurnsInPrompt {
		history = history[len(history)-maxHistoryTurnsInPrompt:]
	}
	out := make([]llmclient.Message, 0, len(history))
	for _, m := range history {
		role := llmclient.RoleUser
		if m.Role == convstore.RoleAssistant {
			role = llmclient.RoleAssistant
		}
		out = append(out, llmclient.Message{Role: role, Content: m.Content})
	}
	return out
}
