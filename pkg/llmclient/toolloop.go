package llmclient

import (
	"context"
	"fmt"
)

// ToolExecutor runs one tool call and returns its JSON result.
type ToolExecutor interface {
	Execute(ctx context.Context, name, argumentsJSON string) (resultJSON string, err error)
}

// DefaultMaxToolTurns caps the multi-turn tool-call loop per spec.md
// §4.I's LLMGeneration step ("multi-turn tool loop (max 5)").
const DefaultMaxToolTurns = 5

// ToolLoopResult is the outcome of RunToolLoop: the final assistant
// reply plus the full message transcript built up across turns (for
// logging/persistence), and how many tool-calling turns actually ran.
type ToolLoopResult struct {
	Final       GenerateResult
	Transcript  []Message
	ToolTurns   int
}

// RunToolLoop drives a bounded multi-turn tool-calling conversation: it
// sends req, and for as long as the provider keeps requesting tool
// calls (up to maxTurns), executes each one via executor and feeds the
// result back as a tool message before asking again. A turn that
// returns no tool calls ends the loop with that turn's content as the
// final reply, matching the "state-gate resets per-turn counters"
// behavior — each call to RunToolLoop starts its own independent
// counter, so a later user turn is never penalized by an earlier one's
// tool usage.
func RunToolLoop(ctx context.Context, provider Provider, req GenerateRequest, executor ToolExecutor, maxTurns int) (ToolLoopResult, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxToolTurns
	}

	messages := append([]Message(nil), req.Messages...)
	var last GenerateResult

	for turn := 0; turn < maxTurns; turn++ {
		current := req
		current.Messages = messages

		result, err := provider.Generate(ctx, current)
		if err != nil {
			return ToolLoopResult{Transcript: messages, ToolTurns: turn}, err
		}
		last = result

		if len(result.ToolCalls) == 0 {
			messages = append(messages, Message{Role: RoleAssistant, Content: result.Content})
			return ToolLoopResult{Final: result, Transcript: messages, ToolTurns: turn}, nil
		}

		messages = append(messages, Message{Role: RoleAssistant, Content: result.Content, ToolCalls: result.ToolCalls})

		for _, call := range result.ToolCalls {
			output, execErr := executor.Execute(ctx, call.Name, call.Arguments)
			if execErr != nil {
				output = fmt.Sprintf(`{"error":%q}`, execErr.Error())
			}
			messages = append(messages, Message{
				Role:       RoleTool,
				Content:    output,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	// Exhausted the turn budget still requesting tools; return the last
	// assistant content we have rather than looping forever.
	return ToolLoopResult{Final: last, Transcript: messages, ToolTurns: maxTurns}, nil
}
