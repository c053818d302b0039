// Package llmclient is the LLM provider boundary: a small interface
// decoupling the pipeline from any one vendor, an HTTP/JSON adapter
// implementing it, and a bounded multi-turn tool-call loop on top.
package llmclient

import (
	"context"
	"errors"
)

// Message roles, mirrored from the teacher's pkg/agent conversation
// message shape.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in the conversation sent to the provider.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // only set on assistant messages requesting tools
	ToolCallID string     // only set on tool-result messages
	ToolName   string     // only set on tool-result messages
}

// ToolDefinition describes one tool the model may call.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema, as a raw string
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// GenerateRequest is one call to the provider.
type GenerateRequest struct {
	Messages    []Message
	Tools       []ToolDefinition // nil/empty = tool-calling disabled for this call
	Model       string
	MaxTokens   int
	Temperature float64
}

// GenerateResult is the provider's response to one GenerateRequest.
type GenerateResult struct {
	Content      string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// Provider is the interface the pipeline's LLMGeneration step depends
// on. Implemented by *HTTPClient in production, stubbed in tests.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// ErrTimeout is returned when a Generate call exceeds its hard deadline.
var ErrTimeout = errors.New("llmclient: generation timed out")
