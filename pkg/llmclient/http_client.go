package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPClient is a thin JSON-over-HTTP adapter to an LLM provider,
// grounded on the teacher's thin-wrapper client style (see
// pkg/evolution/evolution.go in this module).
// It does not speak any one vendor's native protocol: the provider
// behind baseURL is expected to expose an OpenAI-chat-style
// messages/tools/response contract.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient builds a client targeting baseURL with the given hard
// request timeout (spec.md's 20s LLM call deadline).
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "llmclient-http"),
	}
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends req to the provider and blocks until it responds or
// ctx/the client's configured timeout expires, in which case it returns
// ErrTimeout.
func (c *HTTPClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	payload := wireRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, toWireMessage(m))
	}
	for _, t := range req.Tools {
		var tool wireTool
		tool.Type = "function"
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = json.RawMessage(t.ParametersSchema)
		payload.Tools = append(payload.Tools, tool)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("llmclient: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return GenerateResult{}, fmt.Errorf("llmclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			return GenerateResult{}, ErrTimeout
		}
		return GenerateResult{}, fmt.Errorf("llmclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("llmclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("llm provider non-2xx", "status", resp.StatusCode)
		return GenerateResult{}, fmt.Errorf("llmclient: provider returned status %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.Unmarshal(data, &wire); err != nil {
		return GenerateResult{}, fmt.Errorf("llmclient: decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return GenerateResult{}, errors.New("llmclient: provider returned no choices")
	}

	choice := wire.Choices[0]
	result := GenerateResult{
		Content:      stripReasoningTags(choice.Message.Content),
		FinishReason: choice.FinishReason,
		InputTokens:  wire.Usage.PromptTokens,
		OutputTokens: wire.Usage.CompletionTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

func toWireMessage(m Message) wireMessage {
	wm := wireMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.ToolName}
	for _, tc := range m.ToolCalls {
		var wtc wireToolCall
		wtc.ID = tc.ID
		wtc.Type = "function"
		wtc.Function.Name = tc.Name
		wtc.Function.Arguments = tc.Arguments
		wm.ToolCalls = append(wm.ToolCalls, wtc)
	}
	return wm
}
