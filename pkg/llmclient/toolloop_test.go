package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	calls   int
	results []GenerateResult
}

func (p *scriptedProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	result := p.results[p.calls]
	p.calls++
	return result, nil
}

type echoExecutor struct {
	calls []string
}

func (e *echoExecutor) Execute(ctx context.Context, name, argumentsJSON string) (string, error) {
	e.calls = append(e.calls, name)
	return `{"ok":true}`, nil
}

func TestRunToolLoopEndsWhenNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{results: []GenerateResult{
		{Content: "final reply"},
	}}
	executor := &echoExecutor{}

	result, err := RunToolLoop(context.Background(), provider, GenerateRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}, executor, 5)

	require.NoError(t, err)
	require.Equal(t, "final reply", result.Final.Content)
	require.Equal(t, 0, result.ToolTurns)
	require.Empty(t, executor.calls)
}

func TestRunToolLoopExecutesToolThenFinishes(t *testing.T) {
	provider := &scriptedProvider{results: []GenerateResult{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "check_availability", Arguments: "{}"}}},
		{Content: "here is a time"},
	}}
	executor := &echoExecutor{}

	result, err := RunToolLoop(context.Background(), provider, GenerateRequest{
		Messages: []Message{{Role: RoleUser, Content: "book me"}},
	}, executor, 5)

	require.NoError(t, err)
	require.Equal(t, "here is a time", result.Final.Content)
	require.Equal(t, 1, result.ToolTurns)
	require.Equal(t, []string{"check_availability"}, executor.calls)

	var hasToolMessage bool
	for _, m := range result.Transcript {
		if m.Role == RoleTool && m.ToolCallID == "c1" {
			hasToolMessage = true
		}
	}
	require.True(t, hasToolMessage)
}

func TestRunToolLoopStopsAtMaxTurns(t *testing.T) {
	results := make([]GenerateResult, 5)
	for i := range results {
		results[i] = GenerateResult{ToolCalls: []ToolCall{{ID: "c", Name: "noop", Arguments: "{}"}}}
	}
	provider := &scriptedProvider{results: results}
	executor := &echoExecutor{}

	result, err := RunToolLoop(context.Background(), provider, GenerateRequest{
		Messages: []Message{{Role: RoleUser, Content: "loop"}},
	}, executor, 5)

	require.NoError(t, err)
	require.Equal(t, 5, result.ToolTurns)
	require.Len(t, executor.calls, 5)
}
