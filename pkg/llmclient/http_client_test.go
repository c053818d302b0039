package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPClientGenerateParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)

		resp := wireResponse{}
		resp.Choices = []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content   string         `json:"content"`
				ToolCalls []wireToolCall `json:"tool_calls"`
			} `json:"message"`
		}{{
			FinishReason: "stop",
		}}
		resp.Choices[0].Message.Content = "<think>internal</think>Hello there"
		resp.Usage.PromptTokens = 10
		resp.Usage.CompletionTokens = 5

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", 2*time.Second)
	result, err := client.Generate(t.Context(), GenerateRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Hello there", result.Content)
	require.Equal(t, 10, result.InputTokens)
	require.Equal(t, 5, result.OutputTokens)
}

func TestHTTPClientGenerateReturnsToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := wireResponse{}
		resp.Choices = []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content   string         `json:"content"`
				ToolCalls []wireToolCall `json:"tool_calls"`
			} `json:"message"`
		}{{FinishReason: "tool_calls"}}
		var tc wireToolCall
		tc.ID = "call-1"
		tc.Type = "function"
		tc.Function.Name = "check_availability"
		tc.Function.Arguments = `{"doctor_id":"d1"}`
		resp.Choices[0].Message.ToolCalls = []wireToolCall{tc}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", 2*time.Second)
	result, err := client.Generate(t.Context(), GenerateRequest{Messages: []Message{{Role: RoleUser, Content: "book"}}})
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	require.Equal(t, "check_availability", result.ToolCalls[0].Name)
}

func TestHTTPClientGenerateNon2xxReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", 2*time.Second)
	_, err := client.Generate(t.Context(), GenerateRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
}

func TestHTTPClientGenerateTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", 10*time.Millisecond)
	_, err := client.Generate(context.Background(), GenerateRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestStripReasoningTagsRemovesBlock(t *testing.T) {
	out := stripReasoningTags("<reasoning>plan here</reasoning>Actual reply")
	require.Equal(t, "Actual reply", out)
}
