package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superagent/debatecore/internal/llm"
)

func TestClient_Name(t *testing.T) {
	c := New("key", "", "")
	assert.Equal(t, "anthropic", c.Name())
}

func TestNew_DefaultsBaseURLAndModel(t *testing.T) {
	c := New("key", "", "")
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, defaultModel, c.model)
}

func TestClient_Call_HoistsSystemMessageAndParsesUsage(t *testing.T) {
	var captured wireRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := wireResponse{
			Model:      "claude-3-5-sonnet-20241022",
			StopReason: "end_turn",
			Content:    []contentBlock{{Type: "text", Text: "the debate conclusion"}},
			Usage:      wireUsage{InputTokens: 40, OutputTokens: 12},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := New("test-key", server.URL, "claude-3-5-sonnet-20241022")
	resp, err := c.Call(context.Background(), llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: "You are a debate judge."},
			{Role: "user", Content: "Evaluate this argument."},
		},
		Temperature: 0.4,
		MaxTokens:   512,
	})

	require.NoError(t, err)
	assert.Equal(t, "the debate conclusion", resp.Content)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 40, resp.Usage.PromptTokens)
	assert.Equal(t, 12, resp.Usage.CompletionTokens)
	assert.Equal(t, 52, resp.Usage.TotalTokens)

	assert.Equal(t, "You are a debate judge.", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, 512, captured.MaxTokens)
}

func TestClient_Call_DefaultsMaxTokensWhenUnset(t *testing.T) {
	var captured wireRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wireResponse{Content: []contentBlock{{Type: "text", Text: "ok"}}})
	}))
	defer server.Close()

	c := New("test-key", server.URL, "")
	_, err := c.Call(context.Background(), llm.ChatRequest{
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1024, captured.MaxTokens)
}

func TestClient_Call_ReturnsErrorOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(errorEnvelope{Error: struct {
			Message string `json:"message"`
		}{Message: "rate limited"}})
	}))
	defer server.Close()

	c := New("test-key", server.URL, "")
	_, err := c.Call(context.Background(), llm.ChatRequest{
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limited")
	assert.ErrorContains(t, err, "429")
}

func TestClient_Call_PropagatesContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New("test-key", server.URL, "")
	_, err := c.Call(ctx, llm.ChatRequest{Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
}
