package openai

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
	assert.Equal(t, "openai", c.Name())
}

func TestNew_DefaultsBaseURLAndModel(t *testing.T) {
	c := New("key", "", "")
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, defaultModel, c.model)
}

func TestClient_Call_SendsAuthHeaderAndParsesChoice(t *testing.T) {
	var captured wireRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := wireResponse{
			Model: "gpt-4o-mini",
			Choices: []wireChoice{{
				Message:      wireMessage{Role: "assistant", Content: "the rebuttal"},
				FinishReason: "stop",
			}},
			Usage: wireUsage{PromptTokens: 30, CompletionTokens: 10, TotalTokens: 40},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := New("test-key", server.URL, "gpt-4o-mini")
	resp, err := c.Call(context.Background(), llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: "You are a debater."},
			{Role: "user", Content: "Make your opening argument."},
		},
		Temperature: 0.7,
	})

	require.NoError(t, err)
	assert.Equal(t, "the rebuttal", resp.Content)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 40, resp.Usage.TotalTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
}

func TestClient_Call_ErrorsWhenNoChoicesReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wireResponse{Model: "gpt-4o-mini"})
	}))
	defer server.Close()

	c := New("test-key", server.URL, "")
	_, err := c.Call(context.Background(), llm.ChatRequest{Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "no choices")
}

func TestClient_Call_ReturnsErrorOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(errorEnvelope{Error: struct {
			Message string `json:"message"`
		}{Message: "server overloaded"}})
	}))
	defer server.Close()

	c := New("test-key", server.URL, "")
	_, err := c.Call(context.Background(), llm.ChatRequest{Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "server overloaded")
	assert.ErrorContains(t, err, "500")
}
