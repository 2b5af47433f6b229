package generic

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

func TestClient_Name_ReturnsConfiguredProviderKey(t *testing.T) {
	c := New("deepseek", "key", "http://example.invalid", "deepseek-chat")
	assert.Equal(t, "deepseek", c.Name())
}

func TestClient_Call_UsesBearerAuthByDefault(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		resp := wireResponse{
			Model:   "deepseek-chat",
			Choices: []wireChoice{{Message: wireMessage{Content: "counterargument"}, FinishReason: "stop"}},
			Usage:   wireUsage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := New("deepseek", "test-key", server.URL, "deepseek-chat")
	resp, err := c.Call(context.Background(), llm.ChatRequest{Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "deepseek", resp.Provider)
	assert.Equal(t, "counterargument", resp.Content)
}

func TestClient_Call_WithHeaderNameOverridesAuthHeader(t *testing.T) {
	var gotHeader, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("x-api-key")
		gotAuth = r.Header.Get("Authorization")
		resp := wireResponse{Choices: []wireChoice{{Message: wireMessage{Content: "ok"}}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := New("custom", "raw-key", server.URL, "some-model", WithHeaderName("x-api-key"))
	_, err := c.Call(context.Background(), llm.ChatRequest{Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "raw-key", gotHeader)
	assert.Empty(t, gotAuth)
}

func TestClient_Call_ErrorsWhenNoChoicesReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wireResponse{})
	}))
	defer server.Close()

	c := New("groq", "key", server.URL, "llama-3")
	_, err := c.Call(context.Background(), llm.ChatRequest{Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "groq")
	assert.ErrorContains(t, err, "no choices")
}

func TestClient_Call_ReturnsErrorOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(errorEnvelope{Error: struct {
			Message string `json:"message"`
		}{Message: "upstream unavailable"}})
	}))
	defer server.Close()

	c := New("together", "key", server.URL, "mixtral")
	_, err := c.Call(context.Background(), llm.ChatRequest{Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "upstream unavailable")
	assert.ErrorContains(t, err, "502")
}
