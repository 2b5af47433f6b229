// Package llm defines the uniform provider contract seats and the router
// call against, plus the retry and envelope-parsing helpers every provider
// adapter shares. Each provider (internal/llm/providers/...) is a small
// hand-rolled net/http client, not an official SDK, matching how the
// existing provider adapters in this codebase talk to their APIs.
package llm

import (
	"context"
)

// ChatMessage is one turn in a chat-style completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the uniform request shape every provider adapter accepts.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// Usage is the token accounting a provider reports back with a response.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// ChatResponse is the uniform response shape every provider adapter
// returns: raw text content plus usage and an optional provider-assigned
// cost. FinishReason passes through the provider's stop reason ("stop",
// "end_turn", "length", ...) for diagnostics only; the seat runtime does
// not branch on it.
type ChatResponse struct {
	Content      string
	Usage        Usage
	Provider     string
	Model        string
	FinishReason string
}

// Client is the small interface every provider adapter implements. Per
// design note §9, route selection is independent of adapter identity: the
// router and seat runtime only ever see this interface.
type Client interface {
	// Name returns the provider key this client is registered under
	// (e.g. "anthropic", "openai").
	Name() string
	// Call performs one chat completion request.
	Call(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Registry resolves a provider_key to a Client. One process constructs a
// Registry once at startup and injects it into the seat runtime and router.
type Registry struct {
	clients map[string]Client
}

// NewRegistry builds an empty registry; callers add clients with Register.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds or replaces the client for a provider key.
func (r *Registry) Register(providerKey string, c Client) {
	r.clients[providerKey] = c
}

// Get resolves a provider key to its client. ok is false when no adapter
// is registered under that key.
func (r *Registry) Get(providerKey string) (Client, bool) {
	c, ok := r.clients[providerKey]
	return c, ok
}

// Keys returns the registered provider keys, for diagnostics/tests.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.clients))
	for k := range r.clients {
		keys = append(keys, k)
	}
	return keys
}
