// Package generic is a configurable-base-URL OpenAI-compatible chat
// completions client. Most LLM providers (DeepSeek, Groq, Together,
// OpenRouter, Fireworks, Mistral, ...) expose an OpenAI-compatible
// /chat/completions endpoint; rather than hand-rolling a near-identical
// client per provider, one of these is registered per provider key with
// that provider's base URL and default model.
package generic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/superagent/debatecore/internal/llm"
)

// Client is an OpenAI-compatible chat completions client for a single
// provider, identified by providerKey (e.g. "deepseek", "groq").
type Client struct {
	providerKey string
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	headerName  string
}

// Option customizes a Client beyond its required fields.
type Option func(*Client)

// WithHeaderName overrides the auth header name (default "Authorization"
// with a "Bearer " prefix). Some OpenAI-compatible gateways expect a raw
// API-key header instead.
func WithHeaderName(name string) Option {
	return func(c *Client) { c.headerName = name }
}

// New constructs a generic adapter for one provider. baseURL must be the
// full chat-completions endpoint (e.g.
// "https://api.deepseek.com/chat/completions").
func New(providerKey, apiKey, baseURL, model string, opts ...Option) *Client {
	c := &Client{
		providerKey: providerKey,
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		headerName:  "Authorization",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ llm.Client = (*Client)(nil)

func (c *Client) Name() string { return c.providerKey }

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireResponse struct {
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Call performs one chat completions request against the configured base
// URL, in the OpenAI wire format.
func (c *Client) Call(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, wireMessage{Role: m.Role, Content: m.Content})
	}

	payload := wireRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var resp wireResponse
	if err := c.doRequest(ctx, payload, &resp); err != nil {
		return llm.ChatResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, fmt.Errorf("%s: response contained no choices", c.providerKey)
	}

	choice := resp.Choices[0]
	return llm.ChatResponse{
		Content:      choice.Message.Content,
		Provider:     c.providerKey,
		Model:        resp.Model,
		FinishReason: choice.FinishReason,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *Client) doRequest(ctx context.Context, payload wireRequest, result *wireResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.providerKey, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.providerKey, err)
	}
	if c.headerName == "Authorization" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		httpReq.Header.Set(c.headerName, c.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", c.providerKey, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.providerKey, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var envelope errorEnvelope
		_ = json.Unmarshal(respBody, &envelope)
		msg := envelope.Error.Message
		if msg == "" {
			msg = string(respBody)
		}
		return fmt.Errorf("%s: request failed with status %d: %s", c.providerKey, httpResp.StatusCode, msg)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.providerKey, err)
	}
	return nil
}
