// Package providers wires the concrete provider adapters (anthropic,
// openai, and the generic OpenAI-compatible client for everything else)
// into an llm.Registry based on process configuration.
package providers

import (
	"github.com/superagent/debatecore/internal/config"
	"github.com/superagent/debatecore/internal/llm"
	"github.com/superagent/debatecore/internal/llm/providers/anthropic"
	"github.com/superagent/debatecore/internal/llm/providers/generic"
	"github.com/superagent/debatecore/internal/llm/providers/openai"
)

// BuildRegistry constructs one llm.Client per configured provider and
// registers it under its provider key. Providers with no API key set are
// skipped: a panel seat bound to a skipped provider fails at routing time
// with models.ErrNoCandidates, not at startup.
func BuildRegistry(cfg map[string]config.ProviderConfig) *llm.Registry {
	registry := llm.NewRegistry()

	for key, p := range cfg {
		if p.APIKey == "" {
			continue
		}
		switch key {
		case "anthropic":
			registry.Register(key, anthropic.New(p.APIKey, p.BaseURL, p.Model))
		case "openai":
			registry.Register(key, openai.New(p.APIKey, p.BaseURL, p.Model))
		default:
			registry.Register(key, generic.New(key, p.APIKey, p.BaseURL, p.Model))
		}
	}

	return registry
}
