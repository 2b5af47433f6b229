package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealth struct {
	open map[string]bool
}

func (f *fakeHealth) IsOpen(provider, model string) bool {
	return f.open[provider+"/"+model]
}

func TestChoose_NoCandidatesReturnsError(t *testing.T) {
	_, _, err := Choose(RouteContext{PolicyName: "router-smart"}, nil)
	require.Error(t, err)
}

func TestChoose_ExplicitOverrideShortcutsScoring(t *testing.T) {
	candidates := []Candidate{
		{Provider: "anthropic", Model: "claude-3-5-sonnet", CostTier: "medium", LatencyTier: "normal", QualityTier: "flagship", SafetyTier: "strict"},
		{Provider: "deepseek", Model: "deepseek-chat", CostTier: "low", LatencyTier: "fast", QualityTier: "baseline", SafetyTier: "normal"},
	}
	routed, meta, err := Choose(RouteContext{
		PolicyName:      "router-smart",
		Candidates:      candidates,
		RequestedModel:  "deepseek-chat",
		OverrideEnabled: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", routed)
	assert.Equal(t, "explicit_override", meta.Policy)
	require.Len(t, meta.Candidates, 1)
}

func TestChoose_RouterSmartFavorsBalancedCandidate(t *testing.T) {
	candidates := []Candidate{
		{Provider: "anthropic", Model: "claude-3-5-sonnet", CostTier: "medium", LatencyTier: "normal", QualityTier: "flagship", SafetyTier: "strict"},
		{Provider: "deepseek", Model: "deepseek-chat", CostTier: "low", LatencyTier: "fast", QualityTier: "baseline", SafetyTier: "normal"},
	}
	routed, meta, err := Choose(RouteContext{PolicyName: "router-smart", Candidates: candidates}, nil)
	require.NoError(t, err)
	assert.Equal(t, "router-smart", meta.Policy)
	assert.NotEmpty(t, routed)
	require.Len(t, meta.Candidates, 2)
}

func TestChoose_RouterDeepFavorsQualityOverCost(t *testing.T) {
	candidates := []Candidate{
		{Provider: "anthropic", Model: "claude-3-5-sonnet", CostTier: "high", LatencyTier: "slow", QualityTier: "flagship", SafetyTier: "strict"},
		{Provider: "deepseek", Model: "deepseek-chat", CostTier: "low", LatencyTier: "fast", QualityTier: "baseline", SafetyTier: "normal"},
	}
	routed, _, err := Choose(RouteContext{PolicyName: "router-deep", Candidates: candidates}, nil)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-sonnet", routed)
}

func TestChoose_PenalizesCircuitOpenCandidate(t *testing.T) {
	candidates := []Candidate{
		{Provider: "anthropic", Model: "claude-3-5-sonnet", CostTier: "medium", LatencyTier: "normal", QualityTier: "flagship", SafetyTier: "strict"},
		{Provider: "deepseek", Model: "deepseek-chat", CostTier: "medium", LatencyTier: "normal", QualityTier: "flagship", SafetyTier: "strict"},
	}
	health := &fakeHealth{open: map[string]bool{"anthropic/claude-3-5-sonnet": true}}

	routed, meta, err := Choose(RouteContext{PolicyName: "router-smart", Candidates: candidates}, health)
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", routed)

	for _, c := range meta.Candidates {
		if c.Model == "claude-3-5-sonnet" {
			assert.False(t, c.IsHealthy)
		}
	}
}

func TestChoose_TieBreaksLexicographicallyByModelID(t *testing.T) {
	candidates := []Candidate{
		{Provider: "p1", Model: "zeta", CostTier: "medium", LatencyTier: "normal", QualityTier: "advanced", SafetyTier: "normal"},
		{Provider: "p2", Model: "alpha", CostTier: "medium", LatencyTier: "normal", QualityTier: "advanced", SafetyTier: "normal"},
	}
	routed, _, err := Choose(RouteContext{PolicyName: "router-smart", Candidates: candidates}, nil)
	require.NoError(t, err)
	assert.Equal(t, "alpha", routed)
}

func TestChoose_UnknownPolicyFallsBackToRouterSmart(t *testing.T) {
	candidates := []Candidate{
		{Provider: "anthropic", Model: "claude-3-5-sonnet", CostTier: "medium", LatencyTier: "normal", QualityTier: "flagship", SafetyTier: "strict"},
	}
	_, meta, err := Choose(RouteContext{PolicyName: "nonexistent-policy", Candidates: candidates}, nil)
	require.NoError(t, err)
	assert.Equal(t, "nonexistent-policy", meta.Policy)
	require.Len(t, meta.Candidates, 1)
}
