// Package router implements the weighted multi-criterion model router: for
// a requested policy (router-smart, router-deep, ...) it scores every
// candidate model on cost/latency/quality/safety tiers, penalizes
// unhealthy (circuit-open) candidates, and selects the best-scoring one.
package router

import (
	"fmt"
	"sort"

	"github.com/superagent/debatecore/internal/models"
)

// Candidate is one routable model and the qualitative tiers it's
// classified under. Tiers come from the model registry/config, not the
// router itself.
type Candidate struct {
	Provider    string
	Model       string
	CostTier    string // low | medium | high
	LatencyTier string // fast | normal | slow
	QualityTier string // baseline | advanced | flagship
	SafetyTier  string // strict | normal | experimental
}

// Policy weights the four scoring dimensions; weights need not sum to 1.
type Policy struct {
	CostWeight    float64
	LatencyWeight float64
	QualityWeight float64
	SafetyWeight  float64
}

// circuitOpenPenalty is applied multiplicatively to a candidate's total
// score when its provider/model circuit is open, so an unhealthy
// candidate is deprioritized but not unconditionally excluded (it can
// still be chosen if every other candidate is also unhealthy).
const circuitOpenPenalty = 0.1

var costTierScores = map[string]float64{"low": 1.0, "medium": 0.5, "high": 0.1}
var latencyTierScores = map[string]float64{"fast": 1.0, "normal": 0.5, "slow": 0.1}
var qualityTierScores = map[string]float64{"baseline": 0.1, "advanced": 0.6, "flagship": 1.0}
var safetyTierScores = map[string]float64{"strict": 1.0, "normal": 0.8, "experimental": 0.5}

// Policies are the built-in named weight profiles. router-smart favors a
// balanced cost/quality tradeoff; router-deep favors quality almost
// exclusively, for the parliament/high-stakes pipeline mode.
var Policies = map[string]Policy{
	"router-smart": {CostWeight: 0.3, LatencyWeight: 0.2, QualityWeight: 0.4, SafetyWeight: 0.1},
	"router-deep":  {CostWeight: 0.1, LatencyWeight: 0.05, QualityWeight: 0.8, SafetyWeight: 0.05},
}

// RouteContext is one routing decision's input: the candidate pool, the
// policy to score under, and an optional explicit model override.
type RouteContext struct {
	PolicyName      string
	Candidates      []Candidate
	RequestedModel  string
	OverrideEnabled bool
}

// HealthChecker reports whether a provider/model pair's circuit is
// currently open (unhealthy). Satisfied by *circuitbreaker.Breaker.
type HealthChecker interface {
	IsOpen(provider, model string) bool
}

// Choose scores every candidate in ctx and returns the routing decision as
// models.RoutingMeta, with the winning model as routedModel. If
// ctx.RequestedModel names a candidate and ctx.OverrideEnabled is true,
// that candidate is selected directly without scoring the rest, matching
// spec §4.3's explicit-override shortcut.
func Choose(ctx RouteContext, health HealthChecker) (routedModel string, meta models.RoutingMeta, err error) {
	if len(ctx.Candidates) == 0 {
		return "", models.RoutingMeta{}, fmt.Errorf("router: no candidates supplied: %w", models.ErrNoCandidates)
	}

	if ctx.OverrideEnabled && ctx.RequestedModel != "" {
		for _, c := range ctx.Candidates {
			if c.Model == ctx.RequestedModel {
				return c.Model, models.RoutingMeta{
					Policy: "explicit_override",
					Candidates: []models.RoutingCandidateResult{
						scoreCandidate(c, Policy{}, health, true),
					},
				}, nil
			}
		}
	}

	policy, ok := Policies[ctx.PolicyName]
	if !ok {
		policy = Policies["router-smart"]
	}

	results := make([]models.RoutingCandidateResult, 0, len(ctx.Candidates))
	for _, c := range ctx.Candidates {
		results = append(results, scoreCandidate(c, policy, health, false))
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.IsHealthy != b.IsHealthy {
			return a.IsHealthy
		}
		return a.Model < b.Model
	})

	return results[0].Model, models.RoutingMeta{
		Policy:     ctx.PolicyName,
		Candidates: results,
	}, nil
}

func scoreCandidate(c Candidate, policy Policy, health HealthChecker, isOverride bool) models.RoutingCandidateResult {
	cost := costTierScores[c.CostTier]
	latency := latencyTierScores[c.LatencyTier]
	quality := qualityTierScores[c.QualityTier]
	safety := safetyTierScores[c.SafetyTier]

	total := cost*policy.CostWeight + latency*policy.LatencyWeight + quality*policy.QualityWeight + safety*policy.SafetyWeight

	healthy := true
	if health != nil && health.IsOpen(c.Provider, c.Model) {
		healthy = false
		total *= circuitOpenPenalty
	}

	details := map[string]any{
		"provider": c.Provider,
	}
	if isOverride {
		details["explicit_override"] = true
	}

	return models.RoutingCandidateResult{
		Model:        c.Model,
		TotalScore:   total,
		CostScore:    cost,
		LatencyScore: latency,
		QualityScore: quality,
		SafetyScore:  safety,
		IsHealthy:    healthy,
		Details:      details,
	}
}
