// Package seat runs one panel seat's LLM call for one round: assembling
// its system/user prompt, scanning it for injection attempts and
// scrubbing PII before it is sent, parsing the envelope contract, and
// accounting usage.
package seat

import (
	"context"
	"fmt"
	"strings"

	"github.com/superagent/debatecore/internal/llm"
	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/security"
)

// roleProfileInstructions gives each role profile a distinct voice in the
// system prompt. Profiles not listed fall back to a generic instruction.
var roleProfileInstructions = map[string]string{
	"optimist":     "You argue for the most favorable, upside-focused interpretation of the topic.",
	"skeptic":      "You probe for weaknesses, unstated assumptions, and failure modes in every argument.",
	"risk_officer": "You evaluate proposals strictly through a risk/compliance/downside lens.",
	"architect":    "You focus on structural soundness, feasibility, and long-term maintainability.",
	"chair":        "You moderate: summarize positions fairly and drive the discussion toward resolution.",
	"advocate":     "You build the strongest possible case for your assigned position.",
	"critic":       "You challenge the current leading argument and surface counterexamples.",
	"pragmatist":   "You weigh costs, timelines, and practical tradeoffs over ideals.",
	"generalist":   "You provide balanced, well-rounded analysis without favoring any one angle.",
}

func roleInstruction(profile string) string {
	if instr, ok := roleProfileInstructions[profile]; ok {
		return instr
	}
	return "You contribute your honest, reasoned perspective on the topic."
}

// envelopeContract is appended to every seat's system prompt so its reply
// can be tolerantly parsed by llm.ParseEnvelope.
const envelopeContract = `Respond with a single JSON object: {"content": "<your response>", "reasoning": "<optional brief reasoning>", "stance": "<optional one-word stance>"}. Output only the JSON object, nothing else.`

// judgeContract is used instead of envelopeContract when the seat is
// acting as a judge.
const judgeContract = `Respond with a single JSON object: {"score": <number 0-10>, "rationale": "<brief rationale>"}. Output only the JSON object, nothing else.`

// Input is everything one seat call needs for one round.
type Input struct {
	Seat         models.Seat
	RoundLabel   models.RoundLabel
	DebatePrompt string
	Transcript   []models.Message // prior round messages, oldest first
	IsJudge      bool
}

// Output is one seat call's result, after guardrail screening, PII
// scrubbing, and envelope parsing.
type Output struct {
	Envelope   llm.Envelope
	Verdict    llm.JudgeVerdict
	Usage      models.UsageCall
	Blocked    bool
	BlockedBy  string
}

// BuildPrompt assembles the system and user messages for one seat call.
func BuildPrompt(in Input) (system string, user string) {
	var sb strings.Builder
	sb.WriteString(roleInstruction(in.Seat.RoleProfile))
	if in.Seat.DebateStyle != "" {
		sb.WriteString(fmt.Sprintf(" Adopt a %s debate style.", in.Seat.DebateStyle))
	}
	if in.Seat.ArgumentationStyle != "" {
		sb.WriteString(fmt.Sprintf(" Argue in a %s manner.", in.Seat.ArgumentationStyle))
	}
	sb.WriteString(" ")
	if in.IsJudge {
		sb.WriteString(judgeContract)
	} else {
		sb.WriteString(envelopeContract)
	}
	system = sb.String()

	var ub strings.Builder
	ub.WriteString("Topic: ")
	ub.WriteString(in.DebatePrompt)
	ub.WriteString("\n")
	for _, m := range in.Transcript {
		ub.WriteString(fmt.Sprintf("\n[%s:%s] %s", m.Role, m.Persona, m.Content))
	}
	user = ub.String()
	return system, user
}

// HealthRecorder receives per-call outcomes for circuit-breaker tracking.
// Satisfied by *circuitbreaker.Breaker.
type HealthRecorder interface {
	RecordSuccess(provider, model string)
	RecordError(provider, model string)
}

// Runtime executes seat calls against a provider registry, applying
// retry, non-blocking injection scanning, and PII scrubbing uniformly
// regardless of which provider/model the seat is bound to.
type Runtime struct {
	Registry         *llm.Registry
	InjectionScanner *security.InjectionScanner
	PII              security.PIIDetector
	RetryCfg         llm.RetryConfig
	Health           HealthRecorder
}

// Run performs one seat's LLM call for one round.
func (r *Runtime) Run(ctx context.Context, in Input) (Output, error) {
	system, user := BuildPrompt(in)

	if r.InjectionScanner != nil {
		r.InjectionScanner.Scan(ctx, user, map[string]any{"seat_id": in.Seat.SeatID})
	}

	client, ok := r.Registry.Get(in.Seat.ProviderKey)
	if !ok {
		return Output{}, fmt.Errorf("seat %s: %w: no client registered for provider %q", in.Seat.SeatID, models.ErrNoCandidates, in.Seat.ProviderKey)
	}

	if r.PII != nil {
		if scrubbed, _, err := r.PII.Redact(ctx, system); err == nil {
			system = scrubbed
		}
		if scrubbed, _, err := r.PII.Redact(ctx, user); err == nil {
			user = scrubbed
		}
	}

	req := llm.ChatRequest{
		Model:       in.Seat.Model,
		Temperature: in.Seat.Temperature,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	resp, err := llm.CallWithRetry(ctx, client, req, r.RetryCfg, func(success bool) {
		if r.Health == nil {
			return
		}
		if success {
			r.Health.RecordSuccess(in.Seat.ProviderKey, in.Seat.Model)
		} else {
			r.Health.RecordError(in.Seat.ProviderKey, in.Seat.Model)
		}
	})
	if err != nil {
		return Output{}, fmt.Errorf("seat %s: %w: %v", in.Seat.SeatID, models.ErrSeatFailure, err)
	}

	rawContent := resp.Content

	usage := models.UsageCall{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CostUSD:          resp.Usage.CostUSD,
		Provider:         in.Seat.ProviderKey,
		Model:            in.Seat.Model,
	}

	out := Output{Usage: usage}
	if in.IsJudge {
		out.Verdict = llm.ParseJudgeVerdict(rawContent)
	} else {
		out.Envelope = llm.ParseEnvelope(rawContent)
	}
	return out, nil
}
