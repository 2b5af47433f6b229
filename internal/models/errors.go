package models

import (
	"errors"
	"time"
)

// Error taxonomy shared across the debate engine. Stages and callers
// classify failures by wrapping one of these with fmt.Errorf("...: %w", ...)
// so callers can branch with errors.Is/errors.As instead of string matching.
var (
	// ErrTransientLLM marks a provider failure that is safe to retry
	// (timeouts, 5xx, connection resets).
	ErrTransientLLM = errors.New("transient llm provider error")

	// ErrSeatFailure marks a seat that exhausted its retry budget for a
	// round; the round continues without that seat's message.
	ErrSeatFailure = errors.New("seat failed to produce a message")

	// ErrStageFatal marks an error that aborts the whole debate.
	ErrStageFatal = errors.New("fatal pipeline stage error")

	// ErrBudgetExhausted marks a debate that hit its token or cost ceiling.
	ErrBudgetExhausted = errors.New("debate budget exhausted")

	// ErrProviderCircuitOpen marks a routing candidate skipped because its
	// circuit breaker is open.
	ErrProviderCircuitOpen = errors.New("provider circuit open")

	// ErrLeaseLost marks a worker that discovered its lease was reassigned
	// mid-execution and must stop processing immediately.
	ErrLeaseLost = errors.New("debate lease lost")

	// ErrStaleReaped marks a debate the reaper reclassified out from under
	// a worker that believed it still owned it.
	ErrStaleReaped = errors.New("debate reaped as stale")

	// ErrNoCandidates marks a router call where every candidate model was
	// either disabled or circuit-open.
	ErrNoCandidates = errors.New("no eligible routing candidates")
)

// RateLimitError is returned by the quota and rate limiter when a caller
// must back off. RetryAfterSeconds is always >= 0.
type RateLimitError struct {
	Reason            string
	RetryAfterSeconds int
	ResetAt           time.Time
}

func (e *RateLimitError) Error() string {
	return "rate limited: " + e.Reason
}
