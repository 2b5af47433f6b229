package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/superagent/debatecore/internal/models"
)

// RetryConfig controls the seat-runtime retry wrapper. Defaults mirror
// spec §6's LLM_RETRY_* environment variables.
type RetryConfig struct {
	Enabled      bool
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the spec-mandated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     20 * time.Second,
	}
}

// IsRetryableStatusCode reports whether an HTTP status from a provider
// should be retried: 429 and the 5xx range.
func IsRetryableStatusCode(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// IsRetryableError classifies a non-HTTP error as transient. Context
// cancellation/deadline errors are never retried; everything else
// (connection reset, DNS failure, provider-reported transient wrapping) is.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// backoffDelay computes initial * 2^attempt, capped at maxDelay, matching
// spec §4.2's retry formula.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	return delay
}

// CallWithRetry wraps a Client.Call with the spec's transient-retry policy.
// On exhausting attempts with a still-transient error, it returns the error
// wrapped in models.ErrTransientLLM so callers can escalate to a seat
// failure without string-matching.
func CallWithRetry(ctx context.Context, client Client, req ChatRequest, cfg RetryConfig, onResult func(success bool)) (ChatResponse, error) {
	if !cfg.Enabled {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		resp, err := client.Call(ctx, req)
		if err == nil {
			if onResult != nil {
				onResult(true)
			}
			return resp, nil
		}
		lastErr = err
		if onResult != nil {
			onResult(false)
		}
		if !IsRetryableError(err) {
			return ChatResponse{}, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ChatResponse{}, ctx.Err()
		case <-time.After(backoffDelay(cfg, attempt)):
		}
	}
	return ChatResponse{}, errWrapTransient(lastErr)
}

func errWrapTransient(err error) error {
	if err == nil {
		return models.ErrTransientLLM
	}
	return &transientError{cause: err}
}

type transientError struct {
	cause error
}

func (e *transientError) Error() string {
	return "transient llm provider error: " + e.cause.Error()
}

func (e *transientError) Unwrap() error {
	return e.cause
}

func (e *transientError) Is(target error) bool {
	return target == models.ErrTransientLLM
}
