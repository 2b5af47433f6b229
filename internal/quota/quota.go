// Package quota enforces per-user windowed run/token quotas and an IP
// request-rate bucket, both raising a structured RateLimitError the HTTP
// layer maps to a 429 with Retry-After.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/superagent/debatecore/internal/models"
)

const (
	PeriodHour = "hour"
	PeriodDay  = "day"

	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour
)

// CounterStore is the narrow slice of internal/database this package
// depends on for per-user windowed counters.
type CounterStore interface {
	GetQuota(ctx context.Context, userID, period string) (*models.UsageQuota, error)
	LatestCounter(ctx context.Context, userID, period string) (*models.UsageCounter, error)
	IncrementCounter(ctx context.Context, userID, period string, windowStart time.Time, runs, tokens int) error
}

// DefaultLimits is applied when a user has no UsageQuota row of their
// own — every user gets a quota, configured or not.
type DefaultLimits struct {
	MaxRunsPerHour   int
	MaxTokensPerDay  int
}

// Limiter enforces ReserveRunSlot/RecordTokenUsage/EnsureDailyTokenHeadroom
// against a CounterStore, per spec's per-user windowed quota rules.
type Limiter struct {
	Store   CounterStore
	Default DefaultLimits
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewLimiter builds a Limiter with sane defaults filled in.
func NewLimiter(store CounterStore, def DefaultLimits) *Limiter {
	if def.MaxRunsPerHour <= 0 {
		def.MaxRunsPerHour = 20
	}
	if def.MaxTokensPerDay <= 0 {
		def.MaxTokensPerDay = 2_000_000
	}
	return &Limiter{Store: store, Default: def, Now: time.Now}
}

func (l *Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// ReserveRunSlot resets the hour counter if the existing window is
// stale, then rejects with runs_per_hour if incrementing would exceed
// max_runs, otherwise commits the increment.
func (l *Limiter) ReserveRunSlot(ctx context.Context, userID string) error {
	maxRuns := l.Default.MaxRunsPerHour
	quota, err := l.Store.GetQuota(ctx, userID, PeriodHour)
	if err != nil {
		return fmt.Errorf("load hour quota: %w", err)
	}
	if quota != nil && quota.MaxRuns > 0 {
		maxRuns = quota.MaxRuns
	}

	now := l.now()
	counter, err := l.Store.LatestCounter(ctx, userID, PeriodHour)
	if err != nil {
		return fmt.Errorf("load hour counter: %w", err)
	}

	windowStart := now
	runsUsed := 0
	if counter != nil && now.Sub(counter.WindowStart) < hourWindow {
		windowStart = counter.WindowStart
		runsUsed = counter.RunsUsed
	}

	if runsUsed+1 > maxRuns {
		return &models.RateLimitError{
			Reason:            "runs_per_hour",
			RetryAfterSeconds: int(hourWindow - now.Sub(windowStart)),
			ResetAt:           windowStart.Add(hourWindow),
		}
	}

	if err := l.Store.IncrementCounter(ctx, userID, PeriodHour, windowStart, 1, 0); err != nil {
		return fmt.Errorf("increment hour counter: %w", err)
	}
	return nil
}

// EnsureDailyTokenHeadroom rejects with tokens_per_day if the user's day
// window has already reached its token ceiling.
func (l *Limiter) EnsureDailyTokenHeadroom(ctx context.Context, userID string) error {
	maxTokens := l.Default.MaxTokensPerDay
	quota, err := l.Store.GetQuota(ctx, userID, PeriodDay)
	if err != nil {
		return fmt.Errorf("load day quota: %w", err)
	}
	if quota != nil && quota.MaxTokens > 0 {
		maxTokens = quota.MaxTokens
	}

	now := l.now()
	counter, err := l.Store.LatestCounter(ctx, userID, PeriodDay)
	if err != nil {
		return fmt.Errorf("load day counter: %w", err)
	}
	if counter == nil || now.Sub(counter.WindowStart) >= dayWindow {
		return nil // fresh window: no usage recorded yet
	}
	if counter.TokensUsed >= maxTokens {
		return &models.RateLimitError{
			Reason:            "tokens_per_day",
			RetryAfterSeconds: int(dayWindow - now.Sub(counter.WindowStart)),
			ResetAt:           counter.WindowStart.Add(dayWindow),
		}
	}
	return nil
}

// RecordTokenUsage resets the day counter if stale, then adds n tokens
// to the running total.
func (l *Limiter) RecordTokenUsage(ctx context.Context, userID string, n int) error {
	now := l.now()
	counter, err := l.Store.LatestCounter(ctx, userID, PeriodDay)
	if err != nil {
		return fmt.Errorf("load day counter: %w", err)
	}

	windowStart := now
	if counter != nil && now.Sub(counter.WindowStart) < dayWindow {
		windowStart = counter.WindowStart
	}

	if err := l.Store.IncrementCounter(ctx, userID, PeriodDay, windowStart, 0, n); err != nil {
		return fmt.Errorf("increment day counter: %w", err)
	}
	return nil
}
