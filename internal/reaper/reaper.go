// Package reaper periodically reclassifies debates a worker abandoned:
// queued rows nobody ever picked up, and running rows whose lease expired
// without a heartbeat refreshing it.
package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/superagent/debatecore/internal/models"
)

// DebateStore is the narrow slice of internal/database this package
// depends on.
type DebateStore interface {
	ListStaleRunning(ctx context.Context, staleAfter time.Duration) ([]string, error)
	ListStaleQueued(ctx context.Context, queuedAfter time.Duration) ([]string, error)
	RunAttempt(ctx context.Context, id string) (int, error)
	Requeue(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.DebateStatus) error
}

// OutputChecker reports whether a debate already has persisted output
// (a Vote row or non-empty final content), which decides whether a stale
// run is salvaged as degraded instead of discarded.
type OutputChecker interface {
	HasOutput(ctx context.Context, debateID string) (bool, error)
}

// EventPublisher is the narrow slice of internal/sse this package
// depends on, to notify bystanders when a debate is reaped.
type EventPublisher interface {
	Publish(ctx context.Context, debateID string, eventType string, payload map[string]any) error
}

// Config tunes the reaper's sweep.
type Config struct {
	Interval        time.Duration
	QueuedTTL       time.Duration
	RunningTTL      time.Duration
	MaxRunAttempts  int
}

// Reaper runs the periodic stale-run sweep described by Config.
type Reaper struct {
	Debates DebateStore
	Output  OutputChecker
	Events  EventPublisher
	Config  Config
	Log     *logrus.Logger
}

// New builds a reaper with the given dependencies and config, filling in
// the config's default interval/TTLs when unset.
func New(debates DebateStore, output OutputChecker, events EventPublisher, cfg Config, log *logrus.Logger) *Reaper {
	if log == nil {
		log = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.QueuedTTL <= 0 {
		cfg.QueuedTTL = 600 * time.Second
	}
	if cfg.RunningTTL <= 0 {
		cfg.RunningTTL = 900 * time.Second
	}
	if cfg.MaxRunAttempts <= 0 {
		cfg.MaxRunAttempts = 3
	}
	return &Reaper{Debates: debates, Output: output, Events: events, Config: cfg, Log: log}
}

// Run blocks, sweeping every Config.Interval until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.Log.WithError(err).Warn("reaper sweep failed")
			}
		}
	}
}

// Sweep runs one pass: find stale queued/running debates and
// reclassify each, per spec's queued_ttl/running_ttl/max_attempts rule.
func (r *Reaper) Sweep(ctx context.Context) error {
	queued, err := r.Debates.ListStaleQueued(ctx, r.Config.QueuedTTL)
	if err != nil {
		return fmt.Errorf("list stale queued debates: %w", err)
	}
	running, err := r.Debates.ListStaleRunning(ctx, r.Config.RunningTTL)
	if err != nil {
		return fmt.Errorf("list stale running debates: %w", err)
	}

	for _, id := range queued {
		r.reapOne(ctx, id, "queued_ttl_exceeded")
	}
	for _, id := range running {
		r.reapOne(ctx, id, "running_ttl_exceeded")
	}
	return nil
}

func (r *Reaper) reapOne(ctx context.Context, debateID, reason string) {
	hasOutput, err := r.Output.HasOutput(ctx, debateID)
	if err != nil {
		r.Log.WithError(err).WithField("debate_id", debateID).Warn("reaper: could not check persisted output")
		return
	}

	var newStatus models.DebateStatus
	switch {
	case hasOutput:
		newStatus = models.DebateStatusDegraded
	default:
		attempt, err := r.Debates.RunAttempt(ctx, debateID)
		if err != nil {
			r.Log.WithError(err).WithField("debate_id", debateID).Warn("reaper: could not read run attempt")
			return
		}
		if attempt < r.Config.MaxRunAttempts {
			newStatus = models.DebateStatusQueued
		} else {
			newStatus = models.DebateStatusFailed
		}
	}

	var applyErr error
	if newStatus == models.DebateStatusQueued {
		applyErr = r.Debates.Requeue(ctx, debateID)
	} else {
		applyErr = r.Debates.UpdateStatus(ctx, debateID, newStatus)
	}
	if applyErr != nil {
		r.Log.WithError(applyErr).WithField("debate_id", debateID).Warn("reaper: failed to apply reclassification")
		return
	}

	r.Log.WithField("debate_id", debateID).WithField("reason", reason).
		WithField("new_status", string(newStatus)).Info("reaped stale debate")

	if r.Events != nil && newStatus != models.DebateStatusQueued {
		_ = r.Events.Publish(ctx, debateID, "debate_terminal", map[string]any{
			"status": string(newStatus),
			"reason": reason,
			"error":  models.ErrStaleReaped.Error(),
		})
	}
}
