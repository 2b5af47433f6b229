// Package durability owns exclusive worker ownership of a debate row:
// lease acquisition, heartbeat refresh, checkpointing, and the resume
// decision a worker makes when it picks a debate back up.
package durability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/superagent/debatecore/internal/models"
)

// LeaseStore is the narrow slice of internal/database this package
// depends on for lease ownership.
type LeaseStore interface {
	AcquireLease(ctx context.Context, id, runnerID string, leaseDuration time.Duration) (bool, error)
	Heartbeat(ctx context.Context, id, runnerID string, leaseDuration time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, id, runnerID string) error
}

// CheckpointStore is the narrow slice of internal/database this package
// depends on for checkpoint read/write and resume-token stamping.
type CheckpointStore interface {
	Get(ctx context.Context, debateID string) (*models.DebateCheckpoint, error)
	StampResumeToken(ctx context.Context, debateID, token string) error
}

// Lease represents one worker's held ownership of a debate row, with a
// background heartbeat keeping lease_expires_at ahead of the clock.
type Lease struct {
	DebateID string
	RunnerID string

	store    LeaseStore
	duration time.Duration
	interval time.Duration
	log      *logrus.Logger

	cancel context.CancelFunc
	lost   chan struct{}
}

// Manager claims and releases debate leases and resolves resume
// decisions from persisted checkpoints.
type Manager struct {
	Leases      LeaseStore
	Checkpoints CheckpointStore
	RunnerID    string
	LeaseDuration    time.Duration
	HeartbeatInterval time.Duration
	Log *logrus.Logger
}

// NewManager builds a durability manager for one worker process, keyed by
// runnerID (stable per process, e.g. hostname:pid).
func NewManager(leases LeaseStore, checkpoints CheckpointStore, runnerID string, leaseDuration, heartbeatInterval time.Duration, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	if leaseDuration <= 0 {
		leaseDuration = 60 * time.Second
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = 15 * time.Second
	}
	return &Manager{
		Leases: leases, Checkpoints: checkpoints, RunnerID: runnerID,
		LeaseDuration: leaseDuration, HeartbeatInterval: heartbeatInterval, Log: log,
	}
}

// Claim attempts to acquire the lease for debateID. On success it stamps
// a fresh resume token (only takes effect if the debate has no
// checkpoint yet) and starts a background heartbeat loop that keeps the
// lease alive until ctx is canceled, Release is called, or the lease is
// lost to another runner.
func (m *Manager) Claim(ctx context.Context, debateID string) (*Lease, error) {
	ok, err := m.Leases.AcquireLease(ctx, debateID, m.RunnerID, m.LeaseDuration)
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: debate %s held by another runner", models.ErrLeaseLost, debateID)
	}

	token, err := newResumeToken()
	if err != nil {
		return nil, fmt.Errorf("generate resume token: %w", err)
	}
	if err := m.Checkpoints.StampResumeToken(ctx, debateID, token); err != nil {
		return nil, fmt.Errorf("stamp resume token: %w", err)
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	lease := &Lease{
		DebateID: debateID, RunnerID: m.RunnerID,
		store: m.Leases, duration: m.LeaseDuration, interval: m.HeartbeatInterval,
		log: m.Log, cancel: cancel, lost: make(chan struct{}),
	}
	go lease.heartbeatLoop(hbCtx)
	return lease, nil
}

// ResumeStep resolves where a worker should pick up debateID, per the
// no-checkpoint/terminal-checkpoint/recorded-step decision rule.
func (m *Manager) ResumeStep(ctx context.Context, debateID string) (step models.RoundLabel, stepIndex int, resume bool, err error) {
	cp, err := m.Checkpoints.Get(ctx, debateID)
	if err != nil {
		return "", 0, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		return models.RoundDraft, 0, true, nil
	}
	if !cp.IsResumable() {
		return cp.Step, cp.StepIndex, false, nil
	}
	return cp.Step, cp.StepIndex, true, nil
}

func (l *Lease) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := l.store.Heartbeat(ctx, l.DebateID, l.RunnerID, l.duration)
			if err != nil {
				l.log.WithError(err).WithField("debate_id", l.DebateID).Warn("heartbeat refresh failed")
				continue
			}
			if !ok {
				l.log.WithField("debate_id", l.DebateID).Warn("lease lost to another runner")
				close(l.lost)
				return
			}
		}
	}
}

// Lost signals when the heartbeat loop discovers another runner has
// taken the lease; a caller holding the lease should select on this and
// abort without writing terminal state, per the LeaseLost error kind.
func (l *Lease) Lost() <-chan struct{} { return l.lost }

// Release stops the heartbeat loop and clears ownership if this runner
// still holds it.
func (l *Lease) Release(ctx context.Context) error {
	l.cancel()
	return l.store.ReleaseLease(ctx, l.DebateID, l.RunnerID)
}

func newResumeToken() (string, error) {
	buf := make([]byte, 16) // 128 bits
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
