package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superagent/debatecore/internal/models"
)

type fakeDebateStore struct {
	staleQueued  []string
	staleRunning []string
	attempts     map[string]int
	statuses     map[string]models.DebateStatus
	requeued     map[string]bool
}

func newFakeDebateStore() *fakeDebateStore {
	return &fakeDebateStore{attempts: map[string]int{}, statuses: map[string]models.DebateStatus{}, requeued: map[string]bool{}}
}

func (s *fakeDebateStore) ListStaleRunning(ctx context.Context, staleAfter time.Duration) ([]string, error) {
	return s.staleRunning, nil
}
func (s *fakeDebateStore) ListStaleQueued(ctx context.Context, queuedAfter time.Duration) ([]string, error) {
	return s.staleQueued, nil
}
func (s *fakeDebateStore) RunAttempt(ctx context.Context, id string) (int, error) {
	return s.attempts[id], nil
}
func (s *fakeDebateStore) Requeue(ctx context.Context, id string) error {
	s.requeued[id] = true
	s.statuses[id] = models.DebateStatusQueued
	return nil
}
func (s *fakeDebateStore) UpdateStatus(ctx context.Context, id string, status models.DebateStatus) error {
	s.statuses[id] = status
	return nil
}

type fakeOutputChecker struct {
	withOutput map[string]bool
}

func (c *fakeOutputChecker) HasOutput(ctx context.Context, debateID string) (bool, error) {
	return c.withOutput[debateID], nil
}

type fakeEvents struct {
	published []string
}

func (e *fakeEvents) Publish(ctx context.Context, debateID, eventType string, payload map[string]any) error {
	e.published = append(e.published, debateID)
	return nil
}

func TestSweep_StaleRunningWithOutputBecomesDegraded(t *testing.T) {
	debates := newFakeDebateStore()
	debates.staleRunning = []string{"debate-1"}
	output := &fakeOutputChecker{withOutput: map[string]bool{"debate-1": true}}
	events := &fakeEvents{}

	r := New(debates, output, events, Config{}, nil)
	require.NoError(t, r.Sweep(context.Background()))

	assert.Equal(t, models.DebateStatusDegraded, debates.statuses["debate-1"])
	assert.Contains(t, events.published, "debate-1")
}

func TestSweep_StaleRunningWithoutOutputAndAttemptsLeftRequeues(t *testing.T) {
	debates := newFakeDebateStore()
	debates.staleRunning = []string{"debate-2"}
	debates.attempts["debate-2"] = 1
	output := &fakeOutputChecker{}

	r := New(debates, output, &fakeEvents{}, Config{MaxRunAttempts: 3}, nil)
	require.NoError(t, r.Sweep(context.Background()))

	assert.True(t, debates.requeued["debate-2"])
	assert.Equal(t, models.DebateStatusQueued, debates.statuses["debate-2"])
}

func TestSweep_StaleRunningWithoutOutputAndAttemptsExhaustedFails(t *testing.T) {
	debates := newFakeDebateStore()
	debates.staleQueued = []string{"debate-3"}
	debates.attempts["debate-3"] = 3
	output := &fakeOutputChecker{}

	r := New(debates, output, &fakeEvents{}, Config{MaxRunAttempts: 3}, nil)
	require.NoError(t, r.Sweep(context.Background()))

	assert.Equal(t, models.DebateStatusFailed, debates.statuses["debate-3"])
	assert.False(t, debates.requeued["debate-3"])
}

func TestNew_FillsDefaultConfig(t *testing.T) {
	r := New(newFakeDebateStore(), &fakeOutputChecker{}, nil, Config{}, nil)
	assert.Equal(t, 60*time.Second, r.Config.Interval)
	assert.Equal(t, 600*time.Second, r.Config.QueuedTTL)
	assert.Equal(t, 900*time.Second, r.Config.RunningTTL)
	assert.Equal(t, 3, r.Config.MaxRunAttempts)
}
