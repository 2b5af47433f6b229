// Package circuitbreaker tracks per-(provider, model) call health using a
// cumulative error rate, not a consecutive-failure counter: a provider
// opens once enough of its lifetime calls failed, and implicitly moves to
// half-open once the cooldown elapses. Counters are not windowed — this is
// the simple implementation spec §4.4 calls for, matching the original
// ProviderHealthState, whose total_calls/error_calls only ever increase.
package circuitbreaker

import (
	"sync"
	"time"
)

// Config controls when a provider/model pair's circuit opens and how long
// it stays open before the next call is allowed through again.
//
// WindowSeconds is carried for parity with the original config shape but,
// like the original, is not read by should-open/is-open: counters are
// cumulative, not windowed.
type Config struct {
	WindowSeconds   int
	ErrorThreshold  float64
	MinCalls        int
	CooldownSeconds int
}

// DefaultConfig mirrors spec §6's PROVIDER_HEALTH_* defaults.
func DefaultConfig() Config {
	return Config{
		WindowSeconds:   300,
		ErrorThreshold:  0.5,
		MinCalls:        10,
		CooldownSeconds: 60,
	}
}

type key struct {
	provider string
	model    string
}

// state is one provider/model pair's cumulative health: call counts only
// ever increase, mirroring the original's total_calls/error_calls.
type state struct {
	mu           sync.Mutex
	totalCalls   int
	errorCalls   int
	lastOpenedAt *time.Time
}

// Stats is a point-in-time snapshot of one provider/model pair's health,
// safe to expose to callers and metrics without holding any lock.
type Stats struct {
	Provider      string
	Model         string
	TotalCalls    int
	ErrorCalls    int
	ErrorRate     float64
	Open          bool
	LastOpenedAt  *time.Time
}

// Breaker is the process-wide registry of provider/model health states,
// mirroring the original implementation's module-level health registry.
type Breaker struct {
	cfg Config

	mu     sync.Mutex
	states map[key]*state
	now    func() time.Time
}

// New constructs a Breaker. Pass a zero Config to use DefaultConfig.
func New(cfg Config) *Breaker {
	if cfg.WindowSeconds == 0 {
		cfg = DefaultConfig()
	}
	return &Breaker{
		cfg:    cfg,
		states: make(map[key]*state),
		now:    time.Now,
	}
}

func (b *Breaker) stateFor(provider, model string) *state {
	k := key{provider, model}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[k]
	if !ok {
		s = &state{}
		b.states[k] = s
	}
	return s
}

// RecordSuccess records a successful call for provider/model.
func (b *Breaker) RecordSuccess(provider, model string) {
	b.record(provider, model, true)
}

// RecordError records a failed call for provider/model.
func (b *Breaker) RecordError(provider, model string) {
	b.record(provider, model, false)
}

func (b *Breaker) record(provider, model string, success bool) {
	s := b.stateFor(provider, model)
	now := b.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCalls++
	if !success {
		s.errorCalls++
	}

	if b.shouldOpenLocked(s) && !b.isOpenLocked(s, now) {
		opened := now
		s.lastOpenedAt = &opened
	}
}

// shouldOpenLocked reports whether s's cumulative error rate meets the
// open-circuit condition. Caller must hold s.mu.
func (b *Breaker) shouldOpenLocked(s *state) bool {
	if s.totalCalls < b.cfg.MinCalls {
		return false
	}
	return float64(s.errorCalls)/float64(s.totalCalls) >= b.cfg.ErrorThreshold
}

// isOpenLocked reports whether provider/model's circuit is currently open.
// A circuit that opened more than CooldownSeconds ago is implicitly
// half-open (treated as closed) so the next call can probe recovery.
// Caller must hold s.mu.
func (b *Breaker) isOpenLocked(s *state, now time.Time) bool {
	if s.lastOpenedAt == nil {
		return false
	}
	return now.Sub(*s.lastOpenedAt) < time.Duration(b.cfg.CooldownSeconds)*time.Second
}

// IsOpen reports whether provider/model's circuit is currently open.
func (b *Breaker) IsOpen(provider, model string) bool {
	s := b.stateFor(provider, model)
	now := b.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return b.isOpenLocked(s, now)
}

// Stats returns a snapshot of provider/model's cumulative health.
func (b *Breaker) Stats(provider, model string) Stats {
	s := b.stateFor(provider, model)
	now := b.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var rate float64
	if s.totalCalls > 0 {
		rate = float64(s.errorCalls) / float64(s.totalCalls)
	}

	return Stats{
		Provider:     provider,
		Model:        model,
		TotalCalls:   s.totalCalls,
		ErrorCalls:   s.errorCalls,
		ErrorRate:    rate,
		Open:         b.isOpenLocked(s, now),
		LastOpenedAt: s.lastOpenedAt,
	}
}

// Reset clears provider/model's recorded calls and open state, for tests
// and for operator-triggered manual recovery.
func (b *Breaker) Reset(provider, model string) {
	k := key{provider, model}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, k)
}

// ResetAll clears every tracked provider/model pair.
func (b *Breaker) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = make(map[key]*state)
}
