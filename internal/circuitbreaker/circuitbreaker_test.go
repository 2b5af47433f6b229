package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	b := New(cfg)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b.now = clock.Now
	return b, clock
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func testConfig() Config {
	return Config{WindowSeconds: 60, ErrorThreshold: 0.5, MinCalls: 4, CooldownSeconds: 30}
}

func TestBreaker_StaysClosedBelowMinCalls(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	b.RecordError("anthropic", "claude")
	b.RecordError("anthropic", "claude")
	assert.False(t, b.IsOpen("anthropic", "claude"))
}

func TestBreaker_OpensWhenErrorRateAtOrAboveThreshold(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	b.RecordError("anthropic", "claude")
	b.RecordError("anthropic", "claude")
	b.RecordSuccess("anthropic", "claude")
	b.RecordSuccess("anthropic", "claude")
	assert.True(t, b.IsOpen("anthropic", "claude"))
}

func TestBreaker_StaysClosedWhenErrorRateBelowThreshold(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	b.RecordError("anthropic", "claude")
	b.RecordSuccess("anthropic", "claude")
	b.RecordSuccess("anthropic", "claude")
	b.RecordSuccess("anthropic", "claude")
	assert.False(t, b.IsOpen("anthropic", "claude"))
}

func TestBreaker_ImplicitlyHalfOpensAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(testConfig())
	for i := 0; i < 4; i++ {
		b.RecordError("openai", "gpt-4o-mini")
	}
	assert.True(t, b.IsOpen("openai", "gpt-4o-mini"))

	clock.Advance(31 * time.Second)
	assert.False(t, b.IsOpen("openai", "gpt-4o-mini"))
}

func TestBreaker_CountersAreCumulativeNotWindowed(t *testing.T) {
	b, clock := newTestBreaker(testConfig())
	for i := 0; i < 4; i++ {
		b.RecordError("groq", "llama")
	}
	assert.True(t, b.IsOpen("groq", "llama"))

	clock.Advance(61 * time.Second)
	b.RecordSuccess("groq", "llama")
	stats := b.Stats("groq", "llama")
	assert.Equal(t, 5, stats.TotalCalls)
	assert.Equal(t, 4, stats.ErrorCalls)
}

func TestBreaker_TracksEachProviderModelPairIndependently(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	for i := 0; i < 4; i++ {
		b.RecordError("anthropic", "claude")
	}
	assert.True(t, b.IsOpen("anthropic", "claude"))
	assert.False(t, b.IsOpen("anthropic", "claude-haiku"))
}

func TestBreaker_ResetClearsState(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	for i := 0; i < 4; i++ {
		b.RecordError("anthropic", "claude")
	}
	assert.True(t, b.IsOpen("anthropic", "claude"))

	b.Reset("anthropic", "claude")
	assert.False(t, b.IsOpen("anthropic", "claude"))
	assert.Equal(t, 0, b.Stats("anthropic", "claude").TotalCalls)
}

func TestBreaker_StatsReportsErrorRate(t *testing.T) {
	b, _ := newTestBreaker(testConfig())
	b.RecordError("anthropic", "claude")
	b.RecordError("anthropic", "claude")
	b.RecordSuccess("anthropic", "claude")
	b.RecordSuccess("anthropic", "claude")

	stats := b.Stats("anthropic", "claude")
	assert.Equal(t, 4, stats.TotalCalls)
	assert.Equal(t, 2, stats.ErrorCalls)
	assert.Equal(t, 0.5, stats.ErrorRate)
}
