package models

import "time"

// DebateCheckpoint is the durability marker a worker writes after each
// completed stage. Advances monotonically until a terminal status.
type DebateCheckpoint struct {
	DebateID          string
	Step              RoundLabel
	StepIndex         int
	RoundIndex        int
	Status            DebateStatus
	AttemptCount      int
	ResumeToken       string
	ResumeClaimedAt   *time.Time
	LastCheckpointAt  time.Time
	LastEventAt       time.Time
	ContextMeta       map[string]any
}

// IsResumable reports whether a checkpoint's recorded status means the
// worker should resume the pipeline rather than treat the debate as done.
func (c *DebateCheckpoint) IsResumable() bool {
	if c == nil {
		return true // no checkpoint at all: resume at draft
	}
	switch c.Status {
	case DebateStatusCompleted, DebateStatusFailed, DebateStatusDegraded:
		return false
	default:
		return true
	}
}

// UsageCall is one provider call's token/cost contribution.
type UsageCall struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
	Provider         string
	Model            string
}

// UsageAccumulator is the per-debate running total of token/cost usage.
// Not shared across runs; one instance lives on a DebateContext.
type UsageAccumulator struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
	Calls            []UsageCall
}

// Add folds one call's usage into the accumulator.
func (u *UsageAccumulator) Add(c UsageCall) {
	u.PromptTokens += c.PromptTokens
	u.CompletionTokens += c.CompletionTokens
	u.TotalTokens += c.TotalTokens
	u.CostUSD += c.CostUSD
	u.Calls = append(u.Calls, c)
}

// ExceedsBudget reports whether accumulated usage has crossed the debate's
// configured ceilings, and if so, which one fired first.
func (u *UsageAccumulator) ExceedsBudget(b BudgetConfig) (exceeded bool, reason string) {
	if b.MaxTokens != nil && u.TotalTokens > *b.MaxTokens {
		return true, "token_budget_exceeded"
	}
	if b.MaxCostUSD != nil && u.CostUSD > *b.MaxCostUSD {
		return true, "cost_budget_exceeded"
	}
	return false, ""
}

// UsageQuota is a per-user, per-period cap.
type UsageQuota struct {
	UserID    string
	Period    string // "hour" | "day"
	MaxRuns   int
	MaxTokens int
	ResetAt   time.Time
}

// UsageCounter is a per-user, per-period tally against a UsageQuota.
type UsageCounter struct {
	UserID      string
	Period      string
	RunsUsed    int
	TokensUsed  int
	WindowStart time.Time
}
