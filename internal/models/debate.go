// Package models defines the domain entities shared across the debate
// engine: debates, seats, rounds, messages, scores, votes, checkpoints,
// quotas, and Elo ratings. These are persistence-agnostic; internal/database
// maps them onto Postgres rows.
package models

import "time"

// DebateStatus is the lifecycle status of a Debate row.
type DebateStatus string

const (
	DebateStatusQueued    DebateStatus = "queued"
	DebateStatusRunning   DebateStatus = "running"
	DebateStatusCompleted DebateStatus = "completed"
	DebateStatusDegraded  DebateStatus = "degraded"
	DebateStatusFailed    DebateStatus = "failed"
)

// IsTerminal reports whether status will never transition again.
func (s DebateStatus) IsTerminal() bool {
	switch s {
	case DebateStatusCompleted, DebateStatusDegraded, DebateStatusFailed:
		return true
	default:
		return false
	}
}

// DebateMode selects which preset pipeline runs a debate.
type DebateMode string

const (
	ModeDebate       DebateMode = "debate"
	ModeParliament   DebateMode = "parliament"
	ModeConversation DebateMode = "conversation"
)

// BudgetConfig caps a debate's resource consumption. EarlyStopDelta, when
// set, lets the judge stage short-circuit once consecutive round score
// deltas fall under the threshold (reserved for future stage use).
type BudgetConfig struct {
	MaxTokens      *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	MaxCostUSD     *float64 `json:"max_cost_usd,omitempty" yaml:"max_cost_usd,omitempty"`
	EarlyStopDelta *float64 `json:"early_stop_delta,omitempty" yaml:"early_stop_delta,omitempty"`
}

// Seat is a persona participant bound to a provider/model pair.
type Seat struct {
	SeatID             string  `json:"seat_id" yaml:"seat_id"`
	DisplayName        string  `json:"display_name" yaml:"display_name"`
	ProviderKey        string  `json:"provider_key" yaml:"provider_key"`
	Model              string  `json:"model" yaml:"model"`
	RoleProfile        string  `json:"role_profile" yaml:"role_profile"`
	Temperature        float64 `json:"temperature" yaml:"temperature"`
	DebateStyle        string  `json:"debate_style,omitempty" yaml:"debate_style,omitempty"`
	ArgumentationStyle string  `json:"argumentation_style,omitempty" yaml:"argumentation_style,omitempty"`
}

// RoutingMeta records the candidate set the router considered, keyed for
// audit and for the "explicit_override" shortcut path.
type RoutingMeta struct {
	Policy     string                   `json:"policy"`
	Candidates []RoutingCandidateResult `json:"candidates"`
}

// RoutingCandidateResult is one scored candidate from a router decision.
type RoutingCandidateResult struct {
	Model        string         `json:"model"`
	TotalScore   float64        `json:"total_score"`
	CostScore    float64        `json:"cost_score"`
	LatencyScore float64        `json:"latency_score"`
	QualityScore float64        `json:"quality_score"`
	SafetyScore  float64        `json:"safety_score"`
	IsHealthy    bool           `json:"is_healthy"`
	Details      map[string]any `json:"details,omitempty"`
}

// Debate is a single deliberation instance.
type Debate struct {
	ID                 string
	Prompt             string
	Status             DebateStatus
	Mode               DebateMode
	PanelConfig        []Seat
	JudgesConfig       []Seat
	SynthSeat          Seat
	Budget             BudgetConfig
	RoutedModel        string
	RoutingPolicy      string
	RoutingMeta        RoutingMeta
	OwnerUserID        *string
	TeamID             *string
	FinalContent       *string
	FinalMeta          map[string]any
	RunnerID           *string
	LeaseExpiresAt     *time.Time
	RunAttempt         int
	EngineVersion      string
	ConversationSummary string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Round is one executed pipeline stage.
type RoundLabel string

const (
	RoundDraft      RoundLabel = "draft"
	RoundCritique   RoundLabel = "critique"
	RoundJudge      RoundLabel = "judge"
	RoundSynthesis  RoundLabel = "synthesis"
	RoundExplore    RoundLabel = "explore"
	RoundRebuttal   RoundLabel = "rebuttal"
	RoundConverge   RoundLabel = "converge"
	RoundChairVerdict RoundLabel = "chair_verdict"
	RoundScribe     RoundLabel = "scribe"
	RoundFacilitator RoundLabel = "facilitator"
)

type Round struct {
	DebateID  string
	Index     int
	Label     RoundLabel
	StartedAt time.Time
	EndedAt   *time.Time
	Note      string
}

// MessageRole is who or what produced a Message.
type MessageRole string

const (
	RoleCandidate   MessageRole = "candidate"
	RoleRevised     MessageRole = "revised"
	RoleSeat        MessageRole = "seat"
	RoleJudge       MessageRole = "judge"
	RoleSynthesizer MessageRole = "synthesizer"
	RoleScribe      MessageRole = "scribe"
)

type Message struct {
	DebateID   string
	RoundIndex int
	Role       MessageRole
	Persona    string
	Content    string
	Meta       map[string]any
	CreatedAt  time.Time
}

// Score is a judge's rating of a persona under a rubric.
type Score struct {
	DebateID  string
	Persona   string
	Judge     string
	Score     float64
	Rationale string
	Meta      map[string]any
	CreatedAt time.Time
}

// Vote is the aggregated ranking result for a debate.
type Vote struct {
	DebateID  string
	Method    string
	Rankings  []string
	Weights   map[string]float64
	Result    map[string]any
	CreatedAt time.Time
}

// PairwiseVote records a single pairwise outcome feeding Elo updates.
type PairwiseVote struct {
	DebateID  string
	Category  string
	CandidateA string
	CandidateB string
	Winner    string
	JudgeID   string
	UserID    *string
	CreatedAt time.Time
}
