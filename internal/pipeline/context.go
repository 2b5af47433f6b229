// Package pipeline runs one debate's ordered stage sequence over a shared
// DebateContext, producing a DebateState. Each stage is a stateless
// function of (context, state) that returns the next state plus the
// events to publish, matching the re-architected stage shape: no
// dynamic-dispatch stage classes, one tagged Round label per stage kind
// and a single driver that owns every side effect (DB writes, SSE
// publishes, checkpoint writes).
package pipeline

import (
	"context"

	"github.com/superagent/debatecore/internal/llm"
	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/ranking"
	"github.com/superagent/debatecore/internal/seat"
)

// EventPublisher is the narrow slice of internal/sse this package depends
// on: publish one event for a debate's stream.
type EventPublisher interface {
	Publish(ctx context.Context, debateID string, eventType string, payload map[string]any) error
}

// CheckpointWriter is the narrow slice of internal/durability this package
// depends on: persist one stage's completion marker.
type CheckpointWriter interface {
	WriteCheckpoint(ctx context.Context, cp models.DebateCheckpoint) error
}

// MessageWriter is the narrow slice of internal/database this package
// depends on: persist messages, scores, and votes produced by a stage.
type MessageWriter interface {
	SaveMessages(ctx context.Context, messages []models.Message) error
	SaveScores(ctx context.Context, scores []models.Score) error
	SaveVote(ctx context.Context, vote models.Vote) error
}

// DebateContext is the read side every stage runs against: the debate's
// static configuration, the seat runtime, and the shared side-effect
// interfaces. It is not mutated by stages; only DebateState changes
// across a run.
type DebateContext struct {
	Debate     models.Debate
	Seats      []models.Seat
	Judges     []models.Seat
	Synth      models.Seat
	Budget     models.BudgetConfig
	FanoutMax  int
	MinRequiredSeats int
	MaxSeatFailRatio float64

	SeatRuntime *seat.Runtime
	Usage       *models.UsageAccumulator
	Events      EventPublisher
	Checkpoints CheckpointWriter
	Messages    MessageWriter
}

// candidateEntry is one seat's current-round output, carried between
// stages before it is flattened into persisted Messages.
type candidateEntry struct {
	SeatID  string
	Persona string
	Envelope llm.Envelope
}

// DebateState is the mutable accumulator threaded through a pipeline run.
type DebateState struct {
	RoundIndex        int
	Candidates        map[string]candidateEntry // seat_id -> current round output
	RevisedCandidates map[string]candidateEntry
	Scores            []models.Score
	Ranking           []ranking.FusedResult
	FinalContent      string
	FinalMeta         map[string]any
	Status            models.DebateStatus
	FailedSeats       []string
	Transcript        []models.Message
}

// NewDebateState returns the zero-valued starting state for a fresh run.
func NewDebateState() *DebateState {
	return &DebateState{
		Candidates:        make(map[string]candidateEntry),
		RevisedCandidates: make(map[string]candidateEntry),
		FinalMeta:         make(map[string]any),
		Status:            models.DebateStatusRunning,
	}
}

// orderedSeatIDs returns seat IDs in the panel's declared order, so
// fan-out results that complete out of order are reassembled
// deterministically before persisting or publishing, per spec §5.
func orderedSeatIDs(seats []models.Seat) []string {
	ids := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.SeatID
	}
	return ids
}
