package pipeline

import (
	"context"
	"fmt"

	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/seat"
)

// RunDraft fans out one LLM call per configured seat concurrently, each
// producing an independent candidate. Individual seat failures are
// tolerated up to the panel's configured ratio/minimum; crossing either
// threshold aborts the whole debate with ErrStageFatal.
func RunDraft(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
	results := runFanout(ctx, dc.Seats, dc.FanoutMax, func(ctx context.Context, s models.Seat) (seat.Output, error) {
		return dc.SeatRuntime.Run(ctx, seat.Input{
			Seat:         s,
			RoundLabel:   models.RoundDraft,
			DebatePrompt: dc.Debate.Prompt,
			Transcript:   state.Transcript,
		})
	})

	var failed []string
	messages := make([]models.Message, 0, len(results))
	for _, r := range results {
		if r.Err != nil || r.Output.Blocked {
			failed = append(failed, r.SeatID)
			continue
		}
		if dc.Usage != nil {
			dc.Usage.Add(r.Output.Usage)
		}
		state.Candidates[r.SeatID] = candidateEntry{SeatID: r.SeatID, Persona: r.SeatID, Envelope: r.Output.Envelope}
		messages = append(messages, models.Message{
			DebateID:   dc.Debate.ID,
			RoundIndex: state.RoundIndex,
			Role:       models.RoleCandidate,
			Persona:    r.SeatID,
			Content:    r.Output.Envelope.Content,
		})
	}

	ok, reason := toleranceCheck(len(dc.Seats), len(failed), dc.MinRequiredSeats, dc.MaxSeatFailRatio)
	if !ok {
		return state, fmt.Errorf("draft stage: %w: %s", models.ErrStageFatal, reason)
	}

	state.FailedSeats = append(state.FailedSeats, failed...)
	state.Transcript = append(state.Transcript, messages...)
	if dc.Messages != nil {
		if err := dc.Messages.SaveMessages(ctx, messages); err != nil {
			return state, fmt.Errorf("draft stage: persist messages: %w", err)
		}
	}
	return state, nil
}
