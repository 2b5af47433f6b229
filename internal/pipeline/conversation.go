package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/seat"
)

// RunConversationRound runs one round of every seat speaking, in
// parallel, followed by a Scribe summarizing the round into the
// transcript. Conversation mode repeats this for N rounds before a final
// Facilitator synthesis; see RunFacilitator.
func RunConversationRound(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
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
		messages = append(messages, models.Message{
			DebateID: dc.Debate.ID, RoundIndex: state.RoundIndex, Role: models.RoleSeat,
			Persona: r.SeatID, Content: r.Output.Envelope.Content,
		})
	}

	ok, reason := toleranceCheck(len(dc.Seats), len(failed), dc.MinRequiredSeats, dc.MaxSeatFailRatio)
	if !ok {
		return state, fmt.Errorf("conversation round: %w: %s", models.ErrStageFatal, reason)
	}
	state.FailedSeats = append(state.FailedSeats, failed...)
	state.Transcript = append(state.Transcript, messages...)
	if dc.Messages != nil {
		if err := dc.Messages.SaveMessages(ctx, messages); err != nil {
			return state, fmt.Errorf("conversation round: persist messages: %w", err)
		}
	}

	scribe, err := runScribe(ctx, dc, state)
	if err != nil {
		return state, err
	}
	state.Transcript = append(state.Transcript, scribe)
	if dc.Messages != nil {
		if err := dc.Messages.SaveMessages(ctx, []models.Message{scribe}); err != nil {
			return state, fmt.Errorf("scribe stage: persist message: %w", err)
		}
	}
	state.RoundIndex++
	return state, nil
}

// runScribe summarizes the just-completed round into one scribe message,
// keeping the running transcript bounded for later rounds and for the
// final facilitator synthesis.
func runScribe(ctx context.Context, dc *DebateContext, state *DebateState) (models.Message, error) {
	var sb strings.Builder
	sb.WriteString("Summarize this round of the conversation in a few sentences, preserving the key points raised by each speaker.")
	for _, m := range recentRoundMessages(state) {
		sb.WriteString(fmt.Sprintf("\n[%s] %s", m.Persona, m.Content))
	}

	out, err := dc.SeatRuntime.Run(ctx, seat.Input{
		Seat:         dc.Synth,
		RoundLabel:   models.RoundScribe,
		DebatePrompt: sb.String(),
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("scribe stage: %w: %v", models.ErrStageFatal, err)
	}
	if out.Blocked {
		return models.Message{}, fmt.Errorf("scribe stage: %w: blocked by %s", models.ErrStageFatal, out.BlockedBy)
	}
	if dc.Usage != nil {
		dc.Usage.Add(out.Usage)
	}
	return models.Message{
		DebateID: dc.Debate.ID, RoundIndex: state.RoundIndex, Role: models.RoleScribe,
		Persona: "scribe", Content: out.Envelope.Content,
	}, nil
}

func recentRoundMessages(state *DebateState) []models.Message {
	var out []models.Message
	for _, m := range state.Transcript {
		if m.RoundIndex == state.RoundIndex {
			out = append(out, m)
		}
	}
	return out
}

// RunFacilitator is conversation mode's terminal stage: it synthesizes
// the full round-by-round transcript (seat turns plus scribe summaries)
// into one final answer.
func RunFacilitator(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
	var sb strings.Builder
	sb.WriteString(dc.Debate.Prompt)
	sb.WriteString("\n\nFull conversation transcript:")
	for _, m := range state.Transcript {
		sb.WriteString(fmt.Sprintf("\n[round %d][%s] %s", m.RoundIndex, m.Persona, m.Content))
	}
	sb.WriteString("\n\nAs facilitator, produce the single best final answer the conversation converged on.")

	out, err := dc.SeatRuntime.Run(ctx, seat.Input{
		Seat:         dc.Synth,
		RoundLabel:   models.RoundFacilitator,
		DebatePrompt: sb.String(),
	})
	if err != nil {
		return state, fmt.Errorf("facilitator stage: %w: %v", models.ErrStageFatal, err)
	}
	if out.Blocked {
		return state, fmt.Errorf("facilitator stage: %w: blocked by %s", models.ErrStageFatal, out.BlockedBy)
	}
	if dc.Usage != nil {
		dc.Usage.Add(out.Usage)
	}

	state.FinalContent = out.Envelope.Content
	state.Status = models.DebateStatusCompleted
	return state, nil
}
