package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/seat"
)

// RunCritique gives each seat its own draft candidate plus a block of
// peer candidates and asks it to produce a revised version, in parallel.
func RunCritique(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
	peerBlock := func(excludeSeatID string) string {
		var sb strings.Builder
		for _, id := range orderedSeatIDs(dc.Seats) {
			if id == excludeSeatID {
				continue
			}
			entry, ok := state.Candidates[id]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("\n[%s] %s", id, entry.Envelope.Content))
		}
		return sb.String()
	}

	activeSeats := make([]models.Seat, 0, len(dc.Seats))
	for _, s := range dc.Seats {
		if _, ok := state.Candidates[s.SeatID]; ok {
			activeSeats = append(activeSeats, s)
		}
	}

	results := runFanout(ctx, activeSeats, dc.FanoutMax, func(ctx context.Context, s models.Seat) (seat.Output, error) {
		own := state.Candidates[s.SeatID]
		prompt := fmt.Sprintf(
			"%s\n\nYour draft:\n%s\n\nPeer drafts:%s\n\nRevise your position in light of the peer drafts.",
			dc.Debate.Prompt, own.Envelope.Content, peerBlock(s.SeatID),
		)
		return dc.SeatRuntime.Run(ctx, seat.Input{
			Seat:         s,
			RoundLabel:   models.RoundCritique,
			DebatePrompt: prompt,
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
		state.RevisedCandidates[r.SeatID] = candidateEntry{SeatID: r.SeatID, Persona: r.SeatID, Envelope: r.Output.Envelope}
		messages = append(messages, models.Message{
			DebateID:   dc.Debate.ID,
			RoundIndex: state.RoundIndex,
			Role:       models.RoleRevised,
			Persona:    r.SeatID,
			Content:    r.Output.Envelope.Content,
		})
	}

	ok, reason := toleranceCheck(len(activeSeats), len(failed), dc.MinRequiredSeats, dc.MaxSeatFailRatio)
	if !ok {
		return state, fmt.Errorf("critique stage: %w: %s", models.ErrStageFatal, reason)
	}

	state.FailedSeats = append(state.FailedSeats, failed...)
	state.Transcript = append(state.Transcript, messages...)
	if dc.Messages != nil {
		if err := dc.Messages.SaveMessages(ctx, messages); err != nil {
			return state, fmt.Errorf("critique stage: persist messages: %w", err)
		}
	}
	return state, nil
}

// finalCandidates resolves the working candidate set a later stage should
// judge/synthesize from: revised candidates where present, falling back
// to the original draft for any seat that had no critique output.
func finalCandidates(state *DebateState) map[string]candidateEntry {
	out := make(map[string]candidateEntry, len(state.Candidates))
	for id, entry := range state.Candidates {
		out[id] = entry
	}
	for id, entry := range state.RevisedCandidates {
		out[id] = entry
	}
	return out
}
