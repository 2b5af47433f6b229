package pipeline

import (
	"context"
	"fmt"

	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/ranking"
	"github.com/superagent/debatecore/internal/seat"
)

// RunExplore is the parliament pipeline's opening stage: every seat
// independently proposes an initial position, same fan-out/tolerance
// shape as RunDraft but labeled for the parliament round sequence.
func RunExplore(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
	results := runFanout(ctx, dc.Seats, dc.FanoutMax, func(ctx context.Context, s models.Seat) (seat.Output, error) {
		return dc.SeatRuntime.Run(ctx, seat.Input{
			Seat:         s,
			RoundLabel:   models.RoundExplore,
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
			DebateID: dc.Debate.ID, RoundIndex: state.RoundIndex, Role: models.RoleCandidate,
			Persona: r.SeatID, Content: r.Output.Envelope.Content,
		})
	}

	ok, reason := toleranceCheck(len(dc.Seats), len(failed), dc.MinRequiredSeats, dc.MaxSeatFailRatio)
	if !ok {
		return state, fmt.Errorf("explore stage: %w: %s", models.ErrStageFatal, reason)
	}
	state.FailedSeats = append(state.FailedSeats, failed...)
	state.Transcript = append(state.Transcript, messages...)
	if dc.Messages != nil {
		if err := dc.Messages.SaveMessages(ctx, messages); err != nil {
			return state, fmt.Errorf("explore stage: persist messages: %w", err)
		}
	}
	return state, nil
}

// RunRebuttal lets every seat respond to the rest of the chamber's
// explore-stage positions, producing a revised candidate. Functionally
// identical to RunCritique's peer-aware fan-out, under the parliament
// round label.
func RunRebuttal(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
	return runPeerAwareStage(ctx, dc, state, models.RoundRebuttal, "Rebut the weakest points of the peer positions below, revising your own stance as needed.")
}

// RunConverge asks every seat, having seen all rebuttals, to state whether
// it can converge on a shared position or must hold its ground — another
// peer-aware revision pass, feeding the chamber's final candidate set.
func RunConverge(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
	return runPeerAwareStage(ctx, dc, state, models.RoundConverge, "Given the full chamber's rebuttals, either converge on a shared position or state precisely why you hold your ground.")
}

func runPeerAwareStage(ctx context.Context, dc *DebateContext, state *DebateState, label models.RoundLabel, instruction string) (*DebateState, error) {
	candidates := finalCandidates(state)
	activeSeats := make([]models.Seat, 0, len(dc.Seats))
	for _, s := range dc.Seats {
		if _, ok := candidates[s.SeatID]; ok {
			activeSeats = append(activeSeats, s)
		}
	}

	results := runFanout(ctx, activeSeats, dc.FanoutMax, func(ctx context.Context, s models.Seat) (seat.Output, error) {
		own := candidates[s.SeatID]
		prompt := fmt.Sprintf(
			"%s\n\nYour current position:\n%s\n\nChamber positions:%s\n\n%s",
			dc.Debate.Prompt, own.Envelope.Content, renderCandidates(orderedPersonas(dc.Seats, candidates), candidates), instruction,
		)
		return dc.SeatRuntime.Run(ctx, seat.Input{
			Seat:         s,
			RoundLabel:   label,
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
			DebateID: dc.Debate.ID, RoundIndex: state.RoundIndex, Role: models.RoleRevised,
			Persona: r.SeatID, Content: r.Output.Envelope.Content,
		})
	}

	ok, reason := toleranceCheck(len(activeSeats), len(failed), dc.MinRequiredSeats, dc.MaxSeatFailRatio)
	if !ok {
		return state, fmt.Errorf("%s stage: %w: %s", label, models.ErrStageFatal, reason)
	}
	state.FailedSeats = append(state.FailedSeats, failed...)
	state.Transcript = append(state.Transcript, messages...)
	if dc.Messages != nil {
		if err := dc.Messages.SaveMessages(ctx, messages); err != nil {
			return state, fmt.Errorf("%s stage: persist messages: %w", label, err)
		}
	}
	return state, nil
}

// RunChairVerdict has the panel's chair seat deliver a binding verdict
// over the ranked field, after the Judge stage has scored and fused a
// ranking. This is the parliament pipeline's terminal stage in place of
// RunSynthesis.
func RunChairVerdict(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
	candidates := finalCandidates(state)
	top := state.Ranking
	if len(top) > synthesisTopN {
		top = top[:synthesisTopN]
	}
	if len(top) == 0 {
		return state, fmt.Errorf("chair_verdict stage: %w: no ranked candidates", models.ErrStageFatal)
	}

	prompt := fmt.Sprintf("%s\n\nTop-ranked chamber positions:%s\n\nAs chair, deliver the binding verdict.",
		dc.Debate.Prompt, renderCandidates(rankedCandidateIDs(top), candidates))

	out, err := dc.SeatRuntime.Run(ctx, seat.Input{
		Seat:         dc.Synth,
		RoundLabel:   models.RoundChairVerdict,
		DebatePrompt: prompt,
		Transcript:   state.Transcript,
	})
	if err != nil {
		return state, fmt.Errorf("chair_verdict stage: %w: %v", models.ErrStageFatal, err)
	}
	if out.Blocked {
		return state, fmt.Errorf("chair_verdict stage: %w: blocked by %s", models.ErrStageFatal, out.BlockedBy)
	}
	if dc.Usage != nil {
		dc.Usage.Add(out.Usage)
	}

	state.FinalContent = out.Envelope.Content
	state.FinalMeta["ranking"] = top
	state.Status = models.DebateStatusCompleted
	return state, nil
}

func rankedCandidateIDs(results []ranking.FusedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Candidate
	}
	return ids
}
