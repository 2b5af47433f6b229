package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/ranking"
	"github.com/superagent/debatecore/internal/seat"
)

// synthesisTopN caps how many top-ranked candidates feed the synthesizer,
// per spec §4.1: "selects top-2 (or fewer) by rank".
const synthesisTopN = 2

// RunSynthesis sends the top-ranked candidates, their scores, and judge
// rationales to the dedicated synthesizer persona; its output becomes the
// debate's final_content.
func RunSynthesis(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
	candidates := finalCandidates(state)
	top := state.Ranking
	if len(top) > synthesisTopN {
		top = top[:synthesisTopN]
	}
	if len(top) == 0 {
		return state, fmt.Errorf("synthesis stage: %w: no ranked candidates", models.ErrStageFatal)
	}

	var sb strings.Builder
	sb.WriteString(dc.Debate.Prompt)
	sb.WriteString("\n\nTop-ranked submissions:")
	for _, r := range top {
		entry, ok := candidates[r.Candidate]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n\n[%s] (borda=%d condorcet=%d)\n%s", r.Candidate, r.BordaScore, r.CondorcetScore, entry.Envelope.Content))
	}
	for _, s := range state.Scores {
		sb.WriteString(fmt.Sprintf("\n[score] %s by %s: %.1f — %s", s.Persona, s.Judge, s.Score, s.Rationale))
	}
	sb.WriteString("\n\nSynthesize the single strongest final answer, drawing on the above.")

	out, err := dc.SeatRuntime.Run(ctx, seat.Input{
		Seat:         dc.Synth,
		RoundLabel:   models.RoundSynthesis,
		DebatePrompt: sb.String(),
		Transcript:   state.Transcript,
	})
	if err != nil || out.Blocked {
		return degradeWithFallback(state, candidates, top, err)
	}
	if dc.Usage != nil {
		dc.Usage.Add(out.Usage)
	}

	state.FinalContent = out.Envelope.Content
	state.FinalMeta["ranking"] = top
	state.Status = models.DebateStatusCompleted
	return state, nil
}

// degradeWithFallback handles synthesis failure per spec §4.1: the debate
// finishes degraded rather than failed, with the best-scoring revised
// candidate standing in as final_content.
func degradeWithFallback(state *DebateState, candidates map[string]candidateEntry, top []ranking.FusedResult, cause error) (*DebateState, error) {
	best, ok := candidates[top[0].Candidate]
	if !ok {
		return state, fmt.Errorf("synthesis stage: %w: synthesizer failed and no fallback candidate available: %v", models.ErrStageFatal, cause)
	}

	state.FinalContent = best.Envelope.Content
	state.FinalMeta["ranking"] = top
	state.FinalMeta["synthesis_fallback"] = true
	state.FinalMeta["synthesis_fallback_candidate"] = top[0].Candidate
	state.Status = models.DebateStatusDegraded
	return state, nil
}
