package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/ranking"
	"github.com/superagent/debatecore/internal/seat"
)

// RunJudge scores each candidate (post-critique where available) against
// every configured judge over a shared rubric, aggregates per-persona
// scores by arithmetic mean, then fuses each judge's own ranking of the
// field into an overall Borda+Condorcet ranking (spec §4.1's "Ranking,
// embedded in Judge stage epilogue").
func RunJudge(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error) {
	candidates := finalCandidates(state)
	personaOrder := orderedPersonas(dc.Seats, candidates)
	if len(personaOrder) == 0 {
		return state, fmt.Errorf("judge stage: %w: no candidates to judge", models.ErrStageFatal)
	}

	rubricBlock := renderCandidates(personaOrder, candidates)

	type judgeRun struct {
		judgeID    string
		scores     map[string]float64
		rationales map[string]string
	}

	// scoreEntry pairs a persona's score with the judge that gave it, so a
	// judge who fails for some personas but not others never has its
	// scores misattributed to a different judge.
	type scoreEntry struct {
		judgeID   string
		score     float64
		rationale string
	}

	allEntries := make(map[string][]scoreEntry, len(personaOrder))
	var perJudgeRankings [][]string

	for _, judge := range dc.Judges {
		jr := judgeRun{judgeID: judge.SeatID, scores: map[string]float64{}, rationales: map[string]string{}}
		for _, persona := range personaOrder {
			prompt := fmt.Sprintf(
				"%s\n\nCandidate from %s:\n%s\n\nScore this candidate against the other submissions:\n%s",
				dc.Debate.Prompt, persona, candidates[persona].Envelope.Content, rubricBlock,
			)
			out, err := dc.SeatRuntime.Run(ctx, seat.Input{
				Seat:         judge,
				RoundLabel:   models.RoundJudge,
				DebatePrompt: prompt,
				Transcript:   state.Transcript,
				IsJudge:      true,
			})
			if err != nil || out.Blocked {
				continue
			}
			if dc.Usage != nil {
				dc.Usage.Add(out.Usage)
			}
			jr.scores[persona] = out.Verdict.Score
			jr.rationales[persona] = out.Verdict.Rationale
		}
		for persona, score := range jr.scores {
			allEntries[persona] = append(allEntries[persona], scoreEntry{
				judgeID:   jr.judgeID,
				score:     score,
				rationale: jr.rationales[persona],
			})
		}
		perJudgeRankings = append(perJudgeRankings, rankByScore(personaOrder, jr.scores))
	}

	meanScores := make(map[string]float64, len(personaOrder))
	scores := make([]models.Score, 0, len(personaOrder)*len(dc.Judges))
	for _, persona := range personaOrder {
		entries := allEntries[persona]
		mean := 6.5
		if len(entries) > 0 {
			sum := 0.0
			for _, e := range entries {
				sum += e.score
			}
			mean = sum / float64(len(entries))
		}
		meanScores[persona] = mean
		for _, e := range entries {
			scores = append(scores, models.Score{
				DebateID:  dc.Debate.ID,
				Persona:   persona,
				Judge:     e.judgeID,
				Score:     e.score,
				Rationale: e.rationale,
			})
		}
	}

	if len(perJudgeRankings) == 0 {
		perJudgeRankings = [][]string{rankByScore(personaOrder, meanScores)}
	}
	fused := ranking.Fuse(perJudgeRankings)

	state.Scores = scores
	state.Ranking = fused
	if dc.Messages != nil {
		if err := dc.Messages.SaveScores(ctx, scores); err != nil {
			return state, fmt.Errorf("judge stage: persist scores: %w", err)
		}
	}

	rankedIDs := make([]string, len(fused))
	for i, f := range fused {
		rankedIDs[i] = f.Candidate
	}
	vote := models.Vote{
		DebateID: dc.Debate.ID,
		Method:   "borda_condorcet",
		Rankings: rankedIDs,
	}
	if dc.Messages != nil {
		if err := dc.Messages.SaveVote(ctx, vote); err != nil {
			return state, fmt.Errorf("judge stage: persist vote: %w", err)
		}
	}
	return state, nil
}

// orderedPersonas returns the seats with a final candidate, in panel
// declaration order.
func orderedPersonas(seats []models.Seat, candidates map[string]candidateEntry) []string {
	var out []string
	for _, s := range seats {
		if _, ok := candidates[s.SeatID]; ok {
			out = append(out, s.SeatID)
		}
	}
	return out
}

func renderCandidates(order []string, candidates map[string]candidateEntry) string {
	var sb strings.Builder
	for _, persona := range order {
		sb.WriteString(fmt.Sprintf("\n[%s] %s", persona, candidates[persona].Envelope.Content))
	}
	return sb.String()
}

// rankByScore orders personas best-to-worst by score, breaking ties by
// original panel position (spec §4.1: "ties are broken by the persona's
// original position among revised candidates").
func rankByScore(order []string, scores map[string]float64) []string {
	ranked := append([]string(nil), order...)
	position := make(map[string]int, len(order))
	for i, p := range order {
		position[p] = i
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si != sj {
			return si > sj
		}
		return position[ranked[i]] < position[ranked[j]]
	})
	return ranked
}
