// Package ranking fuses per-judge rankings into one overall ranking
// (Borda count + Condorcet pairwise dominance) and maintains persona Elo
// ratings with Wilson confidence intervals across debates.
package ranking

import (
	"math"
	"sort"
)

// FusedResult is one candidate's combined ranking outcome.
type FusedResult struct {
	Candidate       string
	BordaScore      int
	CondorcetScore  int
	CombinedScore   int
}

// Fuse takes one ranking (best-to-worst persona order) per judge and
// returns every candidate scored by Borda count (position-based,
// n-i-1 points) and Condorcet pairwise win count, ordered by
// (borda+condorcet desc, borda desc, condorcet desc).
func Fuse(rankings [][]string) []FusedResult {
	candidates := uniqueCandidates(rankings)
	borda := bordaScores(rankings, candidates)
	condorcet := condorcetScores(rankings, candidates)

	results := make([]FusedResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, FusedResult{
			Candidate:      c,
			BordaScore:     borda[c],
			CondorcetScore: condorcet[c],
			CombinedScore:  borda[c] + condorcet[c],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if a.BordaScore != b.BordaScore {
			return a.BordaScore > b.BordaScore
		}
		return a.CondorcetScore > b.CondorcetScore
	})
	return results
}

func uniqueCandidates(rankings [][]string) []string {
	seen := make(map[string]bool)
	var ordered []string
	for _, r := range rankings {
		for _, c := range r {
			if !seen[c] {
				seen[c] = true
				ordered = append(ordered, c)
			}
		}
	}
	sort.Strings(ordered)
	return ordered
}

// bordaScores assigns n-i-1 points to the candidate at position i of an
// n-candidate ranking, summed across every judge's ranking.
func bordaScores(rankings [][]string, candidates []string) map[string]int {
	scores := make(map[string]int, len(candidates))
	for _, c := range candidates {
		scores[c] = 0
	}
	for _, r := range rankings {
		n := len(r)
		for i, c := range r {
			scores[c] += n - i - 1
		}
	}
	return scores
}

// condorcetScores counts, for each candidate, how many other candidates
// it pairwise-dominates (is ranked above, by a majority of judges).
func condorcetScores(rankings [][]string, candidates []string) map[string]int {
	wins := make(map[string]map[string]int)
	for _, c := range candidates {
		wins[c] = make(map[string]int)
	}

	for _, r := range rankings {
		pos := make(map[string]int, len(r))
		for i, c := range r {
			pos[c] = i
		}
		for i := 0; i < len(candidates); i++ {
			for j := i + 1; j < len(candidates); j++ {
				a, b := candidates[i], candidates[j]
				pa, aok := pos[a]
				pb, bok := pos[b]
				if !aok || !bok {
					continue
				}
				if pa < pb {
					wins[a][b]++
				} else if pb < pa {
					wins[b][a]++
				}
			}
		}
	}

	scores := make(map[string]int, len(candidates))
	for _, a := range candidates {
		count := 0
		for _, b := range candidates {
			if a == b {
				continue
			}
			if wins[a][b] > wins[b][a] {
				count++
			}
		}
		scores[a] = count
	}
	return scores
}

// EloUpdate is the symmetric result of one rated match between two
// personas.
type EloUpdate struct {
	WinnerNewRating float64
	LoserNewRating  float64
}

// KFactor returns the Elo K-factor for a match: 32 if either participant
// has fewer than 15 rated matches, 24 otherwise (new personas' ratings
// move faster until they stabilize).
func KFactor(winnerMatches, loserMatches int) float64 {
	if winnerMatches < 15 || loserMatches < 15 {
		return 32
	}
	return 24
}

// ExpectedScore is the standard Elo expected-score formula for player a
// against player b.
func ExpectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}

// UpdateElo applies one match's outcome (winner beat loser) to both
// ratings using the K-factor selected by KFactor.
func UpdateElo(winnerRating, loserRating float64, winnerMatches, loserMatches int) EloUpdate {
	k := KFactor(winnerMatches, loserMatches)
	expectedWinner := ExpectedScore(winnerRating, loserRating)
	expectedLoser := 1.0 - expectedWinner

	return EloUpdate{
		WinnerNewRating: winnerRating + k*(1.0-expectedWinner),
		LoserNewRating:  loserRating + k*(0.0-expectedLoser),
	}
}

// WilsonInterval computes the Wilson score confidence interval for a
// binomial proportion (wins/total) at z=1.96 (95% confidence), returning
// (low, high) bounds in [0, 1]. Returns (0, 0) for n == 0.
func WilsonInterval(wins, total int) (low, high float64) {
	if total == 0 {
		return 0, 0
	}
	const z = 1.96
	n := float64(total)
	p := float64(wins) / n
	z2 := z * z

	denominator := 1 + z2/n
	center := p + z2/(2*n)
	margin := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n))

	low = (center - margin) / denominator
	high = (center + margin) / denominator

	if low < 0 {
		low = 0
	}
	if high > 1 {
		high = 1
	}
	return low, high
}
