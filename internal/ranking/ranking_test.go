package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuse_UnanimousRankingProducesClearWinner(t *testing.T) {
	rankings := [][]string{
		{"alice", "bob", "carol"},
		{"alice", "carol", "bob"},
		{"alice", "bob", "carol"},
	}
	results := Fuse(rankings)
	assert.Equal(t, "alice", results[0].Candidate)
}

func TestFuse_BordaScoring(t *testing.T) {
	rankings := [][]string{
		{"A", "B", "C"},
		{"A", "C", "B"},
		{"B", "A", "C"},
	}
	results := Fuse(rankings)
	// A: 2+2+1=5, B: 1+0+2=3, C: 0+1+0=1
	byName := map[string]FusedResult{}
	for _, r := range results {
		byName[r.Candidate] = r
	}
	assert.Equal(t, 5, byName["A"].BordaScore)
	assert.Equal(t, 3, byName["B"].BordaScore)
	assert.Equal(t, 1, byName["C"].BordaScore)
	assert.Equal(t, "A", results[0].Candidate)
}

func TestFuse_CondorcetDominance(t *testing.T) {
	rankings := [][]string{
		{"A", "B", "C"},
		{"A", "C", "B"},
		{"B", "A", "C"},
	}
	results := Fuse(rankings)
	byName := map[string]FusedResult{}
	for _, r := range results {
		byName[r.Candidate] = r
	}
	// A beats B (2-1) and C (3-0): dominates 2 others
	assert.Equal(t, 2, byName["A"].CondorcetScore)
}

func TestFuse_TieBreaksOnBordaThenCondorcet(t *testing.T) {
	rankings := [][]string{
		{"A", "B"},
		{"B", "A"},
	}
	results := Fuse(rankings)
	assert.Len(t, results, 2)
	// symmetric tie: both have equal borda(1 each) and condorcet(0 each)
	assert.Equal(t, results[0].BordaScore, results[1].BordaScore)
}

func TestKFactor_NewPersonaUsesHigherK(t *testing.T) {
	assert.Equal(t, 32.0, KFactor(5, 20))
	assert.Equal(t, 32.0, KFactor(20, 5))
	assert.Equal(t, 24.0, KFactor(20, 30))
}

func TestExpectedScore_EqualRatingsGivesHalf(t *testing.T) {
	assert.InDelta(t, 0.5, ExpectedScore(1500, 1500), 0.0001)
}

func TestExpectedScore_HigherRatingFavored(t *testing.T) {
	assert.Greater(t, ExpectedScore(1600, 1400), 0.5)
}

func TestUpdateElo_WinnerGainsLoserLoses(t *testing.T) {
	update := UpdateElo(1500, 1500, 20, 20)
	assert.Greater(t, update.WinnerNewRating, 1500.0)
	assert.Less(t, update.LoserNewRating, 1500.0)
	// Symmetric match: gain and loss should be equal magnitude
	assert.InDelta(t, update.WinnerNewRating-1500, 1500-update.LoserNewRating, 0.0001)
}

func TestUpdateElo_UsesHigherKForNewPersonas(t *testing.T) {
	establishedUpdate := UpdateElo(1500, 1500, 20, 20)
	newUpdate := UpdateElo(1500, 1500, 5, 20)
	assert.Greater(t, newUpdate.WinnerNewRating-1500, establishedUpdate.WinnerNewRating-1500)
}

func TestWilsonInterval_ZeroTotal(t *testing.T) {
	low, high := WilsonInterval(0, 0)
	assert.Equal(t, 0.0, low)
	assert.Equal(t, 0.0, high)
}

func TestWilsonInterval_PerfectRecordNarrowsWithMoreMatches(t *testing.T) {
	lowFew, highFew := WilsonInterval(5, 5)
	lowMany, highMany := WilsonInterval(100, 100)
	assert.Less(t, lowFew, lowMany)
	assert.GreaterOrEqual(t, highFew, highMany)
}

func TestWilsonInterval_BoundsWithinZeroOne(t *testing.T) {
	low, high := WilsonInterval(3, 10)
	assert.GreaterOrEqual(t, low, 0.0)
	assert.LessOrEqual(t, high, 1.0)
	assert.Less(t, low, high)
}
