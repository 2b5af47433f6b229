package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superagent/debatecore/internal/llm"
	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/seat"
)

// selectiveJudgeClient fails only when scoring one specific persona,
// simulating a judge that succeeds for some candidates in a round but
// errors out on others.
type selectiveJudgeClient struct {
	name        string
	failPersona string
	score       float64
}

func (c *selectiveJudgeClient) Name() string { return c.name }

func (c *selectiveJudgeClient) Call(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	for _, m := range req.Messages {
		if c.failPersona != "" && strings.Contains(m.Content, "Candidate from "+c.failPersona) {
			return llm.ChatResponse{}, fmt.Errorf("judge unavailable for this candidate")
		}
	}
	return llm.ChatResponse{Content: fmt.Sprintf(`{"score": %.1f, "rationale": "ok"}`, c.score)}, nil
}

func TestRunJudge_PartialJudgeFailureDoesNotMisattributeScores(t *testing.T) {
	registry := llm.NewRegistry()
	registry.Register("judge-1", &selectiveJudgeClient{name: "judge-1", score: 7})
	registry.Register("judge-2", &selectiveJudgeClient{name: "judge-2", failPersona: "seat-0", score: 9})

	dc := &DebateContext{
		Debate: models.Debate{ID: "debate-1", Prompt: "topic"},
		Seats: []models.Seat{
			{SeatID: "seat-0", ProviderKey: "seat-0"},
			{SeatID: "seat-1", ProviderKey: "seat-1"},
		},
		Judges: []models.Seat{
			{SeatID: "judge-1", ProviderKey: "judge-1"},
			{SeatID: "judge-2", ProviderKey: "judge-2"},
		},
		SeatRuntime: &seat.Runtime{Registry: registry, RetryCfg: llm.RetryConfig{Enabled: false, MaxAttempts: 1}},
		Usage:       &models.UsageAccumulator{},
	}
	state := NewDebateState()
	state.Candidates = map[string]candidateEntry{
		"seat-0": {SeatID: "seat-0", Persona: "seat-0", Envelope: llm.Envelope{Content: "seat-0's position"}},
		"seat-1": {SeatID: "seat-1", Persona: "seat-1", Envelope: llm.Envelope{Content: "seat-1's position"}},
	}

	_, err := RunJudge(context.Background(), dc, state)
	require.NoError(t, err)

	var seat0FromJudge1, seat1FromJudge1, seat1FromJudge2 bool
	seat0Scores := 0
	for _, s := range state.Scores {
		switch {
		case s.Persona == "seat-0" && s.Judge == "judge-1":
			seat0FromJudge1 = true
			seat0Scores++
		case s.Persona == "seat-0" && s.Judge == "judge-2":
			t.Fatalf("judge-2 failed for seat-0 and must not appear as its scorer")
		case s.Persona == "seat-1" && s.Judge == "judge-1":
			seat1FromJudge1 = true
		case s.Persona == "seat-1" && s.Judge == "judge-2":
			seat1FromJudge2 = true
		}
	}

	assert.True(t, seat0FromJudge1, "seat-0 should have exactly one score, from judge-1")
	assert.Equal(t, 1, seat0Scores)
	assert.True(t, seat1FromJudge1, "seat-1 should have a score from judge-1")
	assert.True(t, seat1FromJudge2, "seat-1 should have a score from judge-2")
}
