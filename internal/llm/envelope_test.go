package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvelope_Valid(t *testing.T) {
	env := ParseEnvelope(`{"content": "AI adoption looks promising.", "stance": "pro"}`)
	assert.Equal(t, "AI adoption looks promising.", env.Content)
	assert.Equal(t, "pro", env.Stance)
}

func TestParseEnvelope_EmbeddedInProse(t *testing.T) {
	raw := `Sure, here's my answer: {"content": "We should adopt it.", "reasoning": "cost savings"} -- hope that helps`
	env := ParseEnvelope(raw)
	assert.Equal(t, "We should adopt it.", env.Content)
	assert.Equal(t, "cost savings", env.Reasoning)
}

func TestParseEnvelope_NestedBraces(t *testing.T) {
	raw := `{"content": "has a {nested} thought", "stance": "neutral"}`
	env := ParseEnvelope(raw)
	assert.Equal(t, "has a {nested} thought", env.Content)
}

func TestParseEnvelope_FallsBackOnMalformedJSON(t *testing.T) {
	raw := "this is not json at all, just a plain response from the model"
	env := ParseEnvelope(raw)
	assert.Equal(t, raw, env.Content)
}

func TestParseEnvelope_FallbackTruncatesLongRaw(t *testing.T) {
	raw := strings.Repeat("a", maxFallbackContentLen+500)
	env := ParseEnvelope(raw)
	assert.Len(t, env.Content, maxFallbackContentLen)
}

func TestParseJudgeVerdict_Valid(t *testing.T) {
	v := ParseJudgeVerdict(`{"score": 8.5, "rationale": "well argued"}`)
	assert.Equal(t, 8.5, v.Score)
	assert.Equal(t, "well argued", v.Rationale)
}

func TestParseJudgeVerdict_ClampsOutOfRangeScore(t *testing.T) {
	v := ParseJudgeVerdict(`{"score": 15, "rationale": "too generous"}`)
	assert.Equal(t, 10.0, v.Score)

	v = ParseJudgeVerdict(`{"score": -3, "rationale": "too harsh"}`)
	assert.Equal(t, 0.0, v.Score)
}

func TestParseJudgeVerdict_FallsBackOnMalformedJSON(t *testing.T) {
	raw := "I think this deserves a high score but I won't format it as JSON"
	v := ParseJudgeVerdict(raw)
	assert.Equal(t, defaultJudgeScore, v.Score)
	assert.Equal(t, raw, v.Rationale)
}
