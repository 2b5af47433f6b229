package llm

import (
	"encoding/json"
	"strings"
)

// maxFallbackContentLen bounds the raw-text fallback when a seat's output
// fails to parse as the envelope shape (spec §4.2: "falls back to
// {content: raw[:16384]}").
const maxFallbackContentLen = 16384

// Envelope is the JSON contract every seat LLM call must obey:
// {"content": str, "reasoning"?: str, "stance"?: str}.
type Envelope struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`
	Stance    string `json:"stance,omitempty"`
}

// ParseEnvelope extracts the outermost {...} block from raw seat output and
// decodes it as an Envelope. On any failure it falls back to a
// content-only envelope built from the truncated raw text, per spec §4.2.
func ParseEnvelope(raw string) Envelope {
	block := extractOutermostObject(raw)
	if block != "" {
		var env Envelope
		if err := json.Unmarshal([]byte(block), &env); err == nil && env.Content != "" {
			return env
		}
	}
	return Envelope{Content: truncate(raw, maxFallbackContentLen)}
}

// JudgeVerdict is the strict JSON shape the Judge stage requires from a
// judge LLM call: {"score": number∈[0,10], "rationale": string}.
type JudgeVerdict struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// defaultJudgeScore is synthesized when a judge's output cannot be parsed,
// per spec §4.1's tolerant-extraction rule for the Judge stage.
const defaultJudgeScore = 6.5

// ParseJudgeVerdict locates the outermost {...} block in a judge's raw
// output and decodes score/rationale, clamping score into [0, 10]. On parse
// failure it synthesizes score=6.5 with the raw text as rationale.
func ParseJudgeVerdict(raw string) JudgeVerdict {
	block := extractOutermostObject(raw)
	if block != "" {
		var v JudgeVerdict
		if err := json.Unmarshal([]byte(block), &v); err == nil {
			return JudgeVerdict{Score: clampScore(v.Score), Rationale: v.Rationale}
		}
	}
	return JudgeVerdict{Score: defaultJudgeScore, Rationale: raw}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}

// extractOutermostObject returns the substring spanning the first '{' and
// its matching '}', tracking nesting so embedded objects/strings do not
// terminate the scan early. Returns "" if no balanced object is found.
func extractOutermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
