package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/superagent/debatecore/internal/models"
)

// TranscriptRepository persists a debate's messages, scores, and votes.
// It satisfies internal/pipeline.MessageWriter so the stage engine can
// depend on the narrow interface rather than this concrete type.
type TranscriptRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewTranscriptRepository creates a new transcript repository.
func NewTranscriptRepository(pool *pgxpool.Pool, log *logrus.Logger) *TranscriptRepository {
	if log == nil {
		log = logrus.New()
	}
	return &TranscriptRepository{pool: pool, log: log}
}

// SaveMessages batch-inserts one or more round messages.
func (r *TranscriptRepository) SaveMessages(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	batch := make([][]any, 0, len(messages))
	for _, m := range messages {
		meta, err := json.Marshal(m.Meta)
		if err != nil {
			return fmt.Errorf("marshal message meta: %w", err)
		}
		batch = append(batch, []any{m.DebateID, m.RoundIndex, m.Role, m.Persona, m.Content, meta})
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin message batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range batch {
		_, err := tx.Exec(ctx, `
			INSERT INTO messages (debate_id, round_index, role, persona, content, meta)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, row...)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// SaveScores batch-inserts one round's judge scores.
func (r *TranscriptRepository) SaveScores(ctx context.Context, scores []models.Score) error {
	if len(scores) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin score batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range scores {
		meta, err := json.Marshal(s.Meta)
		if err != nil {
			return fmt.Errorf("marshal score meta: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO scores (debate_id, persona, judge, score, rationale, meta)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.DebateID, s.Persona, s.Judge, s.Score, s.Rationale, meta)
		if err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// SaveVote records a debate's fused ranking result.
func (r *TranscriptRepository) SaveVote(ctx context.Context, vote models.Vote) error {
	rankings, err := json.Marshal(vote.Rankings)
	if err != nil {
		return fmt.Errorf("marshal vote rankings: %w", err)
	}
	weights, err := json.Marshal(vote.Weights)
	if err != nil {
		return fmt.Errorf("marshal vote weights: %w", err)
	}
	result, err := json.Marshal(vote.Result)
	if err != nil {
		return fmt.Errorf("marshal vote result: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO votes (debate_id, method, rankings, weights, result)
		VALUES ($1, $2, $3, $4, $5)
	`, vote.DebateID, vote.Method, rankings, weights, result)
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// HasOutput reports whether a debate already produced a Vote row or
// non-empty final content, satisfying internal/reaper's OutputChecker —
// a stale run that got this far is salvaged as degraded rather than
// discarded.
func (r *TranscriptRepository) HasOutput(ctx context.Context, debateID string) (bool, error) {
	var voteCount int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM votes WHERE debate_id = $1`, debateID).Scan(&voteCount)
	if err != nil {
		return false, fmt.Errorf("count votes: %w", err)
	}
	if voteCount > 0 {
		return true, nil
	}

	var finalContent *string
	err = r.pool.QueryRow(ctx, `SELECT final_content FROM debates WHERE id = $1`, debateID).Scan(&finalContent)
	if err != nil {
		return false, fmt.Errorf("read final content: %w", err)
	}
	return finalContent != nil && *finalContent != "", nil
}

// SavePairwiseVote records one pairwise outcome for Elo feed-forward.
func (r *TranscriptRepository) SavePairwiseVote(ctx context.Context, pv models.PairwiseVote) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pairwise_votes (debate_id, category, candidate_a, candidate_b, winner, judge_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, pv.DebateID, pv.Category, pv.CandidateA, pv.CandidateB, pv.Winner, pv.JudgeID, pv.UserID)
	if err != nil {
		return fmt.Errorf("insert pairwise vote: %w", err)
	}
	return nil
}

// Transcript loads a debate's full message history in round/insertion
// order, for resume and for conversation mode's facilitator stage.
func (r *TranscriptRepository) Transcript(ctx context.Context, debateID string) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT debate_id, round_index, role, persona, content, meta, created_at
		FROM messages WHERE debate_id = $1 ORDER BY round_index, id
	`, debateID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var meta []byte
		if err := rows.Scan(&m.DebateID, &m.RoundIndex, &m.Role, &m.Persona, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &m.Meta)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
