package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/superagent/debatecore/internal/models"
)

// CheckpointRepository persists the single durability checkpoint each
// debate carries. It satisfies internal/pipeline.CheckpointWriter.
type CheckpointRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewCheckpointRepository creates a new checkpoint repository.
func NewCheckpointRepository(pool *pgxpool.Pool, log *logrus.Logger) *CheckpointRepository {
	if log == nil {
		log = logrus.New()
	}
	return &CheckpointRepository{pool: pool, log: log}
}

// WriteCheckpoint upserts the debate's checkpoint row, advancing it to
// the stage just completed (or failed).
func (r *CheckpointRepository) WriteCheckpoint(ctx context.Context, cp models.DebateCheckpoint) error {
	meta, err := json.Marshal(cp.ContextMeta)
	if err != nil {
		return fmt.Errorf("marshal checkpoint context meta: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO debate_checkpoints (
			debate_id, step, step_index, round_index, status, attempt_count,
			resume_token, context_meta, last_checkpoint_at, last_event_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (debate_id) DO UPDATE SET
			step = EXCLUDED.step,
			step_index = EXCLUDED.step_index,
			round_index = EXCLUDED.round_index,
			status = EXCLUDED.status,
			attempt_count = debate_checkpoints.attempt_count + 1,
			context_meta = EXCLUDED.context_meta,
			last_checkpoint_at = NOW(),
			last_event_at = NOW()
	`, cp.DebateID, cp.Step, cp.StepIndex, cp.RoundIndex, cp.Status, cp.AttemptCount, cp.ResumeToken, meta)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

// StampResumeToken records a fresh resume token on a debate's first claim,
// only when it has no checkpoint yet (an INSERT ... ON CONFLICT DO NOTHING
// guards against clobbering an in-flight checkpoint from a concurrent
// heartbeat).
func (r *CheckpointRepository) StampResumeToken(ctx context.Context, debateID, token string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO debate_checkpoints (debate_id, step, status, resume_token)
		VALUES ($1, 'draft', 'queued', $2)
		ON CONFLICT (debate_id) DO NOTHING
	`, debateID, token)
	if err != nil {
		return fmt.Errorf("stamp resume token: %w", err)
	}
	return nil
}

// Get loads a debate's checkpoint, or nil if none exists yet — meaning
// the debate has never been claimed and should resume at the draft stage.
func (r *CheckpointRepository) Get(ctx context.Context, debateID string) (*models.DebateCheckpoint, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT debate_id, step, step_index, round_index, status, attempt_count,
			resume_token, resume_claimed_at, last_checkpoint_at, last_event_at, context_meta
		FROM debate_checkpoints WHERE debate_id = $1
	`, debateID)

	var cp models.DebateCheckpoint
	var meta []byte
	err := row.Scan(
		&cp.DebateID, &cp.Step, &cp.StepIndex, &cp.RoundIndex, &cp.Status, &cp.AttemptCount,
		&cp.ResumeToken, &cp.ResumeClaimedAt, &cp.LastCheckpointAt, &cp.LastEventAt, &meta,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &cp.ContextMeta)
	}
	return &cp, nil
}
