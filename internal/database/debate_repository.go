package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/superagent/debatecore/internal/models"
)

// DebateRepository is the system-of-record for debate rows: creation,
// lookup, lease acquisition/heartbeat/release, and terminal-state writes.
type DebateRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewDebateRepository creates a new debate repository.
func NewDebateRepository(pool *pgxpool.Pool, log *logrus.Logger) *DebateRepository {
	if log == nil {
		log = logrus.New()
	}
	return &DebateRepository{pool: pool, log: log}
}

// Create inserts a new debate in the queued state and returns its
// generated ID.
func (r *DebateRepository) Create(ctx context.Context, d *models.Debate) (string, error) {
	panelConfig, err := json.Marshal(d.PanelConfig)
	if err != nil {
		return "", fmt.Errorf("marshal panel config: %w", err)
	}
	judgesConfig, err := json.Marshal(d.JudgesConfig)
	if err != nil {
		return "", fmt.Errorf("marshal judges config: %w", err)
	}
	synthSeat, err := json.Marshal(d.SynthSeat)
	if err != nil {
		return "", fmt.Errorf("marshal synth seat: %w", err)
	}
	budget, err := json.Marshal(d.Budget)
	if err != nil {
		return "", fmt.Errorf("marshal budget: %w", err)
	}
	routingMeta, err := json.Marshal(d.RoutingMeta)
	if err != nil {
		return "", fmt.Errorf("marshal routing meta: %w", err)
	}

	status := d.Status
	if status == "" {
		status = models.DebateStatusQueued
	}
	mode := d.Mode
	if mode == "" {
		mode = models.ModeDebate
	}

	query := `
		INSERT INTO debates (
			prompt, status, mode, panel_config, judges_config, synth_seat, budget, routed_model,
			routing_policy, routing_meta, owner_user_id, team_id, engine_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var id string
	err = r.pool.QueryRow(ctx, query,
		d.Prompt, status, mode, panelConfig, judgesConfig, synthSeat, budget, d.RoutedModel,
		d.RoutingPolicy, routingMeta, d.OwnerUserID, d.TeamID, d.EngineVersion,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert debate: %w", err)
	}
	return id, nil
}

// Get loads a debate by ID.
func (r *DebateRepository) Get(ctx context.Context, id string) (*models.Debate, error) {
	query := `
		SELECT id, prompt, status, mode, panel_config, judges_config, synth_seat, budget, routed_model,
			routing_policy, routing_meta, owner_user_id, team_id, final_content,
			final_meta, runner_id, lease_expires_at, run_attempt, engine_version,
			conversation_summary, created_at, updated_at
		FROM debates WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanDebate(row)
}

func scanDebate(row pgx.Row) (*models.Debate, error) {
	var d models.Debate
	var panelConfig, judgesConfig, synthSeat, budget, routingMeta, finalMeta []byte
	if err := row.Scan(
		&d.ID, &d.Prompt, &d.Status, &d.Mode, &panelConfig, &judgesConfig, &synthSeat, &budget, &d.RoutedModel,
		&d.RoutingPolicy, &routingMeta, &d.OwnerUserID, &d.TeamID, &d.FinalContent,
		&finalMeta, &d.RunnerID, &d.LeaseExpiresAt, &d.RunAttempt, &d.EngineVersion,
		&d.ConversationSummary, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("debate not found: %w", err)
		}
		return nil, fmt.Errorf("scan debate: %w", err)
	}
	if len(panelConfig) > 0 {
		_ = json.Unmarshal(panelConfig, &d.PanelConfig)
	}
	if len(judgesConfig) > 0 {
		_ = json.Unmarshal(judgesConfig, &d.JudgesConfig)
	}
	if len(synthSeat) > 0 {
		_ = json.Unmarshal(synthSeat, &d.SynthSeat)
	}
	if len(budget) > 0 {
		_ = json.Unmarshal(budget, &d.Budget)
	}
	if len(routingMeta) > 0 {
		_ = json.Unmarshal(routingMeta, &d.RoutingMeta)
	}
	if len(finalMeta) > 0 {
		_ = json.Unmarshal(finalMeta, &d.FinalMeta)
	}
	return &d, nil
}

// AcquireLease attempts to claim debate id for runnerID, granting it for
// leaseDuration. It uses a single conditional UPDATE so concurrent workers
// racing for the same debate cannot both win: the row is only claimed if
// unclaimed, its lease has expired, or this runner already holds it.
// Success is reported by rows-affected, matching a claim that may stamp a
// new resume token on first acquisition.
func (r *DebateRepository) AcquireLease(ctx context.Context, id, runnerID string, leaseDuration time.Duration) (bool, error) {
	query := `
		UPDATE debates
		SET runner_id = $2,
			lease_expires_at = NOW() + $3::interval,
			run_attempt = run_attempt + 1,
			status = 'running',
			updated_at = NOW()
		WHERE id = $1
			AND (runner_id IS NULL OR lease_expires_at < NOW() OR runner_id = $2)
	`
	tag, err := r.pool.Exec(ctx, query, id, runnerID, leaseDuration.String())
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return tag.RowsAffected() >= 1, nil
}

// Heartbeat extends a held lease. Returns false (without error) if the
// lease was lost to another runner in the meantime.
func (r *DebateRepository) Heartbeat(ctx context.Context, id, runnerID string, leaseDuration time.Duration) (bool, error) {
	query := `
		UPDATE debates
		SET lease_expires_at = NOW() + $3::interval, updated_at = NOW()
		WHERE id = $1 AND runner_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, runnerID, leaseDuration.String())
	if err != nil {
		return false, fmt.Errorf("heartbeat lease: %w", err)
	}
	return tag.RowsAffected() >= 1, nil
}

// ReleaseLease clears ownership on normal worker exit, leaving status as
// the caller already set it (completed/degraded/failed/queued).
func (r *DebateRepository) ReleaseLease(ctx context.Context, id, runnerID string) error {
	query := `
		UPDATE debates
		SET runner_id = NULL, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND runner_id = $2
	`
	_, err := r.pool.Exec(ctx, query, id, runnerID)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// UpdateStatus sets a debate's terminal or transitional status.
func (r *DebateRepository) UpdateStatus(ctx context.Context, id string, status models.DebateStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE debates SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update debate status: %w", err)
	}
	return nil
}

// FinalizeResult persists a debate's terminal content and metadata.
func (r *DebateRepository) FinalizeResult(ctx context.Context, id string, status models.DebateStatus, finalContent string, finalMeta map[string]any) error {
	meta, err := json.Marshal(finalMeta)
	if err != nil {
		return fmt.Errorf("marshal final meta: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE debates
		SET status = $2, final_content = $3, final_meta = $4, updated_at = NOW()
		WHERE id = $1
	`, id, status, finalContent, meta)
	if err != nil {
		return fmt.Errorf("finalize debate: %w", err)
	}
	return nil
}

// ListStaleRunning returns IDs of debates still "running" whose lease has
// expired more than staleAfter ago, for the reaper's running-TTL sweep.
func (r *DebateRepository) ListStaleRunning(ctx context.Context, staleAfter time.Duration) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM debates
		WHERE status = 'running' AND (lease_expires_at IS NULL OR lease_expires_at < NOW() - $1::interval)
	`, staleAfter.String())
	if err != nil {
		return nil, fmt.Errorf("list stale running debates: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListStaleQueued returns IDs of debates still "queued" after queuedAfter,
// for the reaper's queued-TTL sweep (a queued debate no worker ever
// picked up).
func (r *DebateRepository) ListStaleQueued(ctx context.Context, queuedAfter time.Duration) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM debates
		WHERE status = 'queued' AND created_at < NOW() - $1::interval
	`, queuedAfter.String())
	if err != nil {
		return nil, fmt.Errorf("list stale queued debates: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan debate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RunAttempt returns the current run_attempt counter, used by the reaper
// to decide whether a stale debate still has retries left.
func (r *DebateRepository) RunAttempt(ctx context.Context, id string) (int, error) {
	var attempt int
	err := r.pool.QueryRow(ctx, `SELECT run_attempt FROM debates WHERE id = $1`, id).Scan(&attempt)
	if err != nil {
		return 0, fmt.Errorf("read run attempt: %w", err)
	}
	return attempt, nil
}

// Requeue resets a stale debate back to queued with its lease cleared, so
// another worker can pick it up for a retry attempt.
func (r *DebateRepository) Requeue(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE debates
		SET status = 'queued', runner_id = NULL, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("requeue debate: %w", err)
	}
	return nil
}
