package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/superagent/debatecore/internal/config"
)

// NewPool opens a pgxpool connection to Postgres using cfg.Database,
// verifying connectivity with a Ping before returning.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database connection string: %w", err)
	}
	if cfg.Database.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	}
	if cfg.Database.ConnTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.Database.ConnTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// migrations creates every table the debate engine reads and writes.
// Statements are idempotent (CREATE ... IF NOT EXISTS) so RunMigrations
// can run unconditionally at process startup.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS debates (
		id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		prompt                TEXT NOT NULL,
		status                VARCHAR(20) NOT NULL DEFAULT 'queued',
		mode                  VARCHAR(20) NOT NULL DEFAULT 'debate',
		panel_config          JSONB NOT NULL DEFAULT '{}',
		judges_config         JSONB NOT NULL DEFAULT '{}',
		synth_seat            JSONB NOT NULL DEFAULT '{}',
		budget                JSONB NOT NULL DEFAULT '{}',
		routed_model          VARCHAR(255),
		routing_policy        VARCHAR(100),
		routing_meta          JSONB DEFAULT '{}',
		owner_user_id         VARCHAR(255),
		team_id               VARCHAR(255),
		final_content         TEXT,
		final_meta            JSONB DEFAULT '{}',
		runner_id             VARCHAR(255),
		lease_expires_at      TIMESTAMP WITH TIME ZONE,
		run_attempt           INTEGER NOT NULL DEFAULT 0,
		engine_version        VARCHAR(50),
		conversation_summary  TEXT,
		created_at            TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at            TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_debates_status ON debates(status);
	CREATE INDEX IF NOT EXISTS idx_debates_owner ON debates(owner_user_id);
	CREATE INDEX IF NOT EXISTS idx_debates_lease ON debates(runner_id, lease_expires_at);`,

	`CREATE TABLE IF NOT EXISTS debate_rounds (
		debate_id   UUID NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
		index       INTEGER NOT NULL,
		label       VARCHAR(30) NOT NULL,
		started_at  TIMESTAMP WITH TIME ZONE,
		ended_at    TIMESTAMP WITH TIME ZONE,
		note        TEXT,
		PRIMARY KEY (debate_id, index)
	);`,

	`CREATE TABLE IF NOT EXISTS messages (
		id           BIGSERIAL PRIMARY KEY,
		debate_id    UUID NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
		round_index  INTEGER NOT NULL,
		role         VARCHAR(20) NOT NULL,
		persona      VARCHAR(255) NOT NULL,
		content      TEXT NOT NULL,
		meta         JSONB DEFAULT '{}',
		created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_messages_debate ON messages(debate_id, round_index);`,

	`CREATE TABLE IF NOT EXISTS scores (
		id          BIGSERIAL PRIMARY KEY,
		debate_id   UUID NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
		persona     VARCHAR(255) NOT NULL,
		judge       VARCHAR(255) NOT NULL,
		score       DOUBLE PRECISION NOT NULL,
		rationale   TEXT,
		meta        JSONB DEFAULT '{}',
		created_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_scores_debate ON scores(debate_id);`,

	`CREATE TABLE IF NOT EXISTS votes (
		id          BIGSERIAL PRIMARY KEY,
		debate_id   UUID NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
		method      VARCHAR(50) NOT NULL,
		rankings    JSONB NOT NULL DEFAULT '[]',
		weights     JSONB DEFAULT '{}',
		result      JSONB DEFAULT '{}',
		created_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_votes_debate ON votes(debate_id);`,

	`CREATE TABLE IF NOT EXISTS pairwise_votes (
		id            BIGSERIAL PRIMARY KEY,
		debate_id     UUID NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
		category      VARCHAR(100) NOT NULL,
		candidate_a   VARCHAR(255) NOT NULL,
		candidate_b   VARCHAR(255) NOT NULL,
		winner        VARCHAR(255) NOT NULL,
		judge_id      VARCHAR(255),
		user_id       VARCHAR(255),
		created_at    TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_pairwise_votes_debate ON pairwise_votes(debate_id);`,

	`CREATE TABLE IF NOT EXISTS debate_checkpoints (
		debate_id          UUID PRIMARY KEY REFERENCES debates(id) ON DELETE CASCADE,
		step               VARCHAR(30) NOT NULL,
		step_index         INTEGER NOT NULL DEFAULT 0,
		round_index        INTEGER NOT NULL DEFAULT 0,
		status             VARCHAR(20) NOT NULL,
		attempt_count      INTEGER NOT NULL DEFAULT 0,
		resume_token       VARCHAR(64),
		resume_claimed_at  TIMESTAMP WITH TIME ZONE,
		last_checkpoint_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		last_event_at      TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		context_meta       JSONB DEFAULT '{}'
	);`,

	`CREATE TABLE IF NOT EXISTS usage_quotas (
		user_id     VARCHAR(255) NOT NULL,
		period      VARCHAR(20) NOT NULL,
		max_runs    INTEGER NOT NULL DEFAULT 0,
		max_tokens  BIGINT NOT NULL DEFAULT 0,
		reset_at    TIMESTAMP WITH TIME ZONE,
		PRIMARY KEY (user_id, period)
	);`,

	`CREATE TABLE IF NOT EXISTS usage_counters (
		user_id      VARCHAR(255) NOT NULL,
		period       VARCHAR(20) NOT NULL,
		runs_used    INTEGER NOT NULL DEFAULT 0,
		tokens_used  BIGINT NOT NULL DEFAULT 0,
		window_start TIMESTAMP WITH TIME ZONE NOT NULL,
		PRIMARY KEY (user_id, period, window_start)
	);`,

	`CREATE TABLE IF NOT EXISTS rating_personas (
		persona     VARCHAR(255) PRIMARY KEY,
		elo         DOUBLE PRECISION NOT NULL DEFAULT 1500,
		matches     INTEGER NOT NULL DEFAULT 0,
		wins        INTEGER NOT NULL DEFAULT 0,
		losses      INTEGER NOT NULL DEFAULT 0,
		draws       INTEGER NOT NULL DEFAULT 0,
		updated_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`,
}

// RunMigrations applies every statement in migrations, in order, against
// pool. Each CREATE is idempotent so this is safe to call on every
// process start.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
