package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/superagent/debatecore/internal/models"
)

// QuotaRepository stores per-user usage quotas and the rolling counters
// checked against them.
type QuotaRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewQuotaRepository creates a new quota repository.
func NewQuotaRepository(pool *pgxpool.Pool, log *logrus.Logger) *QuotaRepository {
	if log == nil {
		log = logrus.New()
	}
	return &QuotaRepository{pool: pool, log: log}
}

// GetQuota loads a user's configured quota for a period, or nil if the
// user has no override (the caller should fall back to a default).
func (r *QuotaRepository) GetQuota(ctx context.Context, userID, period string) (*models.UsageQuota, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, period, max_runs, max_tokens, reset_at
		FROM usage_quotas WHERE user_id = $1 AND period = $2
	`, userID, period)

	var q models.UsageQuota
	if err := row.Scan(&q.UserID, &q.Period, &q.MaxRuns, &q.MaxTokens, &q.ResetAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan usage quota: %w", err)
	}
	return &q, nil
}

// UpsertQuota sets or replaces a user's quota for a period.
func (r *QuotaRepository) UpsertQuota(ctx context.Context, q models.UsageQuota) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO usage_quotas (user_id, period, max_runs, max_tokens, reset_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, period) DO UPDATE SET
			max_runs = EXCLUDED.max_runs, max_tokens = EXCLUDED.max_tokens, reset_at = EXCLUDED.reset_at
	`, q.UserID, q.Period, q.MaxRuns, q.MaxTokens, q.ResetAt)
	if err != nil {
		return fmt.Errorf("upsert usage quota: %w", err)
	}
	return nil
}

// CurrentCounter loads or lazily creates the counter row for a user's
// current window, keyed by windowStart (the caller computes window
// boundaries — e.g. top of the hour, start of the UTC day).
func (r *QuotaRepository) CurrentCounter(ctx context.Context, userID, period string, windowStart time.Time) (*models.UsageCounter, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, period, runs_used, tokens_used, window_start
		FROM usage_counters WHERE user_id = $1 AND period = $2 AND window_start = $3
	`, userID, period, windowStart)

	var c models.UsageCounter
	err := row.Scan(&c.UserID, &c.Period, &c.RunsUsed, &c.TokensUsed, &c.WindowStart)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scan usage counter: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO usage_counters (user_id, period, runs_used, tokens_used, window_start)
		VALUES ($1, $2, 0, 0, $3)
		ON CONFLICT (user_id, period, window_start) DO NOTHING
	`, userID, period, windowStart)
	if err != nil {
		return nil, fmt.Errorf("create usage counter: %w", err)
	}
	return &models.UsageCounter{UserID: userID, Period: period, WindowStart: windowStart}, nil
}

// LatestCounter loads a user's most recent counter window for a period,
// or nil if the user has never had one, without the caller needing to
// already know its window_start — the rolling-window check (now -
// window_start >= period duration) decides whether it's still current.
func (r *QuotaRepository) LatestCounter(ctx context.Context, userID, period string) (*models.UsageCounter, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, period, runs_used, tokens_used, window_start
		FROM usage_counters WHERE user_id = $1 AND period = $2
		ORDER BY window_start DESC LIMIT 1
	`, userID, period)

	var c models.UsageCounter
	err := row.Scan(&c.UserID, &c.Period, &c.RunsUsed, &c.TokensUsed, &c.WindowStart)
	if err == nil {
		return &c, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return nil, fmt.Errorf("scan latest usage counter: %w", err)
}

// IncrementCounter adds a completed run's usage to the current window,
// atomically, so concurrent workers finishing debates for the same user
// never lose an increment.
func (r *QuotaRepository) IncrementCounter(ctx context.Context, userID, period string, windowStart time.Time, runs, tokens int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO usage_counters (user_id, period, runs_used, tokens_used, window_start)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, period, window_start) DO UPDATE SET
			runs_used = usage_counters.runs_used + EXCLUDED.runs_used,
			tokens_used = usage_counters.tokens_used + EXCLUDED.tokens_used
	`, userID, period, runs, tokens, windowStart)
	if err != nil {
		return fmt.Errorf("increment usage counter: %w", err)
	}
	return nil
}

// RatingRepository stores Elo ratings per persona, updated after each
// pairwise vote the ranking stage records.
type RatingRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewRatingRepository creates a new rating repository.
func NewRatingRepository(pool *pgxpool.Pool, log *logrus.Logger) *RatingRepository {
	if log == nil {
		log = logrus.New()
	}
	return &RatingRepository{pool: pool, log: log}
}

// PersonaRating is one persona's current Elo standing.
type PersonaRating struct {
	Persona string
	Elo     float64
	Matches int
	Wins    int
	Losses  int
	Draws   int
}

// Get loads a persona's current rating, defaulting to the standard 1500
// starting Elo with zero match history if the persona is unseen.
func (r *RatingRepository) Get(ctx context.Context, persona string) (PersonaRating, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT persona, elo, matches, wins, losses, draws
		FROM rating_personas WHERE persona = $1
	`, persona)

	var p PersonaRating
	err := row.Scan(&p.Persona, &p.Elo, &p.Matches, &p.Wins, &p.Losses, &p.Draws)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PersonaRating{}, fmt.Errorf("scan persona rating: %w", err)
	}
	return PersonaRating{Persona: persona, Elo: 1500}, nil
}

// Upsert persists a persona's rating after an Elo update.
func (r *RatingRepository) Upsert(ctx context.Context, p PersonaRating) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rating_personas (persona, elo, matches, wins, losses, draws, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (persona) DO UPDATE SET
			elo = EXCLUDED.elo, matches = EXCLUDED.matches, wins = EXCLUDED.wins,
			losses = EXCLUDED.losses, draws = EXCLUDED.draws, updated_at = NOW()
	`, p.Persona, p.Elo, p.Matches, p.Wins, p.Losses, p.Draws)
	if err != nil {
		return fmt.Errorf("upsert persona rating: %w", err)
	}
	return nil
}
