// Package database provides Postgres access for the debate engine: a
// pooled connection plus one repository per persisted entity from the
// debate data model.
//
// # Connection
//
//	pool, err := database.NewPool(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	if err := database.RunMigrations(ctx, pool); err != nil {
//	    log.Fatal(err)
//	}
//
// # Repositories
//
//   - DebateRepository: debate rows, lease claim/release, status transitions
//   - TranscriptRepository: rounds, messages, scores, votes
//   - CheckpointRepository: durability checkpoints and resume tokens
//   - QuotaRepository: per-user windowed run/token quotas and counters
//   - RatingRepository: per-persona Elo ratings
package database
