package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superagent/debatecore/internal/config"
)

// NewPool requires a reachable Postgres, so these tests only exercise the
// paths that fail before any network I/O: a ping timeout against a port
// nothing listens on.

func TestNewPool_PingFailure(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		Host: "127.0.0.1", Port: "1", User: "u", Password: "p", Name: "d", SSLMode: "disable",
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewPool(ctx, cfg)
	require.Error(t, err)
}

func TestMigrations_AllIdempotentCreateIfNotExists(t *testing.T) {
	require.NotEmpty(t, migrations)
	for _, stmt := range migrations {
		assert.Contains(t, stmt, "IF NOT EXISTS")
	}
}

func TestMigrations_CoverEveryDebateEngineTable(t *testing.T) {
	want := []string{
		"debates", "debate_rounds", "messages", "scores", "votes",
		"pairwise_votes", "debate_checkpoints", "usage_quotas",
		"usage_counters", "rating_personas",
	}
	all := ""
	for _, stmt := range migrations {
		all += stmt
	}
	for _, table := range want {
		assert.Contains(t, all, table)
	}
}
