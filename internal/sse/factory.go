package sse

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/superagent/debatecore/internal/config"
)

// NewBroker selects a Broker realization per cfg.SSE.Backend ("memory" or
// "redis"), matching internal/durability's JobQueue's config-driven
// selection pattern.
func NewBroker(cfg *config.Config, redisClient *redis.Client) Broker {
	idleTimeout := time.Duration(cfg.SSE.IdleTimeoutSeconds) * time.Second
	if cfg.SSE.Backend == "redis" && redisClient != nil {
		channelTTL := time.Duration(cfg.SSE.ChannelTTLSeconds) * time.Second
		return NewRedisBroker(redisClient, channelTTL)
	}
	return NewMemoryBroker(cfg.SSE.MaxQueueSize, idleTimeout)
}
