package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBroker fans events out through Redis pub/sub so a server process
// other than the worker running a debate can still relay events to
// streaming HTTP clients.
type RedisBroker struct {
	client      *redis.Client
	channelTTL  time.Duration
	keyPrefix   string
}

// NewRedisBroker wraps an existing go-redis client. channelTTL bounds how
// long a debate's replay buffer (used to catch late subscribers up) is
// kept in Redis after the last publish.
func NewRedisBroker(client *redis.Client, channelTTL time.Duration) *RedisBroker {
	if channelTTL <= 0 {
		channelTTL = 15 * time.Minute
	}
	return &RedisBroker{client: client, channelTTL: channelTTL, keyPrefix: "debate:events:"}
}

func (b *RedisBroker) channelName(debateID string) string {
	return b.keyPrefix + debateID
}

// Publish publishes the event on the debate's Redis pub/sub channel and
// appends it to a replay list so a subscriber that connects moments
// after publish still sees it.
func (b *RedisBroker) Publish(ctx context.Context, debateID, eventType string, payload map[string]any) error {
	event := Event{DebateID: debateID, Type: eventType, Payload: payload, CreatedAt: time.Now()}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sse event: %w", err)
	}

	channel := b.channelName(debateID)
	pipe := b.client.TxPipeline()
	pipe.Publish(ctx, channel, body)
	pipe.RPush(ctx, channel+":log", body)
	pipe.Expire(ctx, channel+":log", b.channelTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish sse event: %w", err)
	}
	return nil
}

// Subscribe replays any buffered events for debateID, then streams live
// events from Redis pub/sub until ctx is canceled.
func (b *RedisBroker) Subscribe(ctx context.Context, debateID string) (Subscription, error) {
	channel := b.channelName(debateID)
	replay, err := b.client.LRange(ctx, channel+":log", 0, -1).Result()
	if err != nil && err != redis.Nil {
		return Subscription{}, fmt.Errorf("load sse replay log: %w", err)
	}

	pubsub := b.client.Subscribe(ctx, channel)
	out := make(chan Event, 256)

	go func() {
		defer close(out)
		defer pubsub.Close()

		for _, raw := range replay {
			var event Event
			if err := json.Unmarshal([]byte(raw), &event); err != nil {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return Subscription{Events: out, Cancel: cancel}, nil
}

var _ Broker = (*RedisBroker)(nil)
