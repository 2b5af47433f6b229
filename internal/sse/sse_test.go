package sse

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_PublishDeliversToSubscriber(t *testing.T) {
	b := NewMemoryBroker(16, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx, "debate-1")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "debate-1", "round_started", map[string]any{"stage": "draft"}))

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "round_started", ev.Type)
		assert.Equal(t, "draft", ev.Payload["stage"])
	case <-time.After(time.Second):
		t.Fatal("expected event to be delivered")
	}
}

func TestMemoryBroker_PublishDoesNotBlockWhenSubscriberIsFull(t *testing.T) {
	b := NewMemoryBroker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := b.Subscribe(ctx, "debate-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(ctx, "debate-1", "round_started", nil))
	}
}

func TestMemoryBroker_PublishDropsOldestEventWhenQueueFull(t *testing.T) {
	b := NewMemoryBroker(2, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx, "debate-1")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Publish(ctx, "debate-1", "round_started", map[string]any{"seq": i}))
	}

	var seqs []int
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Events:
			seqs = append(seqs, ev.Payload["seq"].(int))
		case <-time.After(time.Second):
			t.Fatal("expected buffered event")
		}
	}

	assert.Equal(t, []int{2, 3}, seqs)
}

func TestMemoryBroker_CancelClosesSubscription(t *testing.T) {
	b := NewMemoryBroker(16, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := b.Subscribe(ctx, "debate-1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-sub.Events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected subscription channel to close after cancel")
	}
}

func TestMemoryBroker_Sweep_RemovesIdleTerminalChannels(t *testing.T) {
	b := NewMemoryBroker(16, -1) // construct with default via NewMemoryBroker, then force idle
	b.idleTimeout = 0
	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, "debate-1", "debate_terminal", nil))

	removed := b.Sweep()
	assert.Equal(t, 1, removed)
}

func TestRedisBroker_PublishThenSubscribeReplaysBufferedEvent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	broker := NewRedisBroker(client, time.Minute)

	ctx := context.Background()
	require.NoError(t, broker.Publish(ctx, "debate-1", "round_started", map[string]any{"stage": "draft"}))

	subCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := broker.Subscribe(subCtx, "debate-1")
	require.NoError(t, err)

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "round_started", ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected replayed event")
	}
}
