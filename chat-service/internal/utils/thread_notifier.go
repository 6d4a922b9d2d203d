package utils

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

func threadChannel(threadID string) string {
	return "chat:thread:" + threadID
}

// RedisThreadNotifier wakes live subscribers of a thread on every instance.
// The payload is ignored; subscribers re-read the store.
type RedisThreadNotifier struct {
	rdb *redis.Client
}

func NewRedisThreadNotifier(rdb *redis.Client) *RedisThreadNotifier {
	return &RedisThreadNotifier{rdb: rdb}
}

func (n *RedisThreadNotifier) Notify(ctx context.Context, threadID string) {
	if err := n.rdb.Publish(ctx, threadChannel(threadID), "new").Err(); err != nil {
		log.Printf("[CHAT] Failed to publish wake-up for thread %s: %v", threadID, err)
	}
}

// Watch returns a channel that receives at most one pending signal at a
// time. If redis is unavailable the channel never fires and the subscriber
// falls back to polling.
func (n *RedisThreadNotifier) Watch(ctx context.Context, threadID string) (<-chan struct{}, func()) {
	pubsub := n.rdb.Subscribe(ctx, threadChannel(threadID))
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("[SSE] Subscribe to thread %s failed, polling only: %v", threadID, err)
		pubsub.Close()
		return nil, func() {}
	}

	wake := make(chan struct{}, 1)
	go func() {
		for range pubsub.Channel() {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()
	return wake, func() {
		if err := pubsub.Close(); err != nil {
			log.Printf("[SSE] Failed to close subscription for thread %s: %v", threadID, err)
		}
	}
}
