package utils

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

type EventProcessor interface {
	ProcessEvent(ctx context.Context, channel string, payload []byte) error
}

// SubscribeToEvents блокирует до отмены ctx, передавая каждое сообщение из
// channels в processor
func SubscribeToEvents(ctx context.Context, rdb *redis.Client, processor EventProcessor, channels ...string) {
	pubsub := rdb.Subscribe(ctx, channels...)
	defer pubsub.Close()

	log.Printf("[NOTIFY] Subscribed to Redis channels: %v", channels)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := processor.ProcessEvent(ctx, msg.Channel, []byte(msg.Payload)); err != nil {
				log.Printf("[NOTIFY] Error processing event from %s: %v", msg.Channel, err)
			}
		case <-ctx.Done():
			log.Println("[NOTIFY] Stopping Redis subscribers...")
			return
		}
	}
}
