package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const (
	AppointmentEventsChannel = "appointment_events"
	ChatEventsChannel        = "chat_events"
)

// Event общая структура для событий в Redis
type Event struct {
	UserID    string            `json:"user_id"`
	Role      string            `json:"role"`
	EventType string            `json:"event_type"`
	Title     string            `json:"title,omitempty"`
	Message   string            `json:"message"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, ev Event)
}

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish is fire-and-forget: a lost notification must not fail the
// operation that produced it.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[EVENTS] Failed to marshal %s event: %v", ev.EventType, err)
		return
	}
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("[EVENTS] Failed to publish to %s: %v", channel, err)
	}
}
