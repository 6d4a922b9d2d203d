package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/chat-service/internal/models"
	"tattoo-app/pkg/identity"
)

func (s *chatService) Subscribe(ctx context.Context, caller identity.Caller, threadID string, lastID int64) (<-chan models.Message, error) {
	thread, _, err := s.loadThread(ctx, caller, threadID)
	if err != nil {
		return nil, err
	}

	// подписка раньше курсора, чтобы не потерять сигнал между ними
	wake, stop := s.notifier.Watch(ctx, thread.ID.Hex())

	cursor := lastID
	if cursor <= 0 {
		last, err := s.repo.LastMessage(ctx, thread.ID)
		if err != nil {
			stop()
			return nil, err
		}
		cursor = 0
		if last != nil {
			cursor = last.ID
		}
	}

	out := make(chan models.Message)
	go s.stream(ctx, thread.ID, cursor, wake, stop, out)
	return out, nil
}

func (s *chatService) stream(ctx context.Context, threadID primitive.ObjectID, cursor int64, wake <-chan struct{}, stop func(), out chan<- models.Message) {
	defer close(out)
	defer stop()

	lifetime := time.NewTimer(s.opts.MaxLifetime)
	defer lifetime.Stop()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lifetime.C:
			log.Printf("[SSE] Thread %s subscription reached its lifetime cap", threadID.Hex())
			return
		case <-ticker.C:
		case <-wake:
		}

		for {
			batch, err := s.repo.ListMessages(ctx, threadID, cursor, models.MaxPageSize)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[SSE] Failed to poll thread %s: %v", threadID.Hex(), err)
				break
			}
			for _, msg := range batch {
				select {
				case out <- msg:
					cursor = msg.ID
				case <-ctx.Done():
					return
				}
			}
			if len(batch) < models.MaxPageSize {
				break
			}
		}
	}
}
