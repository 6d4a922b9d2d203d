package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"

	"tattoo-app/chat-service/internal/models"
	"tattoo-app/chat-service/internal/repository"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/events"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/lock"
)

type ChatService interface {
	EnsureThread(ctx context.Context, caller identity.Caller, otherUserID string) (*models.Thread, error)
	SendMessage(ctx context.Context, caller identity.Caller, threadID string, req models.SendMessageRequest) (*models.Message, error)
	ListMessages(ctx context.Context, caller identity.Caller, threadID string, afterID int64, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, caller identity.Caller, threadID string, lastID int64) (int64, error)
	ListThreads(ctx context.Context, caller identity.Caller) ([]models.ThreadSummary, error)
	// Subscribe streams messages of the thread newer than lastID (or than
	// the newest message when lastID is 0). The channel is closed when ctx
	// is done or the subscription outlives its cap.
	Subscribe(ctx context.Context, caller identity.Caller, threadID string, lastID int64) (<-chan models.Message, error)
}

// ThreadNotifier carries "something changed" signals between the sender and
// live subscribers of a thread.
type ThreadNotifier interface {
	Notify(ctx context.Context, threadID string)
	Watch(ctx context.Context, threadID string) (<-chan struct{}, func())
}

const (
	minPollInterval = 250 * time.Millisecond
	maxPollInterval = 10 * time.Second
	ensureTimeout   = 10 * time.Second
)

type Options struct {
	PollInterval time.Duration
	MaxLifetime  time.Duration
}

func (o Options) normalized() Options {
	switch {
	case o.PollInterval <= 0:
		o.PollInterval = time.Second
	case o.PollInterval < minPollInterval:
		o.PollInterval = minPollInterval
	case o.PollInterval > maxPollInterval:
		o.PollInterval = maxPollInterval
	}
	if o.MaxLifetime <= 0 {
		o.MaxLifetime = 30 * time.Minute
	}
	return o
}

type chatService struct {
	repo      repository.ChatRepository
	locker    lock.Locker
	users     identity.Directory
	notifier  ThreadNotifier
	publisher events.Publisher
	opts      Options
	ensure    singleflight.Group
	now       func() time.Time
}

func NewChatService(
	repo repository.ChatRepository,
	locker lock.Locker,
	users identity.Directory,
	notifier ThreadNotifier,
	publisher events.Publisher,
	opts Options,
) ChatService {
	return &chatService{
		repo:      repo,
		locker:    locker,
		users:     users,
		notifier:  notifier,
		publisher: publisher,
		opts:      opts.normalized(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func threadLockKey(id primitive.ObjectID) string {
	return "thread:" + id.Hex()
}

// --- Threads ---

func (s *chatService) EnsureThread(ctx context.Context, caller identity.Caller, otherUserID string) (*models.Thread, error) {
	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "other_user_id is required")
	}
	if otherUserID == caller.ID {
		return nil, apperr.New(apperr.ErrInvalidPair, "cannot open a thread with yourself")
	}
	other, err := s.users.GetUser(ctx, otherUserID)
	if err != nil {
		return nil, err
	}

	var artistID, clientID string
	switch {
	case caller.Role == identity.RoleArtist && other.Role == identity.RoleClient:
		artistID, clientID = caller.ID, other.ID
	case caller.Role == identity.RoleClient && other.Role == identity.RoleArtist:
		artistID, clientID = other.ID, caller.ID
	default:
		return nil, apperr.New(apperr.ErrInvalidPair, "a thread needs one artist and one client")
	}

	// общий вызов не привязан к отмене первого пришедшего
	ch := s.ensure.DoChan(artistID+"|"+clientID, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ensureTimeout)
		defer cancel()
		return s.findOrCreateThread(sctx, artistID, clientID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Thread), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *chatService) findOrCreateThread(ctx context.Context, artistID, clientID string) (*models.Thread, error) {
	thread, err := s.repo.FindThreadByPair(ctx, artistID, clientID)
	if err != nil || thread != nil {
		return thread, err
	}

	now := s.now()
	thread = &models.Thread{ArtistID: artistID, ClientID: clientID, CreatedAt: now, UpdatedAt: now}
	err = s.repo.CreateThread(ctx, thread)
	if errors.Is(err, repository.ErrThreadExists) {
		// другой инстанс создал тот же тред
		thread, err = s.repo.FindThreadByPair(ctx, artistID, clientID)
		if err == nil && thread == nil {
			err = fmt.Errorf("thread %s/%s vanished after duplicate insert", artistID, clientID)
		}
		return thread, err
	}
	if err != nil {
		return nil, err
	}
	log.Printf("[CHAT] Opened thread %s for artist %s and client %s", thread.ID.Hex(), artistID, clientID)
	return thread, nil
}

// loadThread resolves the thread and the caller's side of it.
func (s *chatService) loadThread(ctx context.Context, caller identity.Caller, threadID string) (*models.Thread, models.Side, error) {
	oid, err := primitive.ObjectIDFromHex(threadID)
	if err != nil {
		return nil, "", apperr.New(apperr.ErrNotFound, "thread %s not found", threadID)
	}
	thread, err := s.repo.GetThread(ctx, oid)
	if err != nil {
		return nil, "", err
	}
	side, ok := thread.SideOf(caller.ID)
	if !ok {
		return nil, "", apperr.New(apperr.ErrForbidden, "not a participant of thread %s", threadID)
	}
	return thread, side, nil
}

func (s *chatService) ListThreads(ctx context.Context, caller identity.Caller) ([]models.ThreadSummary, error) {
	threads, err := s.repo.ListThreadsFor(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, len(threads))
	for i := range threads {
		ids[i] = threads[i].ID
	}
	stats, err := s.repo.ThreadStats(ctx, ids, caller.ID)
	if err != nil {
		return nil, err
	}

	people := map[string]models.Counterpart{}
	out := make([]models.ThreadSummary, 0, len(threads))
	for i := range threads {
		th := &threads[i]
		side, _ := th.SideOf(caller.ID)
		otherID := th.Counterpart(caller.ID)

		person, ok := people[otherID]
		if !ok {
			person = s.counterpart(ctx, otherID)
			people[otherID] = person
		}
		st := stats[th.ID]
		out = append(out, models.ThreadSummary{
			ThreadID:    th.ID.Hex(),
			Counterpart: person,
			LastMessage: st.Last,
			Unread:      st.Unread(side),
			UpdatedAt:   th.UpdatedAt,
		})
	}
	return out, nil
}

func (s *chatService) counterpart(ctx context.Context, id string) models.Counterpart {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		log.Printf("[CHAT] Failed to resolve user %s: %v", id, err)
		return models.Counterpart{ID: id}
	}
	return models.Counterpart{ID: u.ID, Name: u.Name, Email: u.Email}
}

// --- Messages ---

func (s *chatService) SendMessage(ctx context.Context, caller identity.Caller, threadID string, req models.SendMessageRequest) (*models.Message, error) {
	thread, side, err := s.loadThread(ctx, caller, threadID)
	if err != nil {
		return nil, err
	}
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	msg, err := s.appendMessage(ctx, thread, side, caller.ID, req)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, thread.ID.Hex())
	s.notifyCounterpart(ctx, thread, caller.ID, msg)
	return msg, nil
}

// appendMessage allocates the id and inserts under the thread lock, so ids become
// visible in increasing order within the thread.
func (s *chatService) appendMessage(ctx context.Context, thread *models.Thread, side models.Side, senderID string, req models.SendMessageRequest) (*models.Message, error) {
	unlock, err := s.locker.Lock(ctx, threadLockKey(thread.ID))
	if err != nil {
		return nil, fmt.Errorf("acquire thread lock: %w", err)
	}
	defer unlock()

	id, err := s.repo.NextMessageID(ctx)
	if err != nil {
		return nil, err
	}
	msg := &models.Message{
		ID:           id,
		ThreadID:     thread.ID,
		SenderID:     senderID,
		Text:         req.Text,
		ImageURL:     req.ImageURL,
		CreatedAt:    s.now().Truncate(time.Millisecond),
		SeenByArtist: side == models.SideArtist,
		SeenByClient: side == models.SideClient,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.repo.TouchThread(ctx, thread.ID, msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *chatService) notifyCounterpart(ctx context.Context, thread *models.Thread, senderID string, msg *models.Message) {
	recipient := thread.Counterpart(senderID)
	role, _ := thread.SideOf(recipient)

	preview := msg.Text
	if preview == "" {
		preview = "[image]"
	} else if utf8.RuneCountInString(preview) > 80 {
		preview = string([]rune(preview)[:80]) + "..."
	}
	s.publisher.Publish(ctx, events.ChatEventsChannel, events.Event{
		UserID:    recipient,
		Role:      string(role),
		EventType: "chat_message",
		Title:     "New message",
		Message:   preview,
		ExtraData: map[string]string{
			"thread_id":  thread.ID.Hex(),
			"message_id": fmt.Sprint(msg.ID),
			"sender_id":  senderID,
		},
	})
}

func (s *chatService) ListMessages(ctx context.Context, caller identity.Caller, threadID string, afterID int64, limit int) ([]models.Message, error) {
	thread, _, err := s.loadThread(ctx, caller, threadID)
	if err != nil {
		return nil, err
	}
	if afterID < 0 {
		return nil, apperr.New(apperr.ErrInvalidInput, "after_id must not be negative")
	}
	return s.repo.ListMessages(ctx, thread.ID, afterID, models.ClampLimit(limit))
}

func (s *chatService) MarkRead(ctx context.Context, caller identity.Caller, threadID string, lastID int64) (int64, error) {
	thread, side, err := s.loadThread(ctx, caller, threadID)
	if err != nil {
		return 0, err
	}
	if lastID <= 0 {
		return 0, apperr.New(apperr.ErrInvalidInput, "last_id is required")
	}
	return s.repo.MarkSeen(ctx, thread.ID, side, caller.ID, lastID)
}
