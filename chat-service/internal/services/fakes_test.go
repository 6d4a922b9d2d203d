package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/chat-service/internal/models"
	"tattoo-app/chat-service/internal/repository"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/events"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/lock"
)

type memChatRepo struct {
	mu       sync.Mutex
	threads  map[primitive.ObjectID]models.Thread
	messages map[int64]models.Message
	seq      int64
	// hidePairs makes FindThreadByPair miss once per pair, like a read that
	// races another instance's insert.
	hidePairs map[string]bool
	// findGate, if set, holds FindThreadByPair until closed or until the
	// caller's ctx is done. findStarted is signalled on entry.
	findGate    chan struct{}
	findStarted chan struct{}
	statsCalls  int
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{
		threads:   map[primitive.ObjectID]models.Thread{},
		messages:  map[int64]models.Message{},
		hidePairs: map[string]bool{},
	}
}

func (r *memChatRepo) FindThreadByPair(ctx context.Context, artistID, clientID string) (*models.Thread, error) {
	if r.findGate != nil {
		select {
		case r.findStarted <- struct{}{}:
		default:
		}
		select {
		case <-r.findGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := artistID + "|" + clientID
	if r.hidePairs[key] {
		delete(r.hidePairs, key)
		return nil, nil
	}
	for _, t := range r.threads {
		if t.ArtistID == artistID && t.ClientID == clientID {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memChatRepo) CreateThread(_ context.Context, thread *models.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		if t.ArtistID == thread.ArtistID && t.ClientID == thread.ClientID {
			return repository.ErrThreadExists
		}
	}
	thread.ID = primitive.NewObjectID()
	r.threads[thread.ID] = *thread
	return nil
}

func (r *memChatRepo) GetThread(_ context.Context, id primitive.ObjectID) (*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "thread %s not found", id.Hex())
	}
	return &t, nil
}

func (r *memChatRepo) ListThreadsFor(_ context.Context, userID string) ([]models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Thread{}
	for _, t := range r.threads {
		if t.ArtistID == userID || t.ClientID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memChatRepo) TouchThread(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.threads[id]
	if t.UpdatedAt.Before(at) {
		t.UpdatedAt = at
		r.threads[id] = t
	}
	return nil
}

func (r *memChatRepo) NextMessageID(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *memChatRepo) InsertMessage(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ID] = *msg
	return nil
}

func (r *memChatRepo) threadMessages(threadID primitive.ObjectID) []models.Message {
	out := []models.Message{}
	for _, m := range r.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memChatRepo) ListMessages(_ context.Context, threadID primitive.ObjectID, afterID int64, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Message{}
	for _, m := range r.threadMessages(threadID) {
		if m.ID > afterID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memChatRepo) LastMessage(_ context.Context, threadID primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.threadMessages(threadID)
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[len(msgs)-1], nil
}

func (r *memChatRepo) MarkSeen(_ context.Context, threadID primitive.ObjectID, side models.Side, readerID string, lastID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if m.ThreadID != threadID || m.ID > lastID || m.SenderID == readerID {
			continue
		}
		switch {
		case side == models.SideArtist && !m.SeenByArtist:
			m.SeenByArtist = true
		case side == models.SideClient && !m.SeenByClient:
			m.SeenByClient = true
		default:
			continue
		}
		r.messages[id] = m
		n++
	}
	return n, nil
}

func (r *memChatRepo) ThreadStats(_ context.Context, threadIDs []primitive.ObjectID, readerID string) (map[primitive.ObjectID]models.ThreadStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsCalls++
	out := map[primitive.ObjectID]models.ThreadStats{}
	for _, id := range threadIDs {
		msgs := r.threadMessages(id)
		if len(msgs) == 0 {
			continue
		}
		st := models.ThreadStats{Last: &msgs[len(msgs)-1]}
		for _, m := range msgs {
			if m.SenderID == readerID {
				continue
			}
			if !m.SeenByArtist {
				st.UnreadByArtist++
			}
			if !m.SeenByClient {
				st.UnreadByClient++
			}
		}
		out[id] = st
	}
	return out, nil
}

func (r *memChatRepo) threadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}

type userDir map[string]identity.User

func (d userDir) GetUser(_ context.Context, id string) (*identity.User, error) {
	u, ok := d[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "user %s not found", id)
	}
	return &u, nil
}

// localNotifier delivers wake-ups in process.
type localNotifier struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
	notified int
}

func newLocalNotifier() *localNotifier {
	return &localNotifier{watchers: map[string]map[chan struct{}]struct{}{}}
}

func (n *localNotifier) Notify(_ context.Context, threadID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified++
	for ch := range n.watchers[threadID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *localNotifier) Watch(_ context.Context, threadID string) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan struct{}, 1)
	if n.watchers[threadID] == nil {
		n.watchers[threadID] = map[chan struct{}]struct{}{}
	}
	n.watchers[threadID][ch] = struct{}{}
	return ch, func() {
		n.mu.Lock()
		delete(n.watchers[threadID], ch)
		n.mu.Unlock()
	}
}

func (n *localNotifier) watching(threadID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watchers[threadID])
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, ev events.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

var (
	artistX = identity.Caller{ID: "artist-x", Role: identity.RoleArtist}
	artistY = identity.Caller{ID: "artist-y", Role: identity.RoleArtist}
	clientC = identity.Caller{ID: "client-c", Role: identity.RoleClient}
	clientD = identity.Caller{ID: "client-d", Role: identity.RoleClient}
)

type fixture struct {
	svc       *chatService
	repo      *memChatRepo
	notifier  *localNotifier
	publisher *recordingPublisher
}

func newFixture(opts Options) *fixture {
	repo := newMemChatRepo()
	notifier := newLocalNotifier()
	pub := &recordingPublisher{}
	users := userDir{
		"artist-x": {ID: "artist-x", Email: "x@ink.test", Role: identity.RoleArtist, Name: "Xavier"},
		"artist-y": {ID: "artist-y", Email: "y@ink.test", Role: identity.RoleArtist, Name: "Yara"},
		"client-c": {ID: "client-c", Email: "c@mail.test", Role: identity.RoleClient, Name: "Chris"},
		"client-d": {ID: "client-d", Email: "d@mail.test", Role: identity.RoleClient, Name: "Dana"},
	}
	svc := NewChatService(repo, lock.NewLocalLocker(), users, notifier, pub, opts).(*chatService)

	// часы идут вперёд на секунду при каждом вызове
	var mu sync.Mutex
	clock := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{svc: svc, repo: repo, notifier: notifier, publisher: pub}
}
