package services

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/appointment-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/events"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/lock"
)

// memRepo keeps the overlap check and the insert in separate critical
// sections, like two separate Mongo round trips.
type memRepo struct {
	mu    sync.Mutex
	appts map[primitive.ObjectID]models.Appointment
	// stallFind, if set, runs before the overlap check with its context.
	stallFind func(ctx context.Context) error
}

func newMemRepo() *memRepo {
	return &memRepo{appts: map[primitive.ObjectID]models.Appointment{}}
}

func (r *memRepo) Create(_ context.Context, a *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = primitive.NewObjectID()
	r.appts[a.ID] = *a
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "appointment %s not found", id.Hex())
	}
	return &a, nil
}

func (r *memRepo) FindOverlapping(ctx context.Context, artistID string, start, end time.Time) (*models.Appointment, error) {
	if r.stallFind != nil {
		if err := r.stallFind(ctx); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	var found *models.Appointment
	for _, a := range r.appts {
		if a.ArtistID == artistID && a.Status == models.StatusBooked && a.Overlaps(start, end) {
			cp := a
			found = &cp
			break
		}
	}
	r.mu.Unlock()
	runtime.Gosched()
	return found, nil
}

func (r *memRepo) TransitionStatus(_ context.Context, id primitive.ObjectID, from, to models.AppointmentStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = at
	r.appts[id] = a
	return true, nil
}

func (r *memRepo) SetPaid(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.appts[id]
	a.Paid = true
	a.UpdatedAt = at
	r.appts[id] = a
	return nil
}

func (r *memRepo) list(match func(models.Appointment) bool, asc bool) []models.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Appointment{}
	for _, a := range r.appts {
		if match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

func (r *memRepo) ListByClient(_ context.Context, clientID string) ([]models.Appointment, error) {
	return r.list(func(a models.Appointment) bool { return a.ClientID == clientID }, false), nil
}

func (r *memRepo) ListByArtist(_ context.Context, artistID string) ([]models.Appointment, error) {
	return r.list(func(a models.Appointment) bool { return a.ArtistID == artistID }, false), nil
}

func (r *memRepo) ListBookedStartingBetween(_ context.Context, from, to time.Time) ([]models.Appointment, error) {
	return r.list(func(a models.Appointment) bool {
		return a.Status == models.StatusBooked && !a.StartTime.Before(from) && a.StartTime.Before(to)
	}, true), nil
}

func (r *memRepo) ListBookedEndedBefore(_ context.Context, t time.Time) ([]models.Appointment, error) {
	return r.list(func(a models.Appointment) bool {
		return a.Status == models.StatusBooked && !a.EndTime.After(t)
	}, true), nil
}

func (r *memRepo) booked(artistID string) []models.Appointment {
	return r.list(func(a models.Appointment) bool {
		return a.ArtistID == artistID && a.Status == models.StatusBooked
	}, true)
}

type designDir map[string]models.Design

func (d designDir) GetDesign(_ context.Context, id string) (*models.Design, error) {
	design, ok := d[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "design %s not found", id)
	}
	return &design, nil
}

type userDir map[string]identity.User

func (d userDir) GetUser(_ context.Context, id string) (*identity.User, error) {
	u, ok := d[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "user %s not found", id)
	}
	return &u, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, redis.Nil
	}
	c.hits++
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, v []byte, _ time.Duration) error {
	c.mu.Lock()
	c.data[key] = v
	c.mu.Unlock()
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.mu.Unlock()
	return nil
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

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.UserID+":"+ev.EventType)
	}
	return out
}

var (
	artistA = identity.Caller{ID: "artist-a", Role: identity.RoleArtist}
	artistB = identity.Caller{ID: "artist-b", Role: identity.RoleArtist}
	client1 = identity.Caller{ID: "client-1", Role: identity.RoleClient}
	client2 = identity.Caller{ID: "client-2", Role: identity.RoleClient}
)

type fixture struct {
	svc       *appointmentService
	repo      *memRepo
	cache     *memCache
	publisher *recordingPublisher
}

func newFixture() *fixture {
	repo := newMemRepo()
	cache := &memCache{data: map[string][]byte{}}
	pub := &recordingPublisher{}
	designs := designDir{
		"koi":    {ID: "koi", Title: "Koi", ArtistID: "artist-a"},
		"rose":   {ID: "rose", Title: "Rose", ArtistID: "artist-b"},
		"orphan": {ID: "orphan", Title: "Orphan", ArtistID: "client-1"},
	}
	users := userDir{
		"artist-a": {ID: "artist-a", Role: identity.RoleArtist, Name: "A"},
		"artist-b": {ID: "artist-b", Role: identity.RoleArtist, Name: "B"},
		"client-1": {ID: "client-1", Role: identity.RoleClient, Name: "C1"},
		"client-2": {ID: "client-2", Role: identity.RoleClient, Name: "C2"},
	}
	svc := NewAppointmentService(repo, lock.NewLocalLocker(), designs, users, cache, pub).(*appointmentService)
	return &fixture{svc: svc, repo: repo, cache: cache, publisher: pub}
}

func intp(v int) *int { return &v }
