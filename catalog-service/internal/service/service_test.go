package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/catalog-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type memDesigns struct {
	mu      sync.Mutex
	designs map[primitive.ObjectID]models.Design
	lists   int
}

func (m *memDesigns) List(_ context.Context, artistID string) ([]models.Design, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := []models.Design{}
	for _, d := range m.designs {
		if artistID == "" || d.ArtistID == artistID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDesigns) GetByID(_ context.Context, id primitive.ObjectID) (*models.Design, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.designs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &d, nil
}

func (m *memDesigns) Create(_ context.Context, d *models.Design) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = primitive.NewObjectID()
	d.CreatedAt = time.Now().Add(time.Duration(len(m.designs)) * time.Second)
	m.designs[d.ID] = *d
	return nil
}

func (m *memDesigns) Update(_ context.Context, artistID string, d *models.Design) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.designs[d.ID]; !ok || cur.ArtistID != artistID {
		return models.ErrNotFound
	}
	m.designs[d.ID] = *d
	return nil
}

func (m *memDesigns) Delete(_ context.Context, artistID string, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.designs[id]; !ok || cur.ArtistID != artistID {
		return models.ErrNotFound
	}
	delete(m.designs, id)
	return nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	c.data[key] = value
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

type staticDirectory map[string]identity.User

func (d staticDirectory) GetUser(_ context.Context, id string) (*identity.User, error) {
	u, ok := d[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "user %s not found", id)
	}
	return &u, nil
}

var (
	artist = identity.Caller{ID: "artist-1", Role: identity.RoleArtist}
	rival  = identity.Caller{ID: "artist-2", Role: identity.RoleArtist}
	client = identity.Caller{ID: "client-1", Role: identity.RoleClient}
)

func newTestService() (*DesignService, *memDesigns) {
	repo := &memDesigns{designs: map[primitive.ObjectID]models.Design{}}
	dir := staticDirectory{"artist-1": {ID: "artist-1", Role: identity.RoleArtist, Name: "Vera"}}
	return NewDesignService(repo, &memCache{data: map[string]string{}}, dir, time.Minute), repo
}

func price(v int64) *int64 { return &v }

func TestCreate_StampsOwnerAndArtistName(t *testing.T) {
	svc, _ := newTestService()
	d, err := svc.Create(context.Background(), artist, models.DesignInput{Title: "  Koi  ", Price: price(150)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ArtistID != "artist-1" || d.ArtistName != "Vera" || d.Title != "Koi" {
		t.Errorf("design = %+v", d)
	}
}

func TestCreate_Rejections(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, client, models.DesignInput{Title: "Rose"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("client create err = %v, want Unauthorized", err)
	}
	if _, err := svc.Create(ctx, artist, models.DesignInput{Title: "   "}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("blank title err = %v, want InvalidInput", err)
	}
	if _, err := svc.Create(ctx, artist, models.DesignInput{Title: "Rose", Price: price(-1)}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("negative price err = %v, want InvalidInput", err)
	}
}

func TestUpdateAndDelete_OwnerOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d, _ := svc.Create(ctx, artist, models.DesignInput{Title: "Dagger"})

	if _, err := svc.Update(ctx, rival, d.ID.Hex(), models.DesignInput{Title: "Mine now"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("rival update err = %v, want NotFound", err)
	}
	if err := svc.Delete(ctx, rival, d.ID.Hex()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("rival delete err = %v, want NotFound", err)
	}

	updated, err := svc.Update(ctx, artist, d.ID.Hex(), models.DesignInput{Title: "Dagger v2", Price: price(90)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Dagger v2" || *updated.Price != 90 {
		t.Errorf("updated = %+v", updated)
	}

	if err := svc.Delete(ctx, artist, d.ID.Hex()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, d.ID.Hex()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}

func TestList_CachedAndInvalidatedOnWrite(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	svc.Create(ctx, artist, models.DesignInput{Title: "One"})

	first, _ := svc.List(ctx, "")
	second, _ := svc.List(ctx, "")
	if repo.lists != 1 {
		t.Errorf("repo.List called %d times, want 1", repo.lists)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("lists = %d, %d", len(first), len(second))
	}

	svc.Create(ctx, artist, models.DesignInput{Title: "Two"})
	third, _ := svc.List(ctx, "")
	if len(third) != 2 || third[0].Title != "Two" {
		t.Errorf("after create list = %+v", third)
	}
}

func TestGet_InvalidID(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Get(context.Background(), "xyz"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want InvalidInput", err)
	}
}
