package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/media-service/internal/models"
	"tattoo-app/pkg/identity"
)

type memRepo struct {
	mu    sync.Mutex
	media []models.Media
	gens  map[primitive.ObjectID]models.ImageGeneration
}

func newMemRepo() *memRepo {
	return &memRepo{gens: map[primitive.ObjectID]models.ImageGeneration{}}
}

func (r *memRepo) Save(_ context.Context, m *models.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = primitive.NewObjectID()
	r.media = append(r.media, *m)
	return nil
}

func (r *memRepo) FindByUserID(_ context.Context, userID string) ([]models.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Media{}
	for _, m := range r.media {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) RecordGeneration(_ context.Context, g *models.ImageGeneration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g.ID = primitive.NewObjectID()
	r.gens[g.ID] = *g
	return nil
}

func (r *memRepo) DeleteGeneration(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gens, id)
	return nil
}

func (r *memRepo) CountGenerationsSince(_ context.Context, userID string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, g := range r.gens {
		if g.UserID == userID && !g.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) generations(userID string) int {
	n, _ := r.CountGenerationsSince(context.Background(), userID, time.Time{})
	return int(n)
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStorage) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return "http://minio.test/media/" + key, nil
}

type fakeOpenAI struct {
	mu        sync.Mutex
	fail      bool
	calls     int
	lastImage []byte
	lastMask  []byte
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func (f *fakeOpenAI) Generate(_ context.Context, prompt, size, background string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("%w: boom", models.ErrProvider)
	}
	return pngBytes, nil
}

func (f *fakeOpenAI) Edit(_ context.Context, prompt, size string, image, mask []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastImage, f.lastMask = image, mask
	if f.fail {
		return nil, fmt.Errorf("%w: boom", models.ErrProvider)
	}
	return pngBytes, nil
}

type fakeDashScope struct {
	lastImages []string
	lastSize   string
}

func (f *fakeDashScope) Generate(_ context.Context, prompt, size string) ([]string, error) {
	f.lastSize = size
	return []string{"https://dashscope.test/a.png", "https://dashscope.test/b.png"}, nil
}

func (f *fakeDashScope) Edit(_ context.Context, prompt string, images []string) ([]string, error) {
	f.lastImages = images
	return []string{"https://dashscope.test/edit.png"}, nil
}

type fakeCatalog struct {
	fail       bool
	lastBearer string
	lastDraft  models.DesignDraft
	created    int
}

func (f *fakeCatalog) CreateDesign(_ context.Context, bearer string, draft models.DesignDraft) (string, error) {
	if f.fail {
		return "", errors.New("catalog down")
	}
	f.created++
	f.lastBearer, f.lastDraft = bearer, draft
	return "design-1", nil
}

var (
	artist = identity.Caller{ID: "artist-1", Role: identity.RoleArtist}
	client = identity.Caller{ID: "client-1", Role: identity.RoleClient}
)

type fixture struct {
	images    *ImageService
	media     *MediaService
	repo      *memRepo
	storage   *memStorage
	openai    *fakeOpenAI
	dashscope *fakeDashScope
	catalog   *fakeCatalog
}

func newFixture(limit int) *fixture {
	repo := newMemRepo()
	storage := newMemStorage()
	media := NewMediaService(repo, storage, 1024)
	f := &fixture{
		media:     media,
		repo:      repo,
		storage:   storage,
		openai:    &fakeOpenAI{},
		dashscope: &fakeDashScope{},
		catalog:   &fakeCatalog{},
	}
	f.images = NewImageService(repo, media, f.openai, f.dashscope, f.catalog, ImageDefaults{
		DailyLimit: limit,
		Size:       "1024x1024",
		Background: "transparent",
	})
	return f
}
