package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/catalog-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type DesignRepository interface {
	List(ctx context.Context, artistID string) ([]models.Design, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Design, error)
	Create(ctx context.Context, design *models.Design) error
	Update(ctx context.Context, artistID string, design *models.Design) error
	Delete(ctx context.Context, artistID string, id primitive.ObjectID) error
}

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type DesignService struct {
	repo      DesignRepository
	cache     Cache
	directory identity.Directory
	cacheTTL  time.Duration
}

func NewDesignService(repo DesignRepository, cache Cache, directory identity.Directory, cacheTTL time.Duration) *DesignService {
	return &DesignService{
		repo:      repo,
		cache:     cache,
		directory: directory,
		cacheTTL:  cacheTTL,
	}
}

func listCacheKey(artistID string) string {
	if artistID == "" {
		return "designs:all"
	}
	return fmt.Sprintf("designs:artist:%s", artistID)
}

func (s *DesignService) List(ctx context.Context, artistID string) ([]models.Design, error) {
	key := listCacheKey(artistID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached []models.Design
		if json.Unmarshal([]byte(raw), &cached) == nil {
			return cached, nil
		}
	}

	designs, err := s.repo.List(ctx, artistID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(designs); err == nil {
		if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
			log.Printf("[CACHE] Failed to cache %s: %v", key, err)
		}
	}
	return designs, nil
}

func (s *DesignService) Get(ctx context.Context, id string) (*models.Design, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	return s.repo.GetByID(ctx, objID)
}

func (s *DesignService) Create(ctx context.Context, caller identity.Caller, in models.DesignInput) (*models.Design, error) {
	if !caller.Is(identity.RoleArtist) {
		return nil, apperr.New(apperr.ErrUnauthorized, "only artists can publish designs")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	design := &models.Design{ArtistID: caller.ID}
	in.Apply(design)

	// имя денормализуем, чтобы список не ходил в auth-service
	if artist, err := s.directory.GetUser(ctx, caller.ID); err == nil {
		design.ArtistName = artist.Name
	} else {
		log.Printf("[CATALOG] Artist lookup failed for %s: %v", caller.ID, err)
	}

	if err := s.repo.Create(ctx, design); err != nil {
		return nil, err
	}
	s.invalidate(ctx, caller.ID)
	return design, nil
}

func (s *DesignService) Update(ctx context.Context, caller identity.Caller, id string, in models.DesignInput) (*models.Design, error) {
	if !caller.Is(identity.RoleArtist) {
		return nil, apperr.New(apperr.ErrUnauthorized, "only artists can edit designs")
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	design, err := s.repo.GetByID(ctx, objID)
	if err != nil {
		return nil, err
	}
	if design.ArtistID != caller.ID {
		return nil, models.ErrNotFound
	}
	in.Apply(design)

	if err := s.repo.Update(ctx, caller.ID, design); err != nil {
		return nil, err
	}
	s.invalidate(ctx, caller.ID)
	return design, nil
}

func (s *DesignService) Delete(ctx context.Context, caller identity.Caller, id string) error {
	if !caller.Is(identity.RoleArtist) {
		return apperr.New(apperr.ErrUnauthorized, "only artists can delete designs")
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrInvalidID
	}
	if err := s.repo.Delete(ctx, caller.ID, objID); err != nil {
		return err
	}
	s.invalidate(ctx, caller.ID)
	return nil
}

func (s *DesignService) invalidate(ctx context.Context, artistID string) {
	if err := s.cache.Delete(ctx, listCacheKey(""), listCacheKey(artistID)); err != nil {
		log.Printf("[CACHE] Failed to invalidate design lists: %v", err)
	}
}
