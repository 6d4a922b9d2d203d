package service

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/media-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type GenerationRepository interface {
	RecordGeneration(ctx context.Context, g *models.ImageGeneration) error
	DeleteGeneration(ctx context.Context, id primitive.ObjectID) error
	CountGenerationsSince(ctx context.Context, userID string, since time.Time) (int64, error)
}

// PNGProvider returns image bytes (OpenAI).
type PNGProvider interface {
	Generate(ctx context.Context, prompt, size, background string) ([]byte, error)
	Edit(ctx context.Context, prompt, size string, image, mask []byte) ([]byte, error)
}

// URLProvider returns provider-hosted image URLs (DashScope).
type URLProvider interface {
	Generate(ctx context.Context, prompt, size string) ([]string, error)
	Edit(ctx context.Context, prompt string, images []string) ([]string, error)
}

type DesignCreator interface {
	CreateDesign(ctx context.Context, bearer string, draft models.DesignDraft) (string, error)
}

type ImageDefaults struct {
	DailyLimit int
	Size       string
	Background string
}

type ImageService struct {
	gens      GenerationRepository
	media     *MediaService
	openai    PNGProvider
	dashscope URLProvider
	catalog   DesignCreator
	defaults  ImageDefaults
	now       func() time.Time
}

func NewImageService(gens GenerationRepository, media *MediaService, openai PNGProvider, dashscope URLProvider, catalog DesignCreator, defaults ImageDefaults) *ImageService {
	return &ImageService{
		gens:      gens,
		media:     media,
		openai:    openai,
		dashscope: dashscope,
		catalog:   catalog,
		defaults:  defaults,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// reserve charges one generation to the user's quota before the provider is
// called. The record is inserted first and counted after, so two concurrent
// requests can never both take the last slot.
func (s *ImageService) reserve(ctx context.Context, userID string, provider models.Provider, prompt, size string) (primitive.ObjectID, int64, error) {
	now := s.now()
	gen := &models.ImageGeneration{UserID: userID, Provider: provider, Prompt: prompt, Size: size, CreatedAt: now}
	if err := s.gens.RecordGeneration(ctx, gen); err != nil {
		return primitive.NilObjectID, 0, err
	}
	used, err := s.gens.CountGenerationsSince(ctx, userID, startOfDay(now))
	if err != nil {
		s.release(gen.ID)
		return primitive.NilObjectID, 0, err
	}
	if used > int64(s.defaults.DailyLimit) {
		s.release(gen.ID)
		return primitive.NilObjectID, 0, &models.QuotaError{Limit: s.defaults.DailyLimit, UsedToday: used - 1}
	}
	return gen.ID, used, nil
}

// release отдаёт слот квоты обратно, если провайдер не ответил
func (s *ImageService) release(id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.gens.DeleteGeneration(ctx, id); err != nil {
		log.Printf("[IMAGES] Failed to release quota slot %s: %v", id.Hex(), err)
	}
}

func (s *ImageService) Generate(ctx context.Context, caller identity.Caller, bearer string, req models.GenerateRequest) (*models.ImageResult, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "prompt is required")
	}
	provider, err := models.ResolveProvider(req.Provider)
	if err != nil {
		return nil, err
	}
	size := strings.TrimSpace(req.Size)
	if size == "" {
		size = s.defaults.Size
	}
	background := strings.TrimSpace(req.Background)
	if background == "" {
		background = s.defaults.Background
	}

	slot, used, err := s.reserve(ctx, caller.ID, provider, req.Prompt, size)
	if err != nil {
		return nil, err
	}

	var urls []string
	switch provider {
	case models.ProviderDashScope:
		urls, err = s.dashscope.Generate(ctx, req.Prompt, size)
	default:
		var png []byte
		if png, err = s.openai.Generate(ctx, req.Prompt, size, background); err == nil {
			urls, err = s.keep(ctx, caller.ID, png)
		}
	}
	if err != nil {
		s.release(slot)
		return nil, err
	}
	log.Printf("[IMAGES] %s generated %d image(s) via %s (%d/%d today)", caller.ID, len(urls), provider, used, s.defaults.DailyLimit)

	result := &models.ImageResult{ImageURLs: urls, ImageURL: urls[0], Limit: s.defaults.DailyLimit, UsedToday: used}
	if req.CreateDesign && caller.Is(identity.RoleArtist) {
		s.attachDesign(ctx, bearer, req, result)
	}
	return result, nil
}

func (s *ImageService) attachDesign(ctx context.Context, bearer string, req models.GenerateRequest, result *models.ImageResult) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Design " + s.now().Format(time.RFC3339)
	}
	id, err := s.catalog.CreateDesign(ctx, bearer, models.DesignDraft{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		ImageURL:    result.ImageURL,
		Price:       req.Price,
	})
	if err != nil {
		// картинка уже сгенерирована и учтена, дизайн можно создать вручную
		log.Printf("[IMAGES] Failed to create design: %v", err)
		result.DesignError = "could not create design from image"
		return
	}
	result.DesignID = id
}

func (s *ImageService) Edit(ctx context.Context, caller identity.Caller, req models.EditRequest) (*models.ImageResult, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	provider, err := models.ResolveProvider(req.Provider)
	if err != nil {
		return nil, err
	}
	size := strings.TrimSpace(req.Size)
	if size == "" {
		size = s.defaults.Size
	}

	var image, mask []byte
	switch provider {
	case models.ProviderDashScope:
		if req.Prompt == "" || len(req.Images) == 0 {
			return nil, apperr.New(apperr.ErrInvalidInput, "prompt and at least one image are required")
		}
		if len(req.Images) > models.MaxEditImages {
			req.Images = req.Images[:models.MaxEditImages]
		}
	default:
		if req.Prompt == "" || req.ImageB64 == "" || req.MaskB64 == "" {
			return nil, apperr.New(apperr.ErrInvalidInput, "prompt, image_b64 and mask_b64 are required")
		}
		if image, err = decodeB64(req.ImageB64); err != nil {
			return nil, apperr.New(apperr.ErrInvalidInput, "image_b64 is not valid base64")
		}
		if mask, err = decodeB64(req.MaskB64); err != nil {
			return nil, apperr.New(apperr.ErrInvalidInput, "mask_b64 is not valid base64")
		}
	}

	slot, used, err := s.reserve(ctx, caller.ID, provider, req.Prompt, size)
	if err != nil {
		return nil, err
	}

	var urls []string
	if provider == models.ProviderDashScope {
		urls, err = s.dashscope.Edit(ctx, req.Prompt, req.Images)
	} else {
		var png []byte
		if png, err = s.openai.Edit(ctx, req.Prompt, size, image, mask); err == nil {
			urls, err = s.keep(ctx, caller.ID, png)
		}
	}
	if err != nil {
		s.release(slot)
		return nil, err
	}
	return &models.ImageResult{ImageURLs: urls, ImageURL: urls[0], Limit: s.defaults.DailyLimit, UsedToday: used}, nil
}

func (s *ImageService) keep(ctx context.Context, userID string, png []byte) ([]string, error) {
	m, err := s.media.store(ctx, userID, models.GeneratedMedia, "", png, "image/png", ".png")
	if err != nil {
		return nil, err
	}
	return []string{m.URL}, nil
}

// decodeB64 accepts plain base64 and data URIs.
func decodeB64(raw string) ([]byte, error) {
	if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i > 0 {
		raw = raw[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

// ProviderFailure reports whether err came from the image provider.
func ProviderFailure(err error) bool {
	return errors.Is(err, models.ErrProvider) || errors.Is(err, models.ErrProviderNotSet)
}
