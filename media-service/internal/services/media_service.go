package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"tattoo-app/media-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type MediaRepository interface {
	Save(ctx context.Context, m *models.Media) error
	FindByUserID(ctx context.Context, userID string) ([]models.Media, error)
}

// Storage keeps binary objects and returns a public URL for each.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type MediaService struct {
	repo     MediaRepository
	storage  Storage
	maxBytes int64
	now      func() time.Time
}

func NewMediaService(r MediaRepository, storage Storage, maxBytes int64) *MediaService {
	return &MediaService{
		repo:     r,
		storage:  storage,
		maxBytes: maxBytes,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func objectKey(kind models.MediaKind, userID, ext string) string {
	return fmt.Sprintf("%s/%s/%s%s", kind, userID, uuid.NewString(), ext)
}

// Upload stores an image sent by the caller. The type is sniffed from the
// content, the client's header is not trusted.
func (s *MediaService) Upload(ctx context.Context, caller identity.Caller, r io.Reader, size int64, filename string) (*models.Media, error) {
	if size > s.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", models.ErrFileTooLarge, s.maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", models.ErrFileTooLarge, s.maxBytes)
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.ErrInvalidInput, "file is empty")
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: got %s", models.ErrNotImage, mt.String())
	}

	return s.store(ctx, caller.ID, models.UploadMedia, path.Base(filename), data, mt.String(), mt.Extension())
}

// store пишет объект в хранилище и запись в Mongo
func (s *MediaService) store(ctx context.Context, userID string, kind models.MediaKind, filename string, data []byte, contentType, ext string) (*models.Media, error) {
	key := objectKey(kind, userID, ext)
	url, err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return nil, err
	}
	media := &models.Media{
		UserID:      userID,
		Kind:        kind,
		FileName:    filename,
		ObjectKey:   key,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   s.now(),
	}
	if err := s.repo.Save(ctx, media); err != nil {
		return nil, err
	}
	return media, nil
}

func (s *MediaService) ListMine(ctx context.Context, caller identity.Caller) ([]models.Media, error) {
	return s.repo.FindByUserID(ctx, caller.ID)
}
