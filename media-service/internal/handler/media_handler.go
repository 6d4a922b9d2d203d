package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"tattoo-app/media-service/internal/models"
	service "tattoo-app/media-service/internal/services"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type MediaHandler struct {
	media  *service.MediaService
	images *service.ImageService
}

func NewMediaHandler(media *service.MediaService, images *service.ImageService) *MediaHandler {
	return &MediaHandler{media: media, images: images}
}

func (h *MediaHandler) Upload(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, apperr.New(apperr.ErrInvalidInput, "file is required"))
		return
	}
	defer file.Close()

	media, err := h.media.Upload(c.Request.Context(), caller, file, header.Size, header.Filename)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": media.URL, "media": media})
}

func (h *MediaHandler) ListMine(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	medias, err := h.media.ListMine(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, medias)
}

func (h *MediaHandler) Generate(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.ErrInvalidInput, "invalid request body"))
		return
	}
	bearer := identity.BearerToken(c.GetHeader("Authorization"))
	result, err := h.images.Generate(c.Request.Context(), caller, bearer, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *MediaHandler) Edit(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	var req models.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.ErrInvalidInput, "invalid request body"))
		return
	}
	result, err := h.images.Edit(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// respondError adds the media-specific statuses on top of apperr.
func respondError(c *gin.Context, err error) {
	var quota *models.QuotaError
	switch {
	case errors.As(err, &quota):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      quota.Error(),
			"code":       "QuotaExceeded",
			"limit":      quota.Limit,
			"used_today": quota.UsedToday,
		})
	case service.ProviderFailure(err):
		log.Printf("[IMAGES] Provider error: %v", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "ProviderError"})
	case errors.Is(err, models.ErrFileTooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error(), "code": "FileTooLarge"})
	case errors.Is(err, models.ErrNotImage):
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error(), "code": "NotImage"})
	default:
		apperr.Respond(c, err)
	}
}
