package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/pkg/apperr"
)

type MediaKind string

const (
	UploadMedia    MediaKind = "upload"
	GeneratedMedia MediaKind = "generated"
)

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderDashScope Provider = "dashscope"
)

// MaxEditImages is how many reference images the DashScope editor accepts.
const MaxEditImages = 3

type Media struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	Kind        MediaKind          `bson:"kind" json:"kind"`
	FileName    string             `bson:"file_name,omitempty" json:"file_name,omitempty"`
	ObjectKey   string             `bson:"object_key" json:"object_key"`
	URL         string             `bson:"url" json:"url"`
	ContentType string             `bson:"content_type" json:"content_type"`
	Size        int64              `bson:"size" json:"size"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// ImageGeneration is one provider call charged to the user's daily quota.
type ImageGeneration struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Provider  Provider           `bson:"provider" json:"provider"`
	Prompt    string             `bson:"prompt" json:"prompt"`
	Size      string             `bson:"size" json:"size"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type GenerateRequest struct {
	Prompt       string   `json:"prompt"`
	Size         string   `json:"size"`
	Background   string   `json:"background"`
	Provider     Provider `json:"provider"`
	CreateDesign bool     `json:"create_design"`
	Title        string   `json:"title"`
	Price        *int64   `json:"price"`
	Description  string   `json:"description"`
}

type EditRequest struct {
	Prompt   string   `json:"prompt"`
	Provider Provider `json:"provider"`
	Size     string   `json:"size"`
	// openai
	ImageB64 string `json:"image_b64"`
	MaskB64  string `json:"mask_b64"`
	// dashscope: URLs or data URIs
	Images []string `json:"images"`
}

type ImageResult struct {
	ImageURLs   []string `json:"image_urls"`
	ImageURL    string   `json:"image_url,omitempty"`
	Limit       int      `json:"limit"`
	UsedToday   int64    `json:"used_today"`
	DesignID    string   `json:"design_id,omitempty"`
	DesignError string   `json:"design_error,omitempty"`
}

// ResolveProvider defaults to OpenAI and rejects unknown names.
func ResolveProvider(p Provider) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(string(p)))) {
	case "", ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderDashScope:
		return ProviderDashScope, nil
	}
	return "", apperr.New(apperr.ErrInvalidInput, "unknown provider %q", p)
}

// DesignDraft is what media-service asks the catalog to create.
type DesignDraft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url"`
	Price       *int64 `json:"price,omitempty"`
}
