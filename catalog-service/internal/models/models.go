package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/pkg/validation"
)

// Design is a piece of flash an artist offers for booking.
type Design struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	ImageURL    string             `json:"image_url" bson:"image_url"`
	Price       *int64             `json:"price" bson:"price"`
	ArtistID    string             `json:"artist_id" bson:"artist_id"`
	ArtistName  string             `json:"artist_name" bson:"artist_name"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// DesignInput is the writable part of a Design.
type DesignInput struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=4000"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Price       *int64 `json:"price" validate:"omitempty,gte=0"`
}

// Validate trims the input and validates it
func (in *DesignInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	return validation.Struct(in)
}

func (in DesignInput) Apply(d *Design) {
	d.Title = in.Title
	d.Description = in.Description
	d.ImageURL = in.ImageURL
	d.Price = in.Price
}
