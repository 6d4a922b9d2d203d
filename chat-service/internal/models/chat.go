package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/pkg/apperr"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Side is the half of a thread a participant sits on. It selects which
// seen flag belongs to them.
type Side string

const (
	SideArtist Side = "artist"
	SideClient Side = "client"
)

func (s Side) SeenField() string {
	return "seen_by_" + string(s)
}

// Thread is the only conversation between one artist and one client.
type Thread struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ArtistID  string             `bson:"artist_id" json:"artist_id"`
	ClientID  string             `bson:"client_id" json:"client_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// SideOf reports which side userID is on, false when it is not a participant.
func (t *Thread) SideOf(userID string) (Side, bool) {
	switch userID {
	case "":
		return "", false
	case t.ArtistID:
		return SideArtist, true
	case t.ClientID:
		return SideClient, true
	}
	return "", false
}

func (t *Thread) Counterpart(userID string) string {
	if userID == t.ArtistID {
		return t.ClientID
	}
	return t.ArtistID
}

// Message ids come from a shared counter and are allocated under the
// thread's lock, so inside a thread they grow in insertion order.
type Message struct {
	ID           int64              `bson:"_id" json:"id"`
	ThreadID     primitive.ObjectID `bson:"thread_id" json:"thread_id"`
	SenderID     string             `bson:"sender_id" json:"sender_id"`
	Text         string             `bson:"text,omitempty" json:"text,omitempty"`
	ImageURL     string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	SeenByArtist bool               `bson:"seen_by_artist" json:"seen_by_artist"`
	SeenByClient bool               `bson:"seen_by_client" json:"seen_by_client"`
}

type EnsureThreadRequest struct {
	OtherUserID string `json:"other_user_id"`
}

type SendMessageRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// Normalize trims both payloads and requires at least one of them.
func (r *SendMessageRequest) Normalize() error {
	r.Text = strings.TrimSpace(r.Text)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	if r.Text == "" && r.ImageURL == "" {
		return apperr.New(apperr.ErrInvalidInput, "text or image_url is required")
	}
	return nil
}

type MarkReadRequest struct {
	LastID int64 `json:"last_id"`
}

type Counterpart struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type ThreadSummary struct {
	ThreadID    string      `json:"thread_id"`
	Counterpart Counterpart `json:"counterpart"`
	LastMessage *Message    `json:"last_message"`
	Unread      int64       `json:"unread"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ThreadStats is what the thread list needs from a thread's messages.
// Unread counts skip messages sent by the reader the stats were built for.
type ThreadStats struct {
	Last           *Message
	UnreadByArtist int64
	UnreadByClient int64
}

func (s ThreadStats) Unread(side Side) int64 {
	if side == SideArtist {
		return s.UnreadByArtist
	}
	return s.UnreadByClient
}

// ClampLimit applies the page-size default and bounds.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultPageSize
	case limit < 1:
		return 1
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}
