package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	TypeAppointment   NotificationType = "appointment"
	TypeChatMessage   NotificationType = "chat_message"
	TypeSystemMessage NotificationType = "system"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Role      string             `bson:"role,omitempty" json:"role,omitempty"`
	Type      NotificationType   `bson:"type" json:"type"`
	EventType string             `bson:"event_type,omitempty" json:"event_type,omitempty"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Metadata  map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IsRead    bool               `bson:"is_read" json:"is_read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
