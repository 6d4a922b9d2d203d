package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/notification-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/events"
	"tattoo-app/pkg/identity"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByUserID(ctx context.Context, userID string, limit, offset int64) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id primitive.ObjectID, userID string) error
}

type NotificationService struct {
	repo NotificationRepository
	now  func() time.Time
}

func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Channels lists the redis channels the service listens to.
func Channels() []string {
	return []string{events.AppointmentEventsChannel, events.ChatEventsChannel}
}

// ProcessEvent обрабатывает событие из Redis и сохраняет уведомление
func (s *NotificationService) ProcessEvent(ctx context.Context, channel string, payload []byte) error {
	var event events.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.UserID == "" {
		return fmt.Errorf("event %q on %s has no recipient", event.EventType, channel)
	}

	var notifType models.NotificationType
	var title string

	switch channel {
	case events.AppointmentEventsChannel:
		notifType = models.TypeAppointment
		title = formatAppointmentTitle(event.EventType)
	case events.ChatEventsChannel:
		notifType = models.TypeChatMessage
		title = "Новое сообщение"
	default:
		notifType = models.TypeSystemMessage
		title = "Системное уведомление"
	}
	if event.Title != "" {
		title = event.Title
	}

	notification := &models.Notification{
		UserID:    event.UserID,
		Role:      event.Role,
		Type:      notifType,
		EventType: event.EventType,
		Title:     title,
		Message:   event.Message,
		Metadata:  event.ExtraData,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	log.Printf("[NOTIFY] %s for %s: %s", notification.Type, notification.UserID, notification.Title)
	return nil
}

func formatAppointmentTitle(eventType string) string {
	switch eventType {
	case "booked":
		return "Новая запись"
	case "canceled":
		return "Запись отменена"
	case "paid":
		return "Запись оплачена"
	case "done":
		return "Сеанс завершён"
	case "reminder":
		return "Напоминание о сеансе"
	default:
		return "Обновление записи"
	}
}

// GetNotifications возвращает страницу уведомлений пользователя
func (s *NotificationService) GetNotifications(ctx context.Context, caller identity.Caller, limit, offset int64) ([]models.Notification, error) {
	if offset < 0 {
		return nil, apperr.New(apperr.ErrInvalidInput, "offset must not be negative")
	}
	switch {
	case limit == 0:
		limit = models.DefaultLimit
	case limit < 1:
		limit = 1
	case limit > models.MaxLimit:
		limit = models.MaxLimit
	}
	return s.repo.GetByUserID(ctx, caller.ID, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, caller identity.Caller) (int64, error) {
	return s.repo.CountUnread(ctx, caller.ID)
}

// MarkAsRead отмечает уведомление как прочитанное
func (s *NotificationService) MarkAsRead(ctx context.Context, caller identity.Caller, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.New(apperr.ErrNotFound, "notification not found")
	}
	return s.repo.MarkAsRead(ctx, oid, caller.ID)
}
