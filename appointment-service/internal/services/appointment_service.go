package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/appointment-service/internal/models"
	"tattoo-app/appointment-service/internal/repository"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/events"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/lock"
)

type AppointmentService interface {
	Book(ctx context.Context, caller identity.Caller, req models.BookingRequest) (*models.Appointment, error)
	Cancel(ctx context.Context, caller identity.Caller, id string) (*models.Appointment, error)
	MarkPaid(ctx context.Context, caller identity.Caller, id string) (*models.Appointment, error)
	MarkDone(ctx context.Context, id primitive.ObjectID) error
	ListMine(ctx context.Context, caller identity.Caller) ([]models.Appointment, error)
}

type DesignDirectory interface {
	GetDesign(ctx context.Context, id string) (*models.Design, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const (
	listCacheTTL = 5 * time.Minute
	// держим меньше LOCK_TTL по умолчанию (10s)
	defaultLockHold = 5 * time.Second
)

type appointmentService struct {
	repo      repository.AppointmentRepository
	locker    lock.Locker
	designs   DesignDirectory
	users     identity.Directory
	cache     Cache
	publisher events.Publisher
	lockHold  time.Duration
	now       func() time.Time
}

type Option func(*appointmentService)

// WithLockHold bounds the work done while the artist lock is held. It must be
// shorter than the lock lease, otherwise a slow insert can outlive the lock.
func WithLockHold(d time.Duration) Option {
	return func(s *appointmentService) {
		if d > 0 {
			s.lockHold = d
		}
	}
}

func NewAppointmentService(
	repo repository.AppointmentRepository,
	locker lock.Locker,
	designs DesignDirectory,
	users identity.Directory,
	cache Cache,
	publisher events.Publisher,
	opts ...Option,
) AppointmentService {
	s := &appointmentService{
		repo:      repo,
		locker:    locker,
		designs:   designs,
		users:     users,
		cache:     cache,
		publisher: publisher,
		lockHold:  defaultLockHold,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func artistLockKey(artistID string) string {
	return "artist:" + artistID
}

func listCacheKey(userID string) string {
	return fmt.Sprintf("appointments_by_user:%s", userID)
}

func (s *appointmentService) Book(ctx context.Context, caller identity.Caller, req models.BookingRequest) (*models.Appointment, error) {
	if !caller.Is(identity.RoleClient) {
		return nil, apperr.New(apperr.ErrUnauthorized, "only clients can book appointments")
	}
	req.DesignID = strings.TrimSpace(req.DesignID)
	req.ArtistID = strings.TrimSpace(req.ArtistID)
	if req.DesignID == "" || req.ArtistID == "" || strings.TrimSpace(req.StartTime) == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "design_id, artist_id and start_time are required")
	}

	// 1. дизайн и мастер существуют, мастер действительно мастер
	design, err := s.designs.GetDesign(ctx, req.DesignID)
	if err != nil {
		return nil, err
	}
	artist, err := s.users.GetUser(ctx, req.ArtistID)
	if err != nil {
		return nil, err
	}
	if artist.Role != identity.RoleArtist {
		return nil, apperr.New(apperr.ErrInvalidInput, "user %s is not an artist", req.ArtistID)
	}

	// 2. дизайн принадлежит этому мастеру
	if design.ArtistID != req.ArtistID {
		return nil, apperr.New(apperr.ErrInvalidInput, "design %s does not belong to artist %s", req.DesignID, req.ArtistID)
	}

	// 3. интервал
	start, err := models.ParseStartTime(req.StartTime)
	if err != nil {
		return nil, err
	}
	duration, err := models.ResolveDuration(req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	end := start.Add(duration)

	appt, err := s.reserve(ctx, &models.Appointment{
		DesignID:  req.DesignID,
		ClientID:  caller.ID,
		ArtistID:  req.ArtistID,
		StartTime: start,
		EndTime:   end,
		Status:    models.StatusBooked,
		PayNow:    req.PayNow,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[BOOKING] %s booked artist %s %s-%s", caller.ID, appt.ArtistID,
		appt.StartTime.Format(time.RFC3339), appt.EndTime.Format(time.RFC3339))
	s.invalidate(ctx, appt)
	s.notify(ctx, appt.ArtistID, identity.RoleArtist, "booked",
		fmt.Sprintf("New booking for %q on %s.", design.Title, appt.StartTime.Format("2006-01-02 15:04")), appt)
	return appt, nil
}

// reserve runs the overlap check and the insert under the artist's lock, so
// two bookings for one artist can never both pass the check. Both calls share
// a deadline of lockHold, which stays inside the lock lease.
func (s *appointmentService) reserve(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	unlock, err := s.locker.Lock(ctx, artistLockKey(appt.ArtistID))
	if err != nil {
		return nil, fmt.Errorf("acquire artist lock: %w", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.lockHold)
	defer cancel()

	conflict, err := s.repo.FindOverlapping(ctx, appt.ArtistID, appt.StartTime, appt.EndTime)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, apperr.New(apperr.ErrSlotUnavailable, "artist is already booked from %s to %s",
			conflict.StartTime.Format(time.RFC3339), conflict.EndTime.Format(time.RFC3339))
	}

	now := s.now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *appointmentService) load(ctx context.Context, caller identity.Caller, id string) (*models.Appointment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.New(apperr.ErrNotFound, "appointment %s not found", id)
	}
	appt, err := s.repo.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !appt.IsParticipant(caller.ID) {
		return nil, apperr.New(apperr.ErrForbidden, "not a participant of appointment %s", id)
	}
	return appt, nil
}

func (s *appointmentService) Cancel(ctx context.Context, caller identity.Caller, id string) (*models.Appointment, error) {
	appt, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != models.StatusBooked {
		return nil, apperr.New(apperr.ErrInvalidStateTransition, "cannot cancel appointment in state %s", appt.Status)
	}

	now := s.now()
	ok, err := s.repo.TransitionStatus(ctx, appt.ID, models.StatusBooked, models.StatusCanceled, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// кто-то успел раньше
		current, err := s.repo.GetByID(ctx, appt.ID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.ErrInvalidStateTransition, "cannot cancel appointment in state %s", current.Status)
	}
	appt.Status = models.StatusCanceled
	appt.UpdatedAt = now

	s.invalidate(ctx, appt)
	counterpart := appt.Counterpart(caller.ID)
	role := identity.RoleClient
	if counterpart == appt.ArtistID {
		role = identity.RoleArtist
	}
	s.notify(ctx, counterpart, role, "canceled",
		fmt.Sprintf("The appointment on %s was canceled.", appt.StartTime.Format("2006-01-02 15:04")), appt)
	return appt, nil
}

func (s *appointmentService) MarkPaid(ctx context.Context, caller identity.Caller, id string) (*models.Appointment, error) {
	appt, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if appt.Paid {
		return appt, nil
	}
	now := s.now()
	if err := s.repo.SetPaid(ctx, appt.ID, now); err != nil {
		return nil, err
	}
	appt.Paid = true
	appt.UpdatedAt = now
	s.invalidate(ctx, appt)
	return appt, nil
}

// MarkDone closes a booked appointment. There is no HTTP route for it; the
// completion job calls it.
func (s *appointmentService) MarkDone(ctx context.Context, id primitive.ObjectID) error {
	ok, err := s.repo.TransitionStatus(ctx, id, models.StatusBooked, models.StatusDone, s.now())
	if err != nil {
		return err
	}
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.ErrInvalidStateTransition, "cannot complete appointment in state %s", appt.Status)
	}
	s.invalidate(ctx, appt)
	return nil
}

func (s *appointmentService) ListMine(ctx context.Context, caller identity.Caller) ([]models.Appointment, error) {
	key := listCacheKey(caller.ID)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var cached []models.Appointment
		if json.Unmarshal(data, &cached) == nil {
			return cached, nil
		}
	}

	var (
		appts []models.Appointment
		err   error
	)
	switch caller.Role {
	case identity.RoleArtist:
		appts, err = s.repo.ListByArtist(ctx, caller.ID)
	case identity.RoleClient:
		appts, err = s.repo.ListByClient(ctx, caller.ID)
	default:
		return nil, apperr.New(apperr.ErrUnauthorized, "unknown role %q", caller.Role)
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(appts); err == nil {
		if err := s.cache.Set(ctx, key, data, listCacheTTL); err != nil {
			log.Printf("[CACHE] Failed to cache %s: %v", key, err)
		}
	}
	return appts, nil
}

func (s *appointmentService) invalidate(ctx context.Context, appt *models.Appointment) {
	if err := s.cache.Delete(ctx, listCacheKey(appt.ClientID), listCacheKey(appt.ArtistID)); err != nil {
		log.Printf("[CACHE] Failed to invalidate cache: %v", err)
	}
}

func (s *appointmentService) notify(ctx context.Context, userID string, role identity.Role, eventType, message string, appt *models.Appointment) {
	s.publisher.Publish(ctx, events.AppointmentEventsChannel, events.Event{
		UserID:    userID,
		Role:      string(role),
		EventType: eventType,
		Message:   message,
		ExtraData: map[string]string{
			"appointment_id": appt.ID.Hex(),
			"start_time":     appt.StartTime.Format(time.RFC3339),
		},
	})
}
