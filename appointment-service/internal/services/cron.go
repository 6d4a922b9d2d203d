package services

import (
	"context"
	"log"
	"time"

	"tattoo-app/appointment-service/internal/repository"
	"tattoo-app/pkg/events"
	"tattoo-app/pkg/identity"
)

type CronJobService struct {
	repo      repository.AppointmentRepository
	service   AppointmentService
	publisher events.Publisher
	now       func() time.Time
	// запись закрывается, когда после окончания прошло столько времени
	completionGrace time.Duration
}

func NewCronJobService(repo repository.AppointmentRepository, service AppointmentService, publisher events.Publisher, completionGrace time.Duration) *CronJobService {
	return &CronJobService{
		repo:            repo,
		service:         service,
		publisher:       publisher,
		now:             func() time.Time { return time.Now().UTC() },
		completionGrace: completionGrace,
	}
}

func (s *CronJobService) Start(ctx context.Context) {
	go s.run(ctx, "reminder", time.Hour, s.sendReminderNotifications)
	go s.run(ctx, "completion", 10*time.Minute, s.completeFinished)
}

func (s *CronJobService) run(ctx context.Context, name string, every time.Duration, job func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			job(ctx)
		case <-ctx.Done():
			log.Printf("[CRON] Stopping %s job", name)
			return
		}
	}
}

// sendReminderNotifications напоминает обоим участникам о сеансах через сутки
func (s *CronJobService) sendReminderNotifications(ctx context.Context) {
	from := s.now().Add(24 * time.Hour).Truncate(time.Hour)
	to := from.Add(time.Hour)

	appts, err := s.repo.ListBookedStartingBetween(ctx, from, to)
	if err != nil {
		log.Println("[CRON] Failed to fetch upcoming appointments:", err)
		return
	}

	for _, appt := range appts {
		extra := map[string]string{"appointment_id": appt.ID.Hex()}
		msg := "Reminder: your session starts tomorrow at " + appt.StartTime.Format("15:04") + " UTC."
		s.publisher.Publish(ctx, events.AppointmentEventsChannel, events.Event{
			UserID: appt.ClientID, Role: string(identity.RoleClient), EventType: "reminder", Message: msg, ExtraData: extra,
		})
		s.publisher.Publish(ctx, events.AppointmentEventsChannel, events.Event{
			UserID: appt.ArtistID, Role: string(identity.RoleArtist), EventType: "reminder", Message: msg, ExtraData: extra,
		})
	}
	if len(appts) > 0 {
		log.Printf("[CRON] Sent reminders for %d appointments", len(appts))
	}
}

// completeFinished marks booked appointments done once they are over.
func (s *CronJobService) completeFinished(ctx context.Context) {
	appts, err := s.repo.ListBookedEndedBefore(ctx, s.now().Add(-s.completionGrace))
	if err != nil {
		log.Println("[CRON] Failed to fetch finished appointments:", err)
		return
	}

	done := 0
	for _, appt := range appts {
		if err := s.service.MarkDone(ctx, appt.ID); err != nil {
			log.Printf("[CRON] Could not complete %s: %v", appt.ID.Hex(), err)
			continue
		}
		done++
	}
	if done > 0 {
		log.Printf("[CRON] Completed %d appointments", done)
	}
}
