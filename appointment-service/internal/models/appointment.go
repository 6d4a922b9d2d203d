package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/pkg/apperr"
)

type AppointmentStatus string

const (
	StatusBooked   AppointmentStatus = "booked"
	StatusCanceled AppointmentStatus = "canceled"
	StatusDone     AppointmentStatus = "done"
)

const (
	DefaultDurationMinutes = 60
	MaxDurationMinutes     = 24 * 60
)

// Appointment occupies [StartTime, EndTime) of the artist's calendar while
// booked. Records are never deleted.
type Appointment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DesignID  string             `bson:"design_id" json:"design_id"`
	ClientID  string             `bson:"client_id" json:"client_id"`
	ArtistID  string             `bson:"artist_id" json:"artist_id"`
	StartTime time.Time          `bson:"start_time" json:"start_time"`
	EndTime   time.Time          `bson:"end_time" json:"end_time"`
	Status    AppointmentStatus  `bson:"status" json:"status"`
	Paid      bool               `bson:"paid" json:"paid"`
	PayNow    bool               `bson:"pay_now" json:"pay_now"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

func (a *Appointment) IsParticipant(userID string) bool {
	return userID != "" && (a.ClientID == userID || a.ArtistID == userID)
}

// Counterpart returns the other participant.
func (a *Appointment) Counterpart(userID string) string {
	if a.ClientID == userID {
		return a.ArtistID
	}
	return a.ClientID
}

// Overlaps reports whether [start, end) intersects the appointment's
// interval. Touching endpoints do not overlap.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && a.EndTime.After(start)
}

type BookingRequest struct {
	DesignID        string `json:"design_id"`
	ArtistID        string `json:"artist_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes *int   `json:"duration_minutes"`
	PayNow          bool   `json:"pay_now"`
}

// Design is the slice of a catalog design the scheduler needs.
type Design struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ArtistID string `json:"artist_id"`
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseStartTime accepts RFC 3339 or a naive ISO-8601 date-time, which is
// read as UTC. Date-only values and anything else are rejected. Fractional
// seconds are kept to the millisecond, the precision Mongo stores.
func ParseStartTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC().Truncate(time.Millisecond), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.Truncate(time.Millisecond), nil
		}
	}
	return time.Time{}, apperr.New(apperr.ErrInvalidInput, "start_time %q is not an ISO-8601 date-time", raw)
}

// ResolveDuration applies the default and bounds to an optional minute count.
func ResolveDuration(minutes *int) (time.Duration, error) {
	if minutes == nil {
		return DefaultDurationMinutes * time.Minute, nil
	}
	if *minutes <= 0 || *minutes > MaxDurationMinutes {
		return 0, apperr.New(apperr.ErrInvalidInput, "duration_minutes must be between 1 and %d", MaxDurationMinutes)
	}
	return time.Duration(*minutes) * time.Minute, nil
}
