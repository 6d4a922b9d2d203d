package services

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"tattoo-app/appointment-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

func book(f *fixture, caller identity.Caller, design, artist, start string, minutes *int) (*models.Appointment, error) {
	return f.svc.Book(context.Background(), caller, models.BookingRequest{
		DesignID: design, ArtistID: artist, StartTime: start, DurationMinutes: minutes,
	})
}

func TestBook_DefaultsAndNotifiesArtist(t *testing.T) {
	f := newFixture()
	appt, err := book(f, client1, "koi", "artist-a", "2025-09-12T15:00:00", nil)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if appt.Status != models.StatusBooked || appt.Paid || appt.PayNow {
		t.Errorf("appt = %+v", appt)
	}
	if got := appt.EndTime.Sub(appt.StartTime); got != time.Hour {
		t.Errorf("duration = %v, want 1h", got)
	}
	if appt.ClientID != "client-1" || appt.ArtistID != "artist-a" {
		t.Errorf("participants = %s/%s", appt.ClientID, appt.ArtistID)
	}
	if got, want := f.publisher.types(), []string{"artist-a:booked"}; !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestBook_AdjacentSlotsBothSucceed(t *testing.T) {
	f := newFixture()
	if _, err := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", intp(60)); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := book(f, client2, "koi", "artist-a", "2025-09-12T11:00:00Z", intp(60)); err != nil {
		t.Fatalf("adjacent: %v", err)
	}
	if _, err := book(f, client2, "koi", "artist-a", "2025-09-12T09:00:00Z", intp(60)); err != nil {
		t.Fatalf("adjacent before: %v", err)
	}
	if n := len(f.repo.booked("artist-a")); n != 3 {
		t.Errorf("booked = %d, want 3", n)
	}
}

func TestBook_OverlapRejected(t *testing.T) {
	f := newFixture()
	if _, err := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", intp(120)); err != nil {
		t.Fatal(err)
	}
	for _, start := range []string{"2025-09-12T10:00:00Z", "2025-09-12T11:30:00Z", "2025-09-12T09:30:00Z"} {
		_, err := book(f, client2, "koi", "artist-a", start, intp(60))
		if !errors.Is(err, apperr.ErrSlotUnavailable) {
			t.Errorf("start %s err = %v, want SlotUnavailable", start, err)
		}
	}
	// containing interval
	if _, err := book(f, client2, "koi", "artist-a", "2025-09-12T08:00:00Z", intp(300)); !errors.Is(err, apperr.ErrSlotUnavailable) {
		t.Errorf("enclosing err = %v, want SlotUnavailable", err)
	}
	if n := len(f.repo.booked("artist-a")); n != 1 {
		t.Errorf("booked = %d, want 1", n)
	}
}

func TestBook_OtherArtistsAreIndependent(t *testing.T) {
	f := newFixture()
	if _, err := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := book(f, client1, "rose", "artist-b", "2025-09-12T10:00:00Z", nil); err != nil {
		t.Errorf("same slot with another artist: %v", err)
	}
}

func TestBook_ConcurrentSameSlotExactlyOneWins(t *testing.T) {
	f := newFixture()
	const n = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			caller := client1
			if i%2 == 1 {
				caller = client2
			}
			// сдвинутые, но пересекающиеся интервалы
			minute := []string{"00", "15", "30", "45"}[i%4]
			_, err := book(f, caller, "koi", "artist-a", "2025-09-12T10:"+minute+":00Z", intp(60))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrSlotUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes != 1 || conflicts != n-1 {
		t.Errorf("successes=%d conflicts=%d, want 1 and %d", successes, conflicts, n-1)
	}
}

func TestBook_StalledCheckIsBoundedByLockHold(t *testing.T) {
	f := newFixture()
	hold := 50 * time.Millisecond
	WithLockHold(hold)(f.svc)

	var budget time.Duration
	f.repo.stallFind = func(ctx context.Context) error {
		if d, ok := ctx.Deadline(); ok {
			budget = time.Until(d)
		}
		<-ctx.Done()
		return ctx.Err()
	}

	began := time.Now()
	_, err := f.svc.Book(context.Background(), client1, models.BookingRequest{
		DesignID: "koi", ArtistID: "artist-a", StartTime: "2025-09-12T10:00:00Z",
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want %v", err, context.DeadlineExceeded)
	}
	if budget <= 0 || budget > hold {
		t.Errorf("critical section budget = %v, want within %v", budget, hold)
	}
	if elapsed := time.Since(began); elapsed > time.Second {
		t.Errorf("Book returned after %v, want about %v", elapsed, hold)
	}
	if n := len(f.repo.booked("artist-a")); n != 0 {
		t.Errorf("booked = %d, want 0", n)
	}

	// лок отпущен, следующая запись проходит
	f.repo.stallFind = nil
	if _, err := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", nil); err != nil {
		t.Errorf("Book after stall: %v", err)
	}
}

func TestBook_RandomScheduleKeepsIntervalsDisjoint(t *testing.T) {
	f := newFixture()
	rng := rand.New(rand.NewSource(42))
	base := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		offset := time.Duration(rng.Intn(48)) * 15 * time.Minute
		minutes := 15 * (1 + rng.Intn(8))
		artist, design := "artist-a", "koi"
		if rng.Intn(2) == 0 {
			artist, design = "artist-b", "rose"
		}
		wg.Add(1)
		go func(start string, minutes int) {
			defer wg.Done()
			_, err := book(f, client1, design, artist, start, intp(minutes))
			if err != nil && !errors.Is(err, apperr.ErrSlotUnavailable) {
				t.Errorf("unexpected error: %v", err)
			}
		}(base.Add(offset).Format(time.RFC3339), minutes)
	}
	wg.Wait()

	for _, artist := range []string{"artist-a", "artist-b"} {
		booked := f.repo.booked(artist)
		if len(booked) == 0 {
			t.Errorf("%s has no bookings", artist)
		}
		for i := 1; i < len(booked); i++ {
			if booked[i-1].Overlaps(booked[i].StartTime, booked[i].EndTime) {
				t.Errorf("%s: %v-%v overlaps %v-%v", artist,
					booked[i-1].StartTime, booked[i-1].EndTime, booked[i].StartTime, booked[i].EndTime)
			}
		}
	}
}

func TestBook_PreconditionOrder(t *testing.T) {
	f := newFixture()
	cases := []struct {
		name   string
		caller identity.Caller
		req    models.BookingRequest
		want   error
	}{
		{"artist caller", artistA, models.BookingRequest{DesignID: "koi", ArtistID: "artist-a", StartTime: "2025-09-12T10:00:00Z"}, apperr.ErrUnauthorized},
		{"missing fields", client1, models.BookingRequest{DesignID: "koi"}, apperr.ErrInvalidInput},
		{"unknown design beats bad time", client1, models.BookingRequest{DesignID: "nope", ArtistID: "artist-a", StartTime: "garbage"}, apperr.ErrNotFound},
		{"unknown artist", client1, models.BookingRequest{DesignID: "koi", ArtistID: "ghost", StartTime: "2025-09-12T10:00:00Z"}, apperr.ErrNotFound},
		{"artist is a client", client1, models.BookingRequest{DesignID: "orphan", ArtistID: "client-1", StartTime: "2025-09-12T10:00:00Z"}, apperr.ErrInvalidInput},
		{"design of another artist", client1, models.BookingRequest{DesignID: "rose", ArtistID: "artist-a", StartTime: "2025-09-12T10:00:00Z"}, apperr.ErrInvalidInput},
		{"bad time", client1, models.BookingRequest{DesignID: "koi", ArtistID: "artist-a", StartTime: "2025-09-12"}, apperr.ErrInvalidInput},
		{"bad duration", client1, models.BookingRequest{DesignID: "koi", ArtistID: "artist-a", StartTime: "2025-09-12T10:00:00Z", DurationMinutes: intp(0)}, apperr.ErrInvalidInput},
	}
	for _, tc := range cases {
		_, err := f.svc.Book(context.Background(), tc.caller, tc.req)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
	if n := len(f.repo.booked("artist-a")); n != 0 {
		t.Errorf("rejected requests created %d appointments", n)
	}
}

func TestCancel_FreesSlotForRebooking(t *testing.T) {
	f := newFixture()
	appt, _ := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", nil)

	canceled, err := f.svc.Cancel(context.Background(), client1, appt.ID.Hex())
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != models.StatusCanceled {
		t.Errorf("status = %s", canceled.Status)
	}
	if _, err := book(f, client2, "koi", "artist-a", "2025-09-12T10:00:00Z", nil); err != nil {
		t.Errorf("rebook after cancel: %v", err)
	}
}

func TestCancel_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, _ := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", nil)

	if _, err := f.svc.Cancel(ctx, client2, appt.ID.Hex()); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("outsider err = %v, want Forbidden", err)
	}
	if _, err := f.svc.Cancel(ctx, client1, "65f000000000000000000000"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v, want NotFound", err)
	}
	if _, err := f.svc.Cancel(ctx, client1, "not-an-id"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("malformed err = %v, want NotFound", err)
	}

	// мастер тоже участник
	if _, err := f.svc.Cancel(ctx, artistA, appt.ID.Hex()); err != nil {
		t.Fatalf("artist cancel: %v", err)
	}
	_, err := f.svc.Cancel(ctx, client1, appt.ID.Hex())
	if !errors.Is(err, apperr.ErrInvalidStateTransition) || !strings.Contains(err.Error(), "canceled") {
		t.Errorf("second cancel err = %v, want InvalidStateTransition naming canceled", err)
	}
}

func TestCancel_ConcurrentOnlyOneSucceeds(t *testing.T) {
	f := newFixture()
	appt, _ := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", nil)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Cancel(context.Background(), client1, appt.ID.Hex())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else if !errors.Is(err, apperr.ErrInvalidStateTransition) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful cancels = %d, want 1", ok)
	}
}

func TestMarkDone_ThenCancelRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, _ := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", nil)

	if err := f.svc.MarkDone(ctx, appt.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := f.svc.MarkDone(ctx, appt.ID); !errors.Is(err, apperr.ErrInvalidStateTransition) {
		t.Errorf("second MarkDone err = %v", err)
	}
	_, err := f.svc.Cancel(ctx, client1, appt.ID.Hex())
	if !errors.Is(err, apperr.ErrInvalidStateTransition) || !strings.Contains(err.Error(), "done") {
		t.Errorf("cancel done err = %v", err)
	}
}

func TestMarkPaid_IdempotentAndParticipantOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, _ := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", nil)

	if _, err := f.svc.MarkPaid(ctx, client2, appt.ID.Hex()); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("outsider err = %v, want Forbidden", err)
	}
	for i := 0; i < 2; i++ {
		paid, err := f.svc.MarkPaid(ctx, client1, appt.ID.Hex())
		if err != nil {
			t.Fatalf("MarkPaid #%d: %v", i, err)
		}
		if !paid.Paid || paid.Status != models.StatusBooked {
			t.Errorf("after pay #%d: %+v", i, paid)
		}
	}
}

func TestListMine_ByRoleAndCacheInvalidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, _ := book(f, client1, "koi", "artist-a", "2025-09-12T10:00:00Z", nil)
	book(f, client1, "rose", "artist-b", "2025-09-13T10:00:00Z", nil)
	book(f, client2, "koi", "artist-a", "2025-09-14T10:00:00Z", nil)

	mine, err := f.svc.ListMine(ctx, client1)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || !mine[0].StartTime.After(mine[1].StartTime) {
		t.Errorf("client list = %+v", mine)
	}

	artistList, _ := f.svc.ListMine(ctx, artistA)
	if len(artistList) != 2 {
		t.Errorf("artist list len = %d, want 2", len(artistList))
	}

	// второй запрос из кэша
	f.svc.ListMine(ctx, artistA)
	if f.cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", f.cache.hits)
	}

	f.svc.Cancel(ctx, client1, first.ID.Hex())
	artistList, _ = f.svc.ListMine(ctx, artistA)
	var statuses []models.AppointmentStatus
	for _, a := range artistList {
		statuses = append(statuses, a.Status)
	}
	want := []models.AppointmentStatus{models.StatusBooked, models.StatusCanceled}
	if !reflect.DeepEqual(statuses, want) {
		t.Errorf("statuses after cancel = %v, want %v", statuses, want)
	}
}
