package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/example/gym-reservations/internal/persistence"
)

func newReservationServiceForTest(lessons *lessonRepoStub, store *reservationStoreStub) *ReservationService {
	return NewReservationService(store, lessons, nil, sequence("res"), clock())
}

func booking(email string) AdmitReservationParams {
	return AdmitReservationParams{
		LessonID:   "lesson-1",
		LessonDate: "2024-06-11",
		Participant: Participant{
			Name:  "Hanako Sato",
			Email: email,
		},
	}
}

func TestReservationService_AdmitReservation(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(3))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	params := booking("  Hanako@Example.COM ")
	params.Participant.Phone = strPtr(" 090-1234-5678 ")
	params.Participant.Notes = strPtr("")

	res, err := svc.AdmitReservation(context.Background(), params)
	if err != nil {
		t.Fatalf("AdmitReservation returned error: %v", err)
	}
	if res.ID != "res-1" || res.Status != StatusConfirmed {
		t.Fatalf("unexpected reservation: %+v", res)
	}
	if res.Participant.Email != "hanako@example.com" {
		t.Fatalf("expected normalised email, got %q", res.Participant.Email)
	}
	if res.Participant.Phone == nil || *res.Participant.Phone != "090-1234-5678" {
		t.Fatalf("expected trimmed phone, got %v", res.Participant.Phone)
	}
	if res.Participant.Notes != nil {
		t.Fatalf("expected empty notes dropped, got %q", *res.Participant.Notes)
	}
	if got := len(store.confirmed("lesson-1", "2024-06-11")); got != 1 {
		t.Fatalf("expected one stored reservation, got %d", got)
	}
}

func TestReservationService_AdmitReservationValidatesBeforeStore(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(3))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	_, err := svc.AdmitReservation(context.Background(), AdmitReservationParams{
		LessonID:    "",
		LessonDate:  "11/06/2024",
		Participant: Participant{Name: "", Email: "not-an-email"},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"lesson_id", "lesson_date", "participant_name", "participant_email"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
		}
	}
	if store.countCalls != 0 {
		t.Fatalf("expected no storage access, got %d count calls", store.countCalls)
	}
}

func TestReservationService_AdmitReservationFull(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(2))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	for _, email := range []string{"a@example.com", "b@example.com"} {
		if _, err := svc.AdmitReservation(context.Background(), booking(email)); err != nil {
			t.Fatalf("AdmitReservation(%s) returned error: %v", email, err)
		}
	}

	_, err := svc.AdmitReservation(context.Background(), booking("c@example.com"))
	if !errors.Is(err, ErrLessonFull) {
		t.Fatalf("expected ErrLessonFull, got %v", err)
	}
	if got := len(store.confirmed("lesson-1", "2024-06-11")); got != 2 {
		t.Fatalf("expected rejected admission to write nothing, got %d rows", got)
	}
}

func TestReservationService_AdmitReservationDuplicateBeforeFull(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(1))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	if _, err := svc.AdmitReservation(context.Background(), booking("a@example.com")); err != nil {
		t.Fatalf("AdmitReservation returned error: %v", err)
	}
	_, err := svc.AdmitReservation(context.Background(), booking("a@example.com"))
	if !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("expected the existing seat to be reported on a full lesson, got %v", err)
	}
	_, err = svc.AdmitReservation(context.Background(), booking("b@example.com"))
	if !errors.Is(err, ErrLessonFull) {
		t.Fatalf("expected ErrLessonFull for a new participant, got %v", err)
	}
	if got := len(store.confirmed("lesson-1", "2024-06-11")); got != 1 {
		t.Fatalf("expected rejections to write nothing, got %d rows", got)
	}
}

func TestReservationService_AdmitReservationDuplicate(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(5))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	if _, err := svc.AdmitReservation(context.Background(), booking("a@example.com")); err != nil {
		t.Fatalf("AdmitReservation returned error: %v", err)
	}
	_, err := svc.AdmitReservation(context.Background(), booking("A@Example.com"))
	if !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking, got %v", err)
	}

	other := booking("a@example.com")
	other.LessonDate = "2024-06-18"
	if _, err := svc.AdmitReservation(context.Background(), other); err != nil {
		t.Fatalf("expected a different date to be bookable, got %v", err)
	}
}

func TestReservationService_AdmitReservationAfterCancel(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(1))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	if _, err := svc.AdmitReservation(context.Background(), booking("a@example.com")); err != nil {
		t.Fatalf("AdmitReservation returned error: %v", err)
	}
	cancelled, err := svc.CancelReservation(context.Background(), CancelReservationParams{
		LessonID:   "lesson-1",
		LessonDate: "2024-06-11",
		Email:      "A@example.com",
	})
	if err != nil {
		t.Fatalf("CancelReservation returned error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %q", cancelled.Status)
	}
	if _, err := svc.AdmitReservation(context.Background(), booking("a@example.com")); err != nil {
		t.Fatalf("expected rebooking after cancel, got %v", err)
	}
}

func TestReservationService_AdmitReservationUnknownLesson(t *testing.T) {
	lessons := newLessonRepoStub()
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	_, err := svc.AdmitReservation(context.Background(), booking("a@example.com"))
	if !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("expected ErrLessonNotFound, got %v", err)
	}
}

func TestReservationService_AdmitReservationNotScheduled(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(5))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	params := booking("a@example.com")
	params.LessonDate = "2024-06-12"

	_, err := svc.AdmitReservation(context.Background(), params)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["lesson_date"]; !ok {
		t.Fatalf("expected lesson_date error, got %v", vErr.FieldErrors)
	}
}

func TestReservationService_AdmitReservationStoreConflicts(t *testing.T) {
	tests := []struct {
		name      string
		insertErr error
		want      error
	}{
		{name: "unique index", insertErr: fmt.Errorf("insert: %w", persistence.ErrDuplicate), want: ErrDuplicateBooking},
		{name: "capacity trigger", insertErr: fmt.Errorf("insert: %w", persistence.ErrCapacityExceeded), want: ErrLessonFull},
		{name: "foreign key", insertErr: persistence.ErrConstraintViolation, want: ErrLessonNotFound},
		{name: "unavailable", insertErr: persistence.ErrUnavailable, want: ErrStorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lessons := newLessonRepoStub(tuesdayLesson(5))
			store := newReservationStoreStub(lessons)
			store.insertErr = tt.insertErr
			svc := newReservationServiceForTest(lessons, store)

			_, err := svc.AdmitReservation(context.Background(), booking("a@example.com"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, tt.insertErr) {
				t.Fatalf("expected store error kept in chain, got %v", err)
			}
		})
	}
}

func TestReservationService_AdmitReservationUnavailable(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(5))
	store := newReservationStoreStub(lessons)
	store.unavailable = fmt.Errorf("begin: %w", persistence.ErrUnavailable)
	svc := newReservationServiceForTest(lessons, store)

	_, err := svc.AdmitReservation(context.Background(), booking("a@example.com"))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if got := ErrorKind(err); got != "storage_unavailable" {
		t.Fatalf("expected storage_unavailable kind, got %q", got)
	}
}

func TestReservationService_AdmitReservationConcurrent(t *testing.T) {
	const spots = 5
	const requests = 40

	lessons := newLessonRepoStub(tuesdayLesson(spots))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		full     int
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AdmitReservation(context.Background(), booking(fmt.Sprintf("user%02d@example.com", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, ErrLessonFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if admitted != spots {
		t.Fatalf("expected %d admissions, got %d", spots, admitted)
	}
	if full != requests-spots {
		t.Fatalf("expected %d full rejections, got %d", requests-spots, full)
	}
	if got := len(store.confirmed("lesson-1", "2024-06-11")); got != spots {
		t.Fatalf("expected %d stored rows, got %d", spots, got)
	}
}

func TestReservationService_AdmitReservationConcurrentSameEmail(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(10))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AdmitReservation(context.Background(), booking("same@example.com"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	admitted := 0
	for err := range errs {
		switch {
		case err == nil:
			admitted++
		case !errors.Is(err, ErrDuplicateBooking):
			t.Fatalf("expected ErrDuplicateBooking, got %v", err)
		}
	}
	if admitted != 1 {
		t.Fatalf("expected exactly one admission, got %d", admitted)
	}
}

func TestReservationService_CancelReservationNotFound(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(3))
	svc := newReservationServiceForTest(lessons, newReservationStoreStub(lessons))

	_, err := svc.CancelReservation(context.Background(), CancelReservationParams{
		LessonID:   "lesson-1",
		LessonDate: "2024-06-11",
		Email:      "nobody@example.com",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = svc.CancelReservation(context.Background(), CancelReservationParams{LessonID: "lesson-1", LessonDate: "2024-06-11"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for missing email, got %v", err)
	}
}

func TestReservationService_Availability(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(2))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	if _, err := svc.AdmitReservation(context.Background(), booking("a@example.com")); err != nil {
		t.Fatalf("AdmitReservation returned error: %v", err)
	}

	availability, err := svc.Availability(context.Background(), "lesson-1", "2024-06-11")
	if err != nil {
		t.Fatalf("Availability returned error: %v", err)
	}
	if availability.Booked != 1 || availability.Available != 1 || availability.IsFull {
		t.Fatalf("unexpected availability: %+v", availability)
	}

	if _, err := svc.Availability(context.Background(), "lesson-1", "2024-06-12"); err == nil {
		t.Fatalf("expected error for a date the lesson does not run")
	}
}

func TestReservationService_AdminOperationsRequireAdmin(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(2))
	svc := newReservationServiceForTest(lessons, newReservationStoreStub(lessons))
	ctx := context.Background()

	if _, err := svc.ListReservations(ctx, Principal{}, ReservationFilter{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ListReservations: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.GetReservation(ctx, Principal{}, "res-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("GetReservation: expected ErrUnauthorized, got %v", err)
	}
	if err := svc.DeleteReservation(ctx, Principal{}, "res-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("DeleteReservation: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Stats(ctx, Principal{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Stats: expected ErrUnauthorized, got %v", err)
	}
}

func TestReservationService_ListReservationsFilterValidation(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(2))
	svc := newReservationServiceForTest(lessons, newReservationStoreStub(lessons))

	_, err := svc.ListReservations(context.Background(), adminPrincipal(), ReservationFilter{LessonDate: "tomorrow", Status: "maybe"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["date"]; !ok {
		t.Fatalf("expected date error, got %v", vErr.FieldErrors)
	}
	if _, ok := vErr.FieldErrors["status"]; !ok {
		t.Fatalf("expected status error, got %v", vErr.FieldErrors)
	}
}

func TestReservationService_DeleteReservation(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(2))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)

	res, err := svc.AdmitReservation(context.Background(), booking("a@example.com"))
	if err != nil {
		t.Fatalf("AdmitReservation returned error: %v", err)
	}
	if err := svc.DeleteReservation(context.Background(), adminPrincipal(), res.ID); err != nil {
		t.Fatalf("DeleteReservation returned error: %v", err)
	}
	if err := svc.DeleteReservation(context.Background(), adminPrincipal(), res.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestReservationService_StatsCachedUntilWrite(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(5))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)
	ctx := context.Background()

	if _, err := svc.AdmitReservation(ctx, booking("a@example.com")); err != nil {
		t.Fatalf("AdmitReservation returned error: %v", err)
	}

	stats, err := svc.Stats(ctx, adminPrincipal())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Month != "2024-06" || stats.TotalThisMonth != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.PopularLessons) != 1 || stats.PopularLessons[0].Count != 1 {
		t.Fatalf("unexpected popular lessons: %+v", stats.PopularLessons)
	}

	calls := store.countCalls
	if _, err := svc.Stats(ctx, adminPrincipal()); err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if store.countCalls != calls {
		t.Fatalf("expected cached stats, store was queried again")
	}

	if _, err := svc.AdmitReservation(ctx, booking("b@example.com")); err != nil {
		t.Fatalf("AdmitReservation returned error: %v", err)
	}
	stats, err = svc.Stats(ctx, adminPrincipal())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.TotalThisMonth != 2 {
		t.Fatalf("expected cache invalidated by admission, got %d", stats.TotalThisMonth)
	}
}

func TestReservationService_StatsNotCachedAcrossConcurrentWrite(t *testing.T) {
	lessons := newLessonRepoStub(tuesdayLesson(5))
	store := newReservationStoreStub(lessons)
	svc := newReservationServiceForTest(lessons, store)
	ctx := context.Background()

	// The booking commits after the month total was read, so the first
	// result is stale and must not be served to later callers.
	store.afterCountBetween = func() {
		if _, err := svc.AdmitReservation(ctx, booking("a@example.com")); err != nil {
			t.Errorf("AdmitReservation returned error: %v", err)
		}
	}

	stale, err := svc.Stats(ctx, adminPrincipal())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stale.TotalThisMonth != 0 {
		t.Fatalf("expected the in-flight total to predate the booking, got %d", stale.TotalThisMonth)
	}

	fresh, err := svc.Stats(ctx, adminPrincipal())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if fresh.TotalThisMonth != 1 {
		t.Fatalf("expected stats to be recomputed after the write, got %d", fresh.TotalThisMonth)
	}
}
