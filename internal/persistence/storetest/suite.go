// Package storetest holds a behavioural suite every persistence.Store
// implementation must pass. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gym-reservations/internal/persistence"
)

// Factory returns an empty, migrated store. Cleanup is the factory's job.
type Factory func(t *testing.T) persistence.Store

var (
	errFull      = errors.New("storetest: lesson full")
	errDuplicate = errors.New("storetest: duplicate booking")
)

var base = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

// Run executes the whole suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("lessons", func(t *testing.T) { testLessons(t, newStore(t)) })
	t.Run("admission scenario", func(t *testing.T) { testAdmissionScenario(t, newStore(t)) })
	t.Run("concurrent admissions never overbook", func(t *testing.T) { testConcurrentAdmissions(t, newStore(t)) })
	t.Run("failed booking leaves no rows", func(t *testing.T) { testBookingRollback(t, newStore(t)) })
	t.Run("store rejects unchecked inserts", func(t *testing.T) { testStoreGuards(t, newStore(t)) })
	t.Run("cancel frees the seat", func(t *testing.T) { testCancel(t, newStore(t)) })
	t.Run("lesson delete is restricted", func(t *testing.T) { testLessonDeleteRestricted(t, newStore(t)) })
	t.Run("reservation listings and stats", func(t *testing.T) { testListingsAndStats(t, newStore(t)) })
	t.Run("offerings", func(t *testing.T) { testOfferings(t, newStore(t)) })
	t.Run("admins and sessions", func(t *testing.T) { testAdminsAndSessions(t, newStore(t)) })
}

// NewLesson returns a lesson with sensible defaults for store tests.
func NewLesson(id string, spots int) persistence.Lesson {
	return persistence.Lesson{
		ID:        id,
		Title:     "Lesson " + id,
		Time:      "09:00",
		Trainer:   "Sam",
		Spots:     spots,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

// NewReservation returns a confirmed reservation for the given occurrence.
func NewReservation(id, lessonID, date, email string) persistence.Reservation {
	return persistence.Reservation{
		ID:               id,
		LessonID:         lessonID,
		LessonDate:       date,
		ParticipantName:  "Participant " + id,
		ParticipantEmail: email,
		Status:           persistence.StatusConfirmed,
		CreatedAt:        base,
		UpdatedAt:        base,
	}
}

// admit runs the capacity and duplicate checks inside the booking lock the
// same way the reservation service does.
func admit(ctx context.Context, store persistence.Store, res persistence.Reservation) error {
	return store.WithBookingLock(ctx, res.LessonID, res.LessonDate, func(tx persistence.BookingTx) error {
		lesson, err := tx.GetLesson(ctx, res.LessonID)
		if err != nil {
			return err
		}
		exists, err := tx.ExistsConfirmedForEmail(ctx, res.LessonID, res.LessonDate, res.ParticipantEmail)
		if err != nil {
			return err
		}
		if exists {
			return errDuplicate
		}
		count, err := tx.CountConfirmed(ctx, res.LessonID, res.LessonDate)
		if err != nil {
			return err
		}
		if count >= lesson.Spots {
			return errFull
		}
		return tx.InsertReservation(ctx, res)
	})
}

func testLessons(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	weekday := 1
	date := "2024-06-12"
	desc := "Slow flow"
	yoga := NewLesson("yoga-1", 12)
	yoga.DayOfWeek = &weekday
	yoga.Description = &desc
	spin := NewLesson("spin-1", 20)
	spin.SpecificDate = &date
	spin.Time = "07:30"

	require.NoError(t, store.CreateLesson(ctx, yoga))
	require.NoError(t, store.CreateLesson(ctx, spin))
	assert.ErrorIs(t, store.CreateLesson(ctx, yoga), persistence.ErrDuplicate)

	got, err := store.GetLesson(ctx, "yoga-1")
	require.NoError(t, err)
	assert.Equal(t, "Lesson yoga-1", got.Title)
	assert.Equal(t, 12, got.Spots)
	require.NotNil(t, got.DayOfWeek)
	assert.Equal(t, 1, *got.DayOfWeek)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Slow flow", *got.Description)
	assert.Nil(t, got.SpecificDate)
	assert.True(t, got.CreatedAt.Equal(base))

	_, err = store.GetLesson(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	yoga.Title = "Vinyasa"
	yoga.Spots = 15
	yoga.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, store.UpdateLesson(ctx, yoga))
	got, err = store.GetLesson(ctx, "yoga-1")
	require.NoError(t, err)
	assert.Equal(t, "Vinyasa", got.Title)
	assert.Equal(t, 15, got.Spots)
	assert.True(t, got.UpdatedAt.Equal(base.Add(time.Hour)))

	assert.ErrorIs(t, store.UpdateLesson(ctx, NewLesson("missing", 3)), persistence.ErrNotFound)

	lessons, err := store.ListLessons(ctx)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "yoga-1", lessons[0].ID, "lessons without a date sort first")
	assert.Equal(t, "spin-1", lessons[1].ID)

	count, err := store.CountLessons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.DeleteLesson(ctx, "spin-1"))
	assert.ErrorIs(t, store.DeleteLesson(ctx, "spin-1"), persistence.ErrNotFound)
}

func testAdmissionScenario(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateLesson(ctx, NewLesson("yoga-1", 2)))

	const date = "2024-06-10"
	require.NoError(t, admit(ctx, store, NewReservation("r-1", "yoga-1", date, "alice@example.com")))
	require.NoError(t, admit(ctx, store, NewReservation("r-2", "yoga-1", date, "bob@example.com")))
	assert.ErrorIs(t, admit(ctx, store, NewReservation("r-3", "yoga-1", date, "carol@example.com")), errFull)
	assert.ErrorIs(t, admit(ctx, store, NewReservation("r-6", "yoga-1", date, "alice@example.com")), errDuplicate)

	// A different date of the same lesson has its own seats.
	require.NoError(t, admit(ctx, store, NewReservation("r-4", "yoga-1", "2024-06-17", "carol@example.com")))
	assert.ErrorIs(t, admit(ctx, store, NewReservation("r-5", "yoga-1", "2024-06-17", "carol@example.com")), errDuplicate)

	count, err := store.CountConfirmed(ctx, "yoga-1", date)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := store.GetReservation(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "yoga-1", got.LessonID)
	assert.Equal(t, date, got.LessonDate)
	assert.Equal(t, "alice@example.com", got.ParticipantEmail)
	assert.Equal(t, "Participant r-1", got.ParticipantName)
	assert.Equal(t, persistence.StatusConfirmed, got.Status)

	for _, rejected := range []string{"r-3", "r-6"} {
		_, err = store.GetReservation(ctx, rejected)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	}
}

func testConcurrentAdmissions(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	const (
		seats    = 3
		attempts = 12
		date     = "2024-06-10"
	)
	require.NoError(t, store.CreateLesson(ctx, NewLesson("hiit-1", seats)))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		full      int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res := NewReservation(fmt.Sprintf("c-%02d", i), "hiit-1", date, fmt.Sprintf("p%02d@example.com", i))
			err := admit(ctx, store, res)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errFull), errors.Is(err, persistence.ErrCapacityExceeded):
				full++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, seats, successes)
	assert.Equal(t, attempts-seats, full)

	count, err := store.CountConfirmed(ctx, "hiit-1", date)
	require.NoError(t, err)
	assert.Equal(t, seats, count)
}

func testBookingRollback(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateLesson(ctx, NewLesson("pilates-1", 5)))

	boom := errors.New("boom")
	err := store.WithBookingLock(ctx, "pilates-1", "2024-06-10", func(tx persistence.BookingTx) error {
		if err := tx.InsertReservation(ctx, NewReservation("rb-1", "pilates-1", "2024-06-10", "dana@example.com")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := store.CountAllForLesson(ctx, "pilates-1")
	require.NoError(t, err)
	assert.Zero(t, all)
}

func testStoreGuards(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateLesson(ctx, NewLesson("box-1", 1)))

	insert := func(res persistence.Reservation) error {
		return store.WithBookingLock(ctx, res.LessonID, res.LessonDate, func(tx persistence.BookingTx) error {
			return tx.InsertReservation(ctx, res)
		})
	}

	require.NoError(t, insert(NewReservation("g-1", "box-1", "2024-06-10", "erin@example.com")))
	assert.ErrorIs(t, insert(NewReservation("g-2", "box-1", "2024-06-10", "erin@example.com")), persistence.ErrDuplicate)
	assert.ErrorIs(t, insert(NewReservation("g-3", "box-1", "2024-06-10", "finn@example.com")), persistence.ErrCapacityExceeded)

	count, err := store.CountConfirmed(ctx, "box-1", "2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testCancel(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateLesson(ctx, NewLesson("row-1", 1)))
	const date = "2024-06-11"

	require.NoError(t, admit(ctx, store, NewReservation("x-1", "row-1", date, "gina@example.com")))
	assert.ErrorIs(t, admit(ctx, store, NewReservation("x-2", "row-1", date, "hank@example.com")), errFull)

	cancelledAt := base.Add(2 * time.Hour)
	cancelled, err := store.CancelReservation(ctx, "row-1", date, "gina@example.com", cancelledAt)
	require.NoError(t, err)
	assert.Equal(t, "x-1", cancelled.ID)
	assert.Equal(t, persistence.StatusCancelled, cancelled.Status)

	_, err = store.CancelReservation(ctx, "row-1", date, "gina@example.com", cancelledAt)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, admit(ctx, store, NewReservation("x-3", "row-1", date, "hank@example.com")))
	require.NoError(t, store.DeleteReservation(ctx, "x-3"))
	require.NoError(t, admit(ctx, store, NewReservation("x-4", "row-1", date, "gina@example.com")), "a cancelled booking does not block rebooking")

	all, err := store.CountAllForLesson(ctx, "row-1")
	require.NoError(t, err)
	assert.Equal(t, 2, all)

	assert.ErrorIs(t, store.DeleteReservation(ctx, "x-3"), persistence.ErrNotFound)
}

func testLessonDeleteRestricted(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateLesson(ctx, NewLesson("core-1", 4)))
	require.NoError(t, admit(ctx, store, NewReservation("d-1", "core-1", "2024-06-13", "ivy@example.com")))
	_, err := store.CancelReservation(ctx, "core-1", "2024-06-13", "ivy@example.com", base)
	require.NoError(t, err)

	all, err := store.CountAllForLesson(ctx, "core-1")
	require.NoError(t, err)
	assert.Equal(t, 1, all, "cancelled reservations still reference the lesson")

	assert.ErrorIs(t, store.DeleteLesson(ctx, "core-1"), persistence.ErrConstraintViolation)
	_, err = store.GetLesson(ctx, "core-1")
	require.NoError(t, err)
	_, err = store.GetReservation(ctx, "d-1")
	require.NoError(t, err)
}

func testListingsAndStats(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	yoga := NewLesson("yoga-1", 10)
	yoga.Title = "Yoga"
	spin := NewLesson("spin-1", 10)
	spin.Title = "Spin"
	require.NoError(t, store.CreateLesson(ctx, yoga))
	require.NoError(t, store.CreateLesson(ctx, spin))

	book := func(id, lessonID, date, email string, offset time.Duration) {
		res := NewReservation(id, lessonID, date, email)
		res.CreatedAt = base.Add(offset)
		res.UpdatedAt = res.CreatedAt
		require.NoError(t, admit(ctx, store, res))
	}
	book("s-1", "yoga-1", "2024-06-03", "a@example.com", time.Minute)
	book("s-2", "yoga-1", "2024-06-03", "b@example.com", 2*time.Minute)
	book("s-3", "yoga-1", "2024-06-10", "c@example.com", 3*time.Minute)
	book("s-4", "spin-1", "2024-06-04", "d@example.com", 4*time.Minute)
	book("s-5", "spin-1", "2024-07-02", "e@example.com", 5*time.Minute)
	_, err := store.CancelReservation(ctx, "yoga-1", "2024-06-10", "c@example.com", base.Add(time.Hour))
	require.NoError(t, err)

	list, err := store.ListReservations(ctx, persistence.ReservationFilter{LessonID: "yoga-1"})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"s-1", "s-2", "s-3"}, reservationIDs(list))

	list, err = store.ListReservations(ctx, persistence.ReservationFilter{LessonID: "yoga-1", LessonDate: "2024-06-03"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s-1", "s-2"}, reservationIDs(list))

	list, err = store.ListReservations(ctx, persistence.ReservationFilter{Status: persistence.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, []string{"s-3"}, reservationIDs(list))

	list, err = store.ListReservations(ctx, persistence.ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 5)

	june, err := store.CountConfirmedBetween(ctx, "2024-06-01", "2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, 3, june)

	popular, err := store.PopularLessons(ctx, 5)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "Spin", popular[0].Title)
	assert.Equal(t, 2, popular[0].Count)
	assert.Equal(t, "Yoga", popular[1].Title)
	assert.Equal(t, 2, popular[1].Count)

	top, err := store.PopularLessons(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	recent, err := store.RecentConfirmed(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "s-5", recent[0].ID)
	assert.Equal(t, "Spin", recent[0].LessonTitle)
	assert.Equal(t, "s-4", recent[1].ID)
	assert.Equal(t, "s-2", recent[2].ID)
}

func testOfferings(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	duration := 60

	next, err := store.NextDisplayOrder(ctx, "training")
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	offerings := []persistence.Offering{
		{ID: "o-1", Title: "Personal training", Category: "training", PriceCents: 5500, DurationMinutes: &duration, Features: []string{"intake", "plan"}, IsActive: true, DisplayOrder: 1},
		{ID: "o-2", Title: "Duo training", Category: "training", PriceCents: 8000, IsActive: true, DisplayOrder: 2},
		{ID: "o-3", Title: "Sports massage", Category: "recovery", PriceCents: 4500, IsActive: false, DisplayOrder: 1},
	}
	for _, o := range offerings {
		o.CreatedAt = base
		o.UpdatedAt = base
		require.NoError(t, store.CreateOffering(ctx, o))
	}

	next, err = store.NextDisplayOrder(ctx, "training")
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	got, err := store.GetOffering(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"intake", "plan"}, got.Features)
	require.NotNil(t, got.DurationMinutes)
	assert.Equal(t, 60, *got.DurationMinutes)
	assert.Equal(t, int64(5500), got.PriceCents)

	active, err := store.ListOfferings(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	all, err := store.ListOfferings(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	count, err := store.CountActiveOfferings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.ReorderOfferings(ctx, "training", []string{"o-2", "o-1"}, base.Add(time.Hour)))
	first, err := store.GetOffering(ctx, "o-2")
	require.NoError(t, err)
	assert.Equal(t, 1, first.DisplayOrder)
	second, err := store.GetOffering(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.DisplayOrder)

	err = store.ReorderOfferings(ctx, "training", []string{"o-1", "o-3"}, base)
	assert.Error(t, err)
	unchanged, err := store.GetOffering(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 2, unchanged.DisplayOrder, "a rejected reorder changes nothing")

	got.Title = "Personal training 1:1"
	got.IsActive = false
	got.Features = nil
	got.UpdatedAt = base.Add(2 * time.Hour)
	require.NoError(t, store.UpdateOffering(ctx, got))
	updated, err := store.GetOffering(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "Personal training 1:1", updated.Title)
	assert.False(t, updated.IsActive)
	assert.Empty(t, updated.Features)

	require.NoError(t, store.DeleteOffering(ctx, "o-3"))
	assert.ErrorIs(t, store.DeleteOffering(ctx, "o-3"), persistence.ErrNotFound)
	_, err = store.GetOffering(ctx, "o-3")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testAdminsAndSessions(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	admin := persistence.AdminUser{
		ID:           "admin-1",
		Username:     "coach",
		Email:        "coach@example.com",
		PasswordHash: "hash",
		Role:         "admin",
		IsActive:     true,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
	require.NoError(t, store.CreateAdmin(ctx, admin))
	dup := admin
	dup.ID = "admin-2"
	assert.ErrorIs(t, store.CreateAdmin(ctx, dup), persistence.ErrDuplicate)

	got, err := store.GetAdminByUsername(ctx, "coach")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", got.ID)
	assert.True(t, got.IsActive)
	assert.Zero(t, got.FailedLoginAttempts)
	assert.Nil(t, got.LastLogin)

	_, err = store.GetAdminByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	failedAt := base.Add(time.Minute)
	require.NoError(t, store.RecordLoginFailure(ctx, "admin-1", failedAt))
	require.NoError(t, store.RecordLoginFailure(ctx, "admin-1", failedAt.Add(time.Minute)))
	got, err = store.GetAdmin(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.FailedLoginAttempts)
	require.NotNil(t, got.LastFailedLogin)
	assert.True(t, got.LastFailedLogin.Equal(failedAt.Add(time.Minute)))

	loginAt := base.Add(time.Hour)
	require.NoError(t, store.RecordLoginSuccess(ctx, "admin-1", loginAt))
	got, err = store.GetAdmin(ctx, "admin-1")
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginAttempts)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(loginAt))

	assert.ErrorIs(t, store.RecordLoginFailure(ctx, "missing", failedAt), persistence.ErrNotFound)

	session := persistence.Session{
		ID:        "sess-1",
		AdminID:   "admin-1",
		Token:     "token-1",
		ExpiresAt: base.Add(24 * time.Hour),
		CreatedAt: base,
		UpdatedAt: base,
	}
	created, err := store.CreateSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "token-1", created.Token)

	stale := session
	stale.ID = "sess-2"
	stale.Token = "token-2"
	stale.ExpiresAt = base.Add(-time.Minute)
	_, err = store.CreateSession(ctx, stale)
	require.NoError(t, err)

	fetched, err := store.GetSession(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", fetched.AdminID)
	assert.True(t, fetched.ExpiresAt.Equal(base.Add(24*time.Hour)))
	assert.Nil(t, fetched.RevokedAt)

	fetched.ExpiresAt = base.Add(48 * time.Hour)
	fetched.UpdatedAt = base.Add(time.Hour)
	updated, err := store.UpdateSession(ctx, fetched)
	require.NoError(t, err)
	assert.True(t, updated.ExpiresAt.Equal(base.Add(48*time.Hour)))

	revokedAt := base.Add(2 * time.Hour)
	revoked, err := store.RevokeSession(ctx, "token-1", revokedAt)
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	assert.True(t, revoked.RevokedAt.Equal(revokedAt))

	_, err = store.RevokeSession(ctx, "unknown", revokedAt)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	removed, err := store.DeleteExpiredSessions(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	_, err = store.GetSession(ctx, "token-2")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = store.GetSession(ctx, "token-1")
	assert.NoError(t, err)
}

func reservationIDs(list []persistence.Reservation) []string {
	ids := make([]string, 0, len(list))
	for _, res := range list {
		ids = append(ids, res.ID)
	}
	return ids
}
