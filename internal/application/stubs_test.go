package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/gym-reservations/internal/persistence"
)

var fixedNow = time.Date(2024, time.June, 5, 10, 0, 0, 0, time.UTC)

func clock() func() time.Time { return func() time.Time { return fixedNow } }

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func adminPrincipal() Principal { return Principal{UserID: "admin-1", Username: "admin", IsAdmin: true} }

// lessonRepoStub keeps lessons in a map.
type lessonRepoStub struct {
	mu        sync.Mutex
	lessons   map[string]Lesson
	deleteErr error
	listErr   error
	created   []Lesson
}

func newLessonRepoStub(lessons ...Lesson) *lessonRepoStub {
	stub := &lessonRepoStub{lessons: make(map[string]Lesson)}
	for _, lesson := range lessons {
		stub.lessons[lesson.ID] = lesson
	}
	return stub
}

func (s *lessonRepoStub) GetLesson(_ context.Context, id string) (Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lesson, ok := s.lessons[id]
	if !ok {
		return Lesson{}, persistence.ErrNotFound
	}
	return lesson, nil
}

func (s *lessonRepoStub) CreateLesson(_ context.Context, lesson Lesson) (Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[lesson.ID] = lesson
	s.created = append(s.created, lesson)
	return lesson, nil
}

func (s *lessonRepoStub) UpdateLesson(_ context.Context, lesson Lesson) (Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[lesson.ID]; !ok {
		return Lesson{}, persistence.ErrNotFound
	}
	s.lessons[lesson.ID] = lesson
	return lesson, nil
}

func (s *lessonRepoStub) ListLessons(context.Context) ([]Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Lesson, 0, len(s.lessons))
	for _, lesson := range s.lessons {
		out = append(out, lesson)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *lessonRepoStub) DeleteLesson(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.lessons[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.lessons, id)
	return nil
}

// reservationStoreStub serialises admissions with one mutex and stages
// inserts until the callback succeeds.
type reservationStoreStub struct {
	admission    sync.Mutex
	mu           sync.Mutex
	lessons      *lessonRepoStub
	reservations []Reservation
	insertErr    error
	unavailable  error
	countCalls   int
	// afterCountBetween runs once after CountConfirmedBetween has counted.
	afterCountBetween func()
}

func newReservationStoreStub(lessons *lessonRepoStub) *reservationStoreStub {
	return &reservationStoreStub{lessons: lessons}
}

func (s *reservationStoreStub) WithAdmission(ctx context.Context, lessonID, lessonDate string, fn func(tx AdmissionTx) error) error {
	if s.unavailable != nil {
		return s.unavailable
	}
	s.admission.Lock()
	defer s.admission.Unlock()

	tx := &admissionTxStub{ctx: ctx, store: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	s.reservations = append(s.reservations, tx.pending...)
	s.mu.Unlock()
	return nil
}

func (s *reservationStoreStub) confirmed(lessonID, lessonDate string) []Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Reservation
	for _, res := range s.reservations {
		if res.LessonID == lessonID && res.LessonDate == lessonDate && res.Status == StatusConfirmed {
			out = append(out, res)
		}
	}
	return out
}

func (s *reservationStoreStub) GetReservation(_ context.Context, id string) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.reservations {
		if res.ID == id {
			return res, nil
		}
	}
	return Reservation{}, persistence.ErrNotFound
}

func (s *reservationStoreStub) ListReservations(_ context.Context, filter ReservationFilter) ([]Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reservation, 0)
	for _, res := range s.reservations {
		if filter.LessonID != "" && res.LessonID != filter.LessonID {
			continue
		}
		if filter.LessonDate != "" && res.LessonDate != filter.LessonDate {
			continue
		}
		if filter.Status != "" && res.Status != filter.Status {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *reservationStoreStub) CountConfirmed(_ context.Context, lessonID, lessonDate string) (int, error) {
	s.mu.Lock()
	s.countCalls++
	s.mu.Unlock()
	if s.unavailable != nil {
		return 0, s.unavailable
	}
	return len(s.confirmed(lessonID, lessonDate)), nil
}

func (s *reservationStoreStub) CountAllForLesson(_ context.Context, lessonID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, res := range s.reservations {
		if res.LessonID == lessonID {
			n++
		}
	}
	return n, nil
}

func (s *reservationStoreStub) CountConfirmedBetween(_ context.Context, fromDate, toDate string) (int, error) {
	s.mu.Lock()
	s.countCalls++
	n := 0
	for _, res := range s.reservations {
		if res.Status == StatusConfirmed && res.LessonDate >= fromDate && res.LessonDate <= toDate {
			n++
		}
	}
	hook := s.afterCountBetween
	s.afterCountBetween = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return n, nil
}

func (s *reservationStoreStub) PopularLessons(_ context.Context, limit int) ([]LessonCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, res := range s.reservations {
		if res.Status == StatusConfirmed {
			counts[res.LessonID]++
		}
	}
	out := make([]LessonCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, LessonCount{LessonID: id, Title: "Lesson " + id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].LessonID < out[j].LessonID
		}
		return out[i].Count > out[j].Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *reservationStoreStub) RecentConfirmed(_ context.Context, limit int) ([]RecentReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecentReservation, 0)
	for i := len(s.reservations) - 1; i >= 0 && len(out) < limit; i-- {
		if s.reservations[i].Status == StatusConfirmed {
			out = append(out, RecentReservation{Reservation: s.reservations[i], LessonTitle: "Lesson " + s.reservations[i].LessonID})
		}
	}
	return out, nil
}

func (s *reservationStoreStub) CancelReservation(_ context.Context, lessonID, lessonDate, email string, cancelledAt time.Time) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, res := range s.reservations {
		if res.LessonID == lessonID && res.LessonDate == lessonDate && res.Status == StatusConfirmed && strings.EqualFold(res.Participant.Email, email) {
			res.Status = StatusCancelled
			res.UpdatedAt = cancelledAt
			s.reservations[i] = res
			return res, nil
		}
	}
	return Reservation{}, persistence.ErrNotFound
}

func (s *reservationStoreStub) DeleteReservation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, res := range s.reservations {
		if res.ID == id {
			s.reservations = append(s.reservations[:i], s.reservations[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

type admissionTxStub struct {
	ctx     context.Context
	store   *reservationStoreStub
	pending []Reservation
}

func (tx *admissionTxStub) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return tx.store.lessons.GetLesson(ctx, id)
}

func (tx *admissionTxStub) CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error) {
	return tx.store.CountConfirmed(ctx, lessonID, lessonDate)
}

func (tx *admissionTxStub) ExistsConfirmedForEmail(_ context.Context, lessonID, lessonDate, email string) (bool, error) {
	for _, res := range tx.store.confirmed(lessonID, lessonDate) {
		if strings.EqualFold(res.Participant.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (tx *admissionTxStub) InsertReservation(_ context.Context, res Reservation) (Reservation, error) {
	if tx.store.insertErr != nil {
		return Reservation{}, tx.store.insertErr
	}
	tx.pending = append(tx.pending, res)
	return res, nil
}
