// Package memory provides a process-local persistence.Store used for tests
// and single-instance deployments that do not need durable storage.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/gym-reservations/internal/persistence"
)

// Store keeps every record in maps guarded by a single RWMutex. Admissions
// additionally hold a mutex per (lesson, date) so that the check-then-insert
// sequence of one occurrence never interleaves with another admission for it.
type Store struct {
	mu           sync.RWMutex
	lessons      map[string]persistence.Lesson
	reservations map[string]persistence.Reservation
	offerings    map[string]persistence.Offering
	admins       map[string]persistence.AdminUser
	sessions     map[string]persistence.Session

	bookingLocks keyedMutex
}

var _ persistence.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		lessons:      make(map[string]persistence.Lesson),
		reservations: make(map[string]persistence.Reservation),
		offerings:    make(map[string]persistence.Offering),
		admins:       make(map[string]persistence.AdminUser),
		sessions:     make(map[string]persistence.Session),
	}
}

// Ping always succeeds for the in-memory implementation.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Store) Close() error {
	return nil
}

// --- LessonRepository implementation ---

// CreateLesson stores a new lesson.
func (s *Store) CreateLesson(ctx context.Context, lesson persistence.Lesson) error {
	if lesson.ID == "" || lesson.Spots <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lessons[lesson.ID]; ok {
		return fmt.Errorf("memory: lesson %s: %w", lesson.ID, persistence.ErrDuplicate)
	}
	s.lessons[lesson.ID] = cloneLesson(lesson)
	return nil
}

// UpdateLesson replaces an existing lesson.
func (s *Store) UpdateLesson(ctx context.Context, lesson persistence.Lesson) error {
	if lesson.Spots <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.lessons[lesson.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	lesson.CreatedAt = current.CreatedAt
	s.lessons[lesson.ID] = cloneLesson(lesson)
	return nil
}

// GetLesson retrieves a lesson by ID.
func (s *Store) GetLesson(ctx context.Context, id string) (persistence.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lesson, ok := s.lessons[id]
	if !ok {
		return persistence.Lesson{}, persistence.ErrNotFound
	}
	return cloneLesson(lesson), nil
}

// ListLessons returns lessons ordered by specific date, time, then title.
func (s *Store) ListLessons(ctx context.Context) ([]persistence.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lessons := make([]persistence.Lesson, 0, len(s.lessons))
	for _, lesson := range s.lessons {
		lessons = append(lessons, cloneLesson(lesson))
	}

	sort.Slice(lessons, func(i, j int) bool {
		di, dj := derefString(lessons[i].SpecificDate), derefString(lessons[j].SpecificDate)
		if di != dj {
			return di < dj
		}
		if lessons[i].Time != lessons[j].Time {
			return lessons[i].Time < lessons[j].Time
		}
		return lessons[i].Title < lessons[j].Title
	})

	return lessons, nil
}

// DeleteLesson removes a lesson. Lessons still referenced by reservations are
// rejected with ErrConstraintViolation, mirroring ON DELETE RESTRICT.
func (s *Store) DeleteLesson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lessons[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, res := range s.reservations {
		if res.LessonID == id {
			return persistence.ErrConstraintViolation
		}
	}
	delete(s.lessons, id)
	return nil
}

// CountLessons reports the number of stored lessons.
func (s *Store) CountLessons(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lessons), nil
}

// --- ReservationRepository implementation ---

// WithBookingLock holds the occurrence mutex for the duration of fn. Inserts
// are buffered and applied only when fn succeeds.
func (s *Store) WithBookingLock(ctx context.Context, lessonID, lessonDate string, fn func(tx persistence.BookingTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.bookingLocks.Lock(lessonID + "|" + lessonDate)
	defer unlock()

	tx := &bookingTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range tx.pending {
		lesson, ok := s.lessons[res.LessonID]
		if !ok {
			return persistence.ErrConstraintViolation
		}
		if res.Status != persistence.StatusConfirmed {
			continue
		}
		if s.confirmedExistsLocked(res.LessonID, res.LessonDate, res.ParticipantEmail) {
			return persistence.ErrDuplicate
		}
		if s.countConfirmedLocked(res.LessonID, res.LessonDate) >= lesson.Spots {
			return persistence.ErrCapacityExceeded
		}
	}
	for _, res := range tx.pending {
		s.reservations[res.ID] = cloneReservation(res)
	}
	return nil
}

// GetReservation retrieves a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(res), nil
}

// ListReservations returns reservations matching the filter ordered by date and creation time.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Reservation, 0)
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
		out = append(out, cloneReservation(res))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LessonDate != out[j].LessonDate {
			return out[i].LessonDate < out[j].LessonDate
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountConfirmed counts confirmed reservations for one lesson occurrence.
func (s *Store) CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countConfirmedLocked(lessonID, lessonDate), nil
}

// CountConfirmedBetween counts confirmed reservations whose date lies in [fromDate, toDate].
func (s *Store) CountConfirmedBetween(ctx context.Context, fromDate, toDate string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, res := range s.reservations {
		if res.Status == persistence.StatusConfirmed && res.LessonDate >= fromDate && res.LessonDate <= toDate {
			count++
		}
	}
	return count, nil
}

// CountAllForLesson counts reservations of any status referencing the lesson.
func (s *Store) CountAllForLesson(ctx context.Context, lessonID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, res := range s.reservations {
		if res.LessonID == lessonID {
			count++
		}
	}
	return count, nil
}

// PopularLessons returns lessons ranked by confirmed reservation count.
func (s *Store) PopularLessons(ctx context.Context, limit int) ([]persistence.LessonCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, res := range s.reservations {
		if res.Status == persistence.StatusConfirmed {
			counts[res.LessonID]++
		}
	}

	out := make([]persistence.LessonCount, 0, len(counts))
	for lessonID, count := range counts {
		lesson, ok := s.lessons[lessonID]
		if !ok {
			continue
		}
		out = append(out, persistence.LessonCount{LessonID: lessonID, Title: lesson.Title, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Title < out[j].Title
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecentConfirmed returns the newest confirmed reservations with their lesson titles.
func (s *Store) RecentConfirmed(ctx context.Context, limit int) ([]persistence.RecentReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.RecentReservation, 0)
	for _, res := range s.reservations {
		if res.Status != persistence.StatusConfirmed {
			continue
		}
		out = append(out, persistence.RecentReservation{
			Reservation: cloneReservation(res),
			LessonTitle: s.lessons[res.LessonID].Title,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CancelReservation marks the participant's confirmed reservation as cancelled.
func (s *Store) CancelReservation(ctx context.Context, lessonID, lessonDate, email string, cancelledAt time.Time) (persistence.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, res := range s.reservations {
		if res.LessonID == lessonID && res.LessonDate == lessonDate &&
			strings.EqualFold(res.ParticipantEmail, email) && res.Status == persistence.StatusConfirmed {
			res.Status = persistence.StatusCancelled
			res.UpdatedAt = cancelledAt
			s.reservations[id] = res
			return cloneReservation(res), nil
		}
	}
	return persistence.Reservation{}, persistence.ErrNotFound
}

// DeleteReservation removes a reservation by ID.
func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.reservations, id)
	return nil
}

func (s *Store) countConfirmedLocked(lessonID, lessonDate string) int {
	count := 0
	for _, res := range s.reservations {
		if res.LessonID == lessonID && res.LessonDate == lessonDate && res.Status == persistence.StatusConfirmed {
			count++
		}
	}
	return count
}

func (s *Store) confirmedExistsLocked(lessonID, lessonDate, email string) bool {
	for _, res := range s.reservations {
		if res.LessonID == lessonID && res.LessonDate == lessonDate &&
			res.Status == persistence.StatusConfirmed && strings.EqualFold(res.ParticipantEmail, email) {
			return true
		}
	}
	return false
}

type bookingTx struct {
	store   *Store
	pending []persistence.Reservation
}

func (tx *bookingTx) GetLesson(ctx context.Context, id string) (persistence.Lesson, error) {
	return tx.store.GetLesson(ctx, id)
}

func (tx *bookingTx) CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error) {
	count, err := tx.store.CountConfirmed(ctx, lessonID, lessonDate)
	if err != nil {
		return 0, err
	}
	for _, res := range tx.pending {
		if res.LessonID == lessonID && res.LessonDate == lessonDate && res.Status == persistence.StatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (tx *bookingTx) ExistsConfirmedForEmail(ctx context.Context, lessonID, lessonDate, email string) (bool, error) {
	tx.store.mu.RLock()
	exists := tx.store.confirmedExistsLocked(lessonID, lessonDate, email)
	tx.store.mu.RUnlock()
	if exists {
		return true, nil
	}
	for _, res := range tx.pending {
		if res.LessonID == lessonID && res.LessonDate == lessonDate && strings.EqualFold(res.ParticipantEmail, email) {
			return true, nil
		}
	}
	return false, nil
}

func (tx *bookingTx) InsertReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" {
		return persistence.ErrConstraintViolation
	}
	tx.store.mu.RLock()
	_, taken := tx.store.reservations[reservation.ID]
	tx.store.mu.RUnlock()
	if taken {
		return persistence.ErrDuplicate
	}
	tx.pending = append(tx.pending, cloneReservation(reservation))
	return nil
}

// --- OfferingRepository implementation ---

// CreateOffering stores a new offering.
func (s *Store) CreateOffering(ctx context.Context, offering persistence.Offering) error {
	if offering.ID == "" || offering.PriceCents < 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offerings[offering.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.offerings[offering.ID] = cloneOffering(offering)
	return nil
}

// UpdateOffering replaces an existing offering.
func (s *Store) UpdateOffering(ctx context.Context, offering persistence.Offering) error {
	if offering.PriceCents < 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.offerings[offering.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	offering.CreatedAt = current.CreatedAt
	s.offerings[offering.ID] = cloneOffering(offering)
	return nil
}

// GetOffering retrieves an offering by ID.
func (s *Store) GetOffering(ctx context.Context, id string) (persistence.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offering, ok := s.offerings[id]
	if !ok {
		return persistence.Offering{}, persistence.ErrNotFound
	}
	return cloneOffering(offering), nil
}

// ListOfferings returns offerings ordered by category, display order, then title.
func (s *Store) ListOfferings(ctx context.Context, includeInactive bool) ([]persistence.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Offering, 0, len(s.offerings))
	for _, offering := range s.offerings {
		if !includeInactive && !offering.IsActive {
			continue
		}
		out = append(out, cloneOffering(offering))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// DeleteOffering removes an offering by ID.
func (s *Store) DeleteOffering(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offerings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.offerings, id)
	return nil
}

// NextDisplayOrder returns one past the highest display order used in the category.
func (s *Store) NextDisplayOrder(ctx context.Context, category string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	highest := 0
	for _, offering := range s.offerings {
		if offering.Category == category && offering.DisplayOrder > highest {
			highest = offering.DisplayOrder
		}
	}
	return highest + 1, nil
}

// ReorderOfferings assigns display orders 1..n following ids. Either every
// offering is updated or none is.
func (s *Store) ReorderOfferings(ctx context.Context, category string, ids []string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		offering, ok := s.offerings[id]
		if !ok {
			return persistence.ErrNotFound
		}
		if offering.Category != category {
			return persistence.ErrConstraintViolation
		}
	}
	for i, id := range ids {
		offering := s.offerings[id]
		offering.DisplayOrder = i + 1
		offering.UpdatedAt = updatedAt
		s.offerings[id] = offering
	}
	return nil
}

// CountActiveOfferings reports the number of active offerings.
func (s *Store) CountActiveOfferings(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, offering := range s.offerings {
		if offering.IsActive {
			count++
		}
	}
	return count, nil
}

// --- AdminRepository implementation ---

// CreateAdmin stores a new admin account. Usernames are unique case-insensitively.
func (s *Store) CreateAdmin(ctx context.Context, admin persistence.AdminUser) error {
	if admin.ID == "" || strings.TrimSpace(admin.Username) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[admin.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.admins {
		if strings.EqualFold(existing.Username, admin.Username) {
			return persistence.ErrDuplicate
		}
	}
	s.admins[admin.ID] = cloneAdmin(admin)
	return nil
}

// GetAdmin retrieves an admin by ID.
func (s *Store) GetAdmin(ctx context.Context, id string) (persistence.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, ok := s.admins[id]
	if !ok {
		return persistence.AdminUser{}, persistence.ErrNotFound
	}
	return cloneAdmin(admin), nil
}

// GetAdminByUsername retrieves an admin by username.
func (s *Store) GetAdminByUsername(ctx context.Context, username string) (persistence.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, admin := range s.admins {
		if strings.EqualFold(admin.Username, username) {
			return cloneAdmin(admin), nil
		}
	}
	return persistence.AdminUser{}, persistence.ErrNotFound
}

// RecordLoginFailure increments the failure counter and stamps the failure time.
func (s *Store) RecordLoginFailure(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin, ok := s.admins[id]
	if !ok {
		return persistence.ErrNotFound
	}
	admin.FailedLoginAttempts++
	admin.LastFailedLogin = &at
	admin.UpdatedAt = at
	s.admins[id] = admin
	return nil
}

// RecordLoginSuccess resets the failure counter and stamps the login time.
func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin, ok := s.admins[id]
	if !ok {
		return persistence.ErrNotFound
	}
	admin.FailedLoginAttempts = 0
	admin.LastLogin = &at
	admin.UpdatedAt = at
	s.admins[id] = admin
	return nil
}

// --- SessionRepository implementation ---

// CreateSession stores a new session keyed by token.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.AdminID == "" || strings.TrimSpace(session.Token) == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[session.AdminID]; !ok {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	if _, ok := s.sessions[session.Token]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	s.sessions[session.Token] = cloneSession(session)
	return cloneSession(session), nil
}

// GetSession retrieves a session by token.
func (s *Store) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// UpdateSession replaces the stored session identified by its token.
func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.Token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.CreatedAt = current.CreatedAt
	s.sessions[session.Token] = cloneSession(session)
	return cloneSession(session), nil
}

// RevokeSession stamps the session as revoked.
func (s *Store) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	s.sessions[token] = session
	return cloneSession(session), nil
}

// DeleteExpiredSessions removes sessions that expired at or before reference.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody waits on.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu      sync.Mutex
	waiters int
}

// Lock blocks until the key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.waiters++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.waiters--
		if entry.waiters == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func cloneLesson(l persistence.Lesson) persistence.Lesson {
	l.DayOfWeek = cloneInt(l.DayOfWeek)
	l.SpecificDate = cloneString(l.SpecificDate)
	l.Description = cloneString(l.Description)
	return l
}

func cloneReservation(r persistence.Reservation) persistence.Reservation {
	r.ParticipantPhone = cloneString(r.ParticipantPhone)
	r.Notes = cloneString(r.Notes)
	return r
}

func cloneOffering(o persistence.Offering) persistence.Offering {
	o.DurationMinutes = cloneInt(o.DurationMinutes)
	o.ImageURL = cloneString(o.ImageURL)
	if o.Features != nil {
		o.Features = append([]string(nil), o.Features...)
	}
	return o
}

func cloneAdmin(a persistence.AdminUser) persistence.AdminUser {
	a.LastFailedLogin = cloneTime(a.LastFailedLogin)
	a.LastLogin = cloneTime(a.LastLogin)
	return a
}

func cloneSession(s persistence.Session) persistence.Session {
	s.RevokedAt = cloneTime(s.RevokedAt)
	return s
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
