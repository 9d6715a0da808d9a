package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/gym-reservations/internal/application"
	"github.com/example/gym-reservations/internal/persistence"
)

// DateLayout is the calendar date format used for lesson dates.
const DateLayout = "2006-01-02"

var (
	lessonCounter      uint64
	reservationCounter uint64
	offeringCounter    uint64
	adminCounter       uint64
	sessionCounter     uint64
)

// referenceTime is a Wednesday, so weekly Tuesday lessons next run on 2024-06-11.
var referenceTime = time.Date(2024, time.June, 5, 10, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// NextTuesday is the first Tuesday after ReferenceTime.
const NextTuesday = "2024-06-11"

// ----------------------------- Lesson fixtures -----------------------------

// LessonFixture represents a deterministic lesson record.
type LessonFixture struct {
	ID           string
	Title        string
	Time         string
	Trainer      string
	Spots        int
	DayOfWeek    *int
	SpecificDate *string
	Description  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LessonOption configures the generated lesson fixture.
type LessonOption func(*LessonFixture)

// NewLessonFixture returns a weekly Tuesday lesson with ten spots unless
// overridden.
func NewLessonFixture(opts ...LessonOption) LessonFixture {
	idx := atomic.AddUint64(&lessonCounter, 1)
	id := fmt.Sprintf("lesson-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	tuesday := 2
	fixture := LessonFixture{
		ID:        id,
		Title:     fmt.Sprintf("Lesson %03d", idx),
		Time:      "09:00",
		Trainer:   "Aiko",
		Spots:     10,
		DayOfWeek: &tuesday,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithLessonID overrides the generated lesson ID.
func WithLessonID(id string) LessonOption {
	return func(f *LessonFixture) {
		f.ID = id
	}
}

// WithLessonTitle overrides the generated title.
func WithLessonTitle(title string) LessonOption {
	return func(f *LessonFixture) {
		f.Title = title
	}
}

// WithSpots overrides the lesson capacity.
func WithSpots(spots int) LessonOption {
	return func(f *LessonFixture) {
		f.Spots = spots
	}
}

// WithDayOfWeek schedules the lesson weekly on an ISO weekday (1 = Monday).
func WithDayOfWeek(day int) LessonOption {
	return func(f *LessonFixture) {
		f.DayOfWeek = &day
		f.SpecificDate = nil
	}
}

// OnDate schedules the lesson once, on date.
func OnDate(date string) LessonOption {
	return func(f *LessonFixture) {
		f.SpecificDate = &date
		f.DayOfWeek = nil
	}
}

// WithDescription sets the lesson description.
func WithDescription(description string) LessonOption {
	return func(f *LessonFixture) {
		f.Description = &description
	}
}

// Application returns the fixture as an application.Lesson value.
func (f LessonFixture) Application() application.Lesson {
	return application.Lesson{
		ID:           f.ID,
		Title:        f.Title,
		Time:         f.Time,
		Trainer:      f.Trainer,
		Spots:        f.Spots,
		DayOfWeek:    copyIntPtr(f.DayOfWeek),
		SpecificDate: copyStringPtr(f.SpecificDate),
		Description:  copyStringPtr(f.Description),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Lesson value.
func (f LessonFixture) Persistence() persistence.Lesson {
	return persistence.Lesson{
		ID:           f.ID,
		Title:        f.Title,
		Time:         f.Time,
		Trainer:      f.Trainer,
		Spots:        f.Spots,
		DayOfWeek:    copyIntPtr(f.DayOfWeek),
		SpecificDate: copyStringPtr(f.SpecificDate),
		Description:  copyStringPtr(f.Description),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as an application.LessonInput.
func (f LessonFixture) Input() application.LessonInput {
	return application.LessonInput{
		Title:        f.Title,
		Time:         f.Time,
		Trainer:      f.Trainer,
		Spots:        f.Spots,
		DayOfWeek:    copyIntPtr(f.DayOfWeek),
		SpecificDate: copyStringPtr(f.SpecificDate),
		Description:  copyStringPtr(f.Description),
	}
}

// -------------------------- Reservation fixtures ---------------------------

// ReservationFixture represents a deterministic reservation record.
type ReservationFixture struct {
	ID         string
	LessonID   string
	LessonDate string
	Name       string
	Email      string
	Phone      *string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a confirmed reservation for lessonID on
// NextTuesday.
func NewReservationFixture(lessonID string, opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	id := fmt.Sprintf("reservation-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Second)
	fixture := ReservationFixture{
		ID:         id,
		LessonID:   lessonID,
		LessonDate: NextTuesday,
		Name:       fmt.Sprintf("Member %03d", idx),
		Email:      fmt.Sprintf("member%03d@example.com", idx),
		Status:     persistence.StatusConfirmed,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationDate overrides the booked lesson date.
func WithReservationDate(date string) ReservationOption {
	return func(f *ReservationFixture) {
		f.LessonDate = date
	}
}

// WithParticipantEmail overrides the participant email.
func WithParticipantEmail(email string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Email = email
	}
}

// WithReservationStatus overrides the reservation status.
func WithReservationStatus(status string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Status = status
	}
}

// Application returns the fixture as an application.Reservation value.
func (f ReservationFixture) Application() application.Reservation {
	return application.Reservation{
		ID:         f.ID,
		LessonID:   f.LessonID,
		LessonDate: f.LessonDate,
		Participant: application.Participant{
			Name:  f.Name,
			Email: f.Email,
			Phone: copyStringPtr(f.Phone),
		},
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Reservation value.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		ID:               f.ID,
		LessonID:         f.LessonID,
		LessonDate:       f.LessonDate,
		ParticipantName:  f.Name,
		ParticipantEmail: f.Email,
		ParticipantPhone: copyStringPtr(f.Phone),
		Status:           f.Status,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// --------------------------- Offering fixtures -----------------------------

// OfferingFixture represents a deterministic service offering.
type OfferingFixture struct {
	ID           string
	Title        string
	Category     string
	PriceCents   int64
	Features     []string
	IsActive     bool
	DisplayOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OfferingOption configures the generated offering fixture.
type OfferingOption func(*OfferingFixture)

// NewOfferingFixture returns an active personal training offering.
func NewOfferingFixture(opts ...OfferingOption) OfferingFixture {
	idx := atomic.AddUint64(&offeringCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := OfferingFixture{
		ID:           fmt.Sprintf("offering-%03d", idx),
		Title:        fmt.Sprintf("Offering %03d", idx),
		Category:     "personal_training",
		PriceCents:   800000,
		Features:     []string{"60 minutes"},
		IsActive:     true,
		DisplayOrder: int(idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCategory overrides the offering category.
func WithCategory(category string) OfferingOption {
	return func(f *OfferingFixture) {
		f.Category = category
	}
}

// Inactive hides the offering from public listings.
func Inactive() OfferingOption {
	return func(f *OfferingFixture) {
		f.IsActive = false
	}
}

// WithDisplayOrder overrides the offering position.
func WithDisplayOrder(order int) OfferingOption {
	return func(f *OfferingFixture) {
		f.DisplayOrder = order
	}
}

// Persistence returns the fixture as a persistence.Offering value.
func (f OfferingFixture) Persistence() persistence.Offering {
	return persistence.Offering{
		ID:           f.ID,
		Title:        f.Title,
		Category:     f.Category,
		PriceCents:   f.PriceCents,
		Features:     append([]string(nil), f.Features...),
		IsActive:     f.IsActive,
		DisplayOrder: f.DisplayOrder,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ---------------------------- Admin fixtures -------------------------------

// AdminFixture represents a deterministic back-office account.
type AdminFixture struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// NewAdminFixture returns an active admin whose password hash is passwordHash.
func NewAdminFixture(passwordHash string) AdminFixture {
	idx := atomic.AddUint64(&adminCounter, 1)
	return AdminFixture{
		ID:           fmt.Sprintf("admin-%03d", idx),
		Username:     fmt.Sprintf("admin%03d", idx),
		Email:        fmt.Sprintf("admin%03d@example.com", idx),
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    referenceTime,
	}
}

// Persistence returns the fixture as a persistence.AdminUser value.
func (f AdminFixture) Persistence() persistence.AdminUser {
	return persistence.AdminUser{
		ID:           f.ID,
		Username:     f.Username,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		Role:         "admin",
		IsActive:     f.IsActive,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

// Principal returns the application principal of the fixture.
func (f AdminFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Username: f.Username, IsAdmin: true}
}

// NewSessionFixture returns a session for adminID expiring ttl after ReferenceTime.
func NewSessionFixture(adminID string, ttl time.Duration) persistence.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	return persistence.Session{
		ID:        fmt.Sprintf("session-%03d", idx),
		AdminID:   adminID,
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: referenceTime.Add(ttl),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

func copyStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func copyIntPtr(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
