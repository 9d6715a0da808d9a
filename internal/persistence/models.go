package persistence

import "time"

// Reservation status values stored in the reservations table.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
)

// Lesson represents a bookable group lesson.
type Lesson struct {
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

// Reservation represents a participant's seat for one lesson occurrence.
type Reservation struct {
	ID               string
	LessonID         string
	LessonDate       string
	ParticipantName  string
	ParticipantEmail string
	ParticipantPhone *string
	Notes            *string
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReservationFilter narrows reservation listings. Empty fields are ignored.
type ReservationFilter struct {
	LessonID   string
	LessonDate string
	Status     string
}

// LessonCount pairs a lesson with the number of confirmed reservations it holds.
type LessonCount struct {
	LessonID string
	Title    string
	Count    int
}

// RecentReservation is a confirmed reservation joined with its lesson title.
type RecentReservation struct {
	Reservation
	LessonTitle string
}

// Offering represents a service the gym sells, such as personal training.
type Offering struct {
	ID              string
	Title           string
	Description     string
	Category        string
	PriceCents      int64
	DurationMinutes *int
	Features        []string
	ImageURL        *string
	IsActive        bool
	DisplayOrder    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AdminUser represents a back-office account.
type AdminUser struct {
	ID                  string
	Username            string
	Email               string
	PasswordHash        string
	Role                string
	IsActive            bool
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Session represents an authentication session issued to an admin.
type Session struct {
	ID        string
	AdminID   string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
