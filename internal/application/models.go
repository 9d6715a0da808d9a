package application

import "time"

// Reservation status values.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
)

// Principal represents the authenticated admin invoking a service method.
// The zero value is an anonymous visitor.
type Principal struct {
	UserID    string
	Username  string
	IsAdmin   bool
	ExpiresAt time.Time
}

// LessonInput captures caller provided lesson fields.
type LessonInput struct {
	Title        string  `field:"title" validate:"required,max=200"`
	Time         string  `field:"time" validate:"required,hhmm"`
	Trainer      string  `field:"trainer" validate:"required,max=100"`
	Spots        int     `field:"spots" validate:"gt=0,lte=1000"`
	DayOfWeek    *int    `field:"day_of_week" validate:"omitempty,min=1,max=7"`
	SpecificDate *string `field:"specific_date" validate:"omitempty,isodate"`
	Description  *string `field:"description" validate:"omitempty,max=2000"`
}

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

// CreateLessonParams wraps the data required to create a lesson.
type CreateLessonParams struct {
	Principal Principal
	Input     LessonInput
}

// UpdateLessonParams wraps the data required to update a lesson.
type UpdateLessonParams struct {
	Principal Principal
	LessonID  string
	Input     LessonInput
}

// ListOccurrencesParams selects the dates to expand for a lesson. Empty
// bounds default to today and four weeks ahead.
type ListOccurrencesParams struct {
	LessonID string
	From     string
	To       string
}

// Occurrence is one dated instance of a lesson with its seat availability.
type Occurrence struct {
	LessonID  string
	Date      string
	Time      string
	Spots     int
	Booked    int
	Available int
	IsFull    bool
}

// Availability describes the seats of one lesson occurrence.
type Availability struct {
	LessonID  string
	Date      string
	Spots     int
	Booked    int
	Available int
	IsFull    bool
}

// Participant identifies the person booking a seat.
type Participant struct {
	Name  string  `field:"participant_name" validate:"required,max=100"`
	Email string  `field:"participant_email" validate:"required,email,max=254"`
	Phone *string `field:"participant_phone" validate:"omitempty,max=30"`
	Notes *string `field:"notes" validate:"omitempty,max=1000"`
}

// Reservation represents a participant's seat for one lesson occurrence.
type Reservation struct {
	ID          string
	LessonID    string
	LessonDate  string
	Participant Participant
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AdmitReservationParams wraps one incoming booking request.
type AdmitReservationParams struct {
	LessonID    string
	LessonDate  string
	Participant Participant
}

// CancelReservationParams identifies the confirmed seat a participant gives up.
type CancelReservationParams struct {
	LessonID   string
	LessonDate string
	Email      string
}

// ReservationFilter narrows reservation listings. Empty fields are ignored.
type ReservationFilter struct {
	LessonID   string
	LessonDate string
	Status     string
}

// LessonCount pairs a lesson with its number of confirmed reservations.
type LessonCount struct {
	LessonID string
	Title    string
	Count    int
}

// RecentReservation is a confirmed reservation with its lesson title.
type RecentReservation struct {
	Reservation Reservation
	LessonTitle string
}

// ReservationStats summarises booking activity for the admin area.
type ReservationStats struct {
	Month          string
	TotalThisMonth int
	PopularLessons []LessonCount
}

// Dashboard aggregates the admin landing page figures.
type Dashboard struct {
	TotalLessons          int
	ReservationsThisMonth int
	TotalOfferings        int
	RecentReservations    []RecentReservation
}

// OfferingInput captures caller provided offering fields.
type OfferingInput struct {
	Title           string   `field:"title" validate:"required,max=200"`
	Description     string   `field:"description" validate:"max=5000"`
	Category        string   `field:"category" validate:"required,max=100"`
	PriceCents      int64    `field:"price" validate:"gte=0"`
	DurationMinutes *int     `field:"duration_minutes" validate:"omitempty,gt=0,lte=1440"`
	Features        []string `field:"features" validate:"max=50,dive,required,max=200"`
	ImageURL        *string  `field:"image_url" validate:"omitempty,max=2048"`
	IsActive        *bool    `field:"is_active"`
	DisplayOrder    *int     `field:"display_order" validate:"omitempty,gte=0"`
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

// ListOfferingsParams narrows an offering listing. An empty Category lists
// every category.
type ListOfferingsParams struct {
	Principal       Principal
	IncludeInactive bool
	Category        string
}

// CreateOfferingParams wraps the data required to create an offering.
type CreateOfferingParams struct {
	Principal Principal
	Input     OfferingInput
}

// UpdateOfferingParams wraps the data required to update an offering.
type UpdateOfferingParams struct {
	Principal  Principal
	OfferingID string
	Input      OfferingInput
}

// ReorderOfferingsParams lists the offering ids of a category in their new order.
type ReorderOfferingsParams struct {
	Principal Principal
	Category  string
	IDs       []string
}

// AdminUser models a back-office account and its login bookkeeping.
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

// Session represents an authenticated session issued to an admin.
type Session struct {
	ID        string
	AdminID   string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate an admin.
type AuthenticateParams struct {
	Username string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	Admin   AdminUser
	Session Session
}

// EnsureAdminParams describes the bootstrap admin account.
type EnsureAdminParams struct {
	Username string
	Password string
	Email    string
}
