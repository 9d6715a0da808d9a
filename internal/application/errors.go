package application

import (
	"errors"
	"fmt"

	"github.com/example/gym-reservations/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrLessonNotFound is returned when a lesson id does not resolve. It matches ErrNotFound.
	ErrLessonNotFound = fmt.Errorf("application: lesson %w", ErrNotFound)
	// ErrLessonFull is returned when every seat of a lesson occurrence is taken.
	ErrLessonFull = errors.New("application: lesson is full")
	// ErrDuplicateBooking is returned when the participant already holds a seat for the occurrence.
	ErrDuplicateBooking = errors.New("application: already registered for this lesson")
	// ErrLessonHasReservations is matched by LessonHasReservationsError.
	ErrLessonHasReservations = errors.New("application: lesson has reservations")
	// ErrStorageUnavailable is returned when the persistence layer cannot be reached.
	ErrStorageUnavailable = errors.New("application: storage unavailable")
	// ErrInvalidCredentials is returned when a login or session token is rejected.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountLocked is returned while an admin is locked out after repeated failures.
	ErrAccountLocked = errors.New("application: account locked")
)

// LessonHasReservationsError blocks deleting a lesson that still has reservations.
type LessonHasReservationsError struct {
	Count int
}

// Error implements the error interface.
func (e *LessonHasReservationsError) Error() string {
	return fmt.Sprintf("application: lesson has %d reservation(s)", e.Count)
}

// Is lets errors.Is match ErrLessonHasReservations.
func (e *LessonHasReservationsError) Is(target error) bool {
	return target == ErrLessonHasReservations
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// mapStoreError translates the persistence sentinels every service shares.
// The original error stays in the chain.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
