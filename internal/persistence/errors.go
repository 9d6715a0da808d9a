package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a write breaks a check or foreign key constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrCapacityExceeded is returned when the store itself refuses a confirmed
	// reservation because the lesson has no seats left on that date.
	ErrCapacityExceeded = errors.New("persistence: lesson capacity exceeded")
	// ErrUnavailable is returned when the backing database cannot be reached.
	ErrUnavailable = errors.New("persistence: storage unavailable")
)
