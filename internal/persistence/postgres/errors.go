package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/gym-reservations/internal/persistence"
)

// capacityMessage is raised by enforce_lesson_capacity().
const capacityMessage = "lesson capacity exceeded"

// mapError translates pgx errors into persistence sentinels. The original
// error stays in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", persistence.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "P0001" && strings.Contains(pgErr.Message, capacityMessage):
			return fmt.Errorf("%w: %w", persistence.ErrCapacityExceeded, err)
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
		case pgErr.Code == "23503", pgErr.Code == "23514", pgErr.Code == "23502":
			return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"), pgErr.Code == "53300":
			return fmt.Errorf("%w: %w", persistence.ErrUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", persistence.ErrUnavailable, err)
	}
	if strings.Contains(err.Error(), "closed pool") || strings.Contains(err.Error(), "conn closed") {
		return fmt.Errorf("%w: %w", persistence.ErrUnavailable, err)
	}
	return err
}
