package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/example/gym-reservations/internal/persistence"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: persistence.ErrNotFound},
		{name: "capacity trigger", err: &pgconn.PgError{Code: "P0001", Message: "lesson capacity exceeded"}, want: persistence.ErrCapacityExceeded},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: persistence.ErrDuplicate},
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503"}, want: persistence.ErrConstraintViolation},
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}, want: persistence.ErrConstraintViolation},
		{name: "not null violation", err: &pgconn.PgError{Code: "23502"}, want: persistence.ErrConstraintViolation},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, want: persistence.ErrUnavailable},
		{name: "admin shutdown", err: &pgconn.PgError{Code: "57P01"}, want: persistence.ErrUnavailable},
		{name: "too many connections", err: &pgconn.PgError{Code: "53300"}, want: persistence.ErrUnavailable},
		{name: "closed pool", err: errors.New("closed pool"), want: persistence.ErrUnavailable},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: persistence.ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(context.Canceled), context.Canceled)

	other := &pgconn.PgError{Code: "P0001", Message: "something else"}
	got := mapError(other)
	assert.Same(t, other, got)

	plain := errors.New("boom")
	assert.Same(t, plain, mapError(plain))
}
