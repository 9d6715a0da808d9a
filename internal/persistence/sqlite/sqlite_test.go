package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gym-reservations/internal/persistence"
	"github.com/example/gym-reservations/internal/persistence/storetest"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "gym.db")
	storage, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = storage.Close()
	})

	require.NoError(t, storage.Migrate(context.Background()))
	return storage
}

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Store {
		return newTestStorage(t)
	})
}

func TestStorage_MigrateIsIdempotent(t *testing.T) {
	storage := newTestStorage(t)
	require.NoError(t, storage.Migrate(context.Background()))
	require.NoError(t, storage.Ping(context.Background()))
}

func TestStorage_CapacityTriggerBlocksReconfirm(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	require.NoError(t, storage.CreateLesson(ctx, storetest.NewLesson("yoga-1", 1)))

	first := storetest.NewReservation("r-1", "yoga-1", "2024-06-10", "alice@example.com")
	require.NoError(t, storage.WithBookingLock(ctx, "yoga-1", "2024-06-10", func(tx persistence.BookingTx) error {
		return tx.InsertReservation(ctx, first)
	}))
	_, err := storage.CancelReservation(ctx, "yoga-1", "2024-06-10", "alice@example.com", first.CreatedAt)
	require.NoError(t, err)

	second := storetest.NewReservation("r-2", "yoga-1", "2024-06-10", "bob@example.com")
	require.NoError(t, storage.WithBookingLock(ctx, "yoga-1", "2024-06-10", func(tx persistence.BookingTx) error {
		return tx.InsertReservation(ctx, second)
	}))

	_, err = storage.pool.DB().ExecContext(ctx, `UPDATE reservations SET status = 'confirmed' WHERE id = 'r-1'`)
	assert.ErrorIs(t, storage.pool.mapper.MapError(err), persistence.ErrCapacityExceeded)
}

func TestStorage_EmailMatchIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	require.NoError(t, storage.CreateLesson(ctx, storetest.NewLesson("spin-1", 5)))

	insert := func(id, email string) error {
		return storage.WithBookingLock(ctx, "spin-1", "2024-06-10", func(tx persistence.BookingTx) error {
			return tx.InsertReservation(ctx, storetest.NewReservation(id, "spin-1", "2024-06-10", email))
		})
	}
	require.NoError(t, insert("r-1", "alice@example.com"))
	assert.ErrorIs(t, insert("r-2", "Alice@Example.com"), persistence.ErrDuplicate)

	_, err := storage.CancelReservation(ctx, "spin-1", "2024-06-10", "ALICE@example.com", time.Date(2024, time.June, 2, 8, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
}

func TestStorage_InsertForUnknownLesson(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	err := storage.WithBookingLock(ctx, "ghost", "2024-06-10", func(tx persistence.BookingTx) error {
		return tx.InsertReservation(ctx, storetest.NewReservation("r-1", "ghost", "2024-06-10", "a@example.com"))
	})
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
}

func TestErrorMapper_MapError(t *testing.T) {
	mapper := NewErrorMapper()

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"capacity trigger", errors.New("constraint failed: lesson capacity exceeded (1811)"), persistence.ErrCapacityExceeded},
		{"unique index", errors.New("constraint failed: UNIQUE constraint failed: reservations.lesson_id (2067)"), persistence.ErrDuplicate},
		{"foreign key", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), persistence.ErrConstraintViolation},
		{"check", errors.New("constraint failed: CHECK constraint failed: spots > 0 (275)"), persistence.ErrConstraintViolation},
		{"cannot open", errors.New("unable to open database file: out of memory (14)"), persistence.ErrUnavailable},
		{"closed pool", errors.New("sql: database is closed"), persistence.ErrUnavailable},
		{"busy", errors.New("database is locked (5) (SQLITE_BUSY)"), errBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapper.MapError(tt.err)
			assert.ErrorIs(t, mapped, tt.expected)
			assert.ErrorIs(t, mapped, tt.err, "original error stays in the chain")
		})
	}

	assert.NoError(t, mapper.MapError(nil))
	assert.ErrorIs(t, mapper.MapError(context.Canceled), context.Canceled)
	plain := errors.New("something else")
	assert.Same(t, plain, mapper.MapError(plain))
}

func TestConnectionPool_DriverFailuresAreUnavailable(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	storage := newStorage(NewConnectionPoolFromDB(db), nil)

	mock.ExpectPing().WillReturnError(errors.New("unable to open database file"))
	assert.ErrorIs(t, storage.Ping(ctx), persistence.ErrUnavailable)

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("disk I/O error"))
	_, err = storage.CountLessons(ctx)
	assert.ErrorIs(t, err, persistence.ErrUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionPool_BusyBeginIsRetriedThenUnavailable(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pool := NewConnectionPoolFromDB(db)
	pool.retry = NewRetryHelper(RetryConfig{MaxRetries: 2, BackoffFactor: 1})

	busy := errors.New("database is locked (5) (SQLITE_BUSY)")
	for i := 0; i < 3; i++ {
		mock.ExpectExec("BEGIN IMMEDIATE").WillReturnError(busy)
	}

	called := false
	err = pool.WithTransaction(ctx, func(Queryer) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, persistence.ErrUnavailable)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionPool_WithTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pool := NewConnectionPoolFromDB(db)
	mock.ExpectExec("BEGIN IMMEDIATE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	boom := errors.New("boom")
	err = pool.WithTransaction(ctx, func(Queryer) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
