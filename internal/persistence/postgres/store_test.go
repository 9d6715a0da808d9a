package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/gym-reservations/internal/persistence"
	"github.com/example/gym-reservations/internal/persistence/storetest"
)

// newTestStore connects to GYM_TEST_DATABASE_URL and empties every table.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("GYM_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GYM_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := DefaultPoolConfig(url)
	cfg.ConnectAttempts = 1
	pool, err := NewPool(ctx, cfg, nil)
	require.NoError(t, err)

	store := New(pool)
	t.Cleanup(func() {
		_ = store.Close()
	})

	require.NoError(t, store.Migrate(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE sessions, admin_users, reservations, offerings, lessons`)
	require.NoError(t, err)
	return store
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Store {
		return newTestStore(t)
	})
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
}
