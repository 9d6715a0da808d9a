package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/gym-reservations/internal/persistence"
	"github.com/example/gym-reservations/internal/persistence/sqlite"
)

// SQLiteHarness provides a migrated SQLite store backed by a temporary file
// for integration-style persistence tests.
type SQLiteHarness struct {
	Store persistence.Store

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// SeedLessons inserts the given lessons, failing the test on error.
func (h *SQLiteHarness) SeedLessons(tb testing.TB, lessons ...LessonFixture) {
	tb.Helper()
	for _, lesson := range lessons {
		if err := h.Store.CreateLesson(context.Background(), lesson.Persistence()); err != nil {
			tb.Fatalf("seed lesson %s: %v", lesson.ID, err)
		}
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "gym.db")

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
