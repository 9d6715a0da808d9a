package application

import (
	"testing"
	"time"
)

func TestStatsCacheStoresAndReturnsCopies(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newStatsCache(time.Minute, 4, func() time.Time { return current })

	original := ReservationStats{Month: "2024-05", TotalThisMonth: 3, PopularLessons: []LessonCount{{LessonID: "yoga-1", Count: 3}}}
	cache.Store("2024-05", original, cache.Generation())

	// Mutating the original slice should not affect the cached copy.
	original.PopularLessons[0].LessonID = "mutated"

	cached, ok := cache.Get("2024-05")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached.PopularLessons[0].LessonID != "yoga-1" {
		t.Fatalf("expected cached lesson id to remain unchanged, got %s", cached.PopularLessons[0].LessonID)
	}

	// Mutating the returned slice should not be visible on subsequent reads.
	cached.PopularLessons[0].LessonID = "changed"
	again, ok := cache.Get("2024-05")
	if !ok {
		t.Fatalf("expected cache hit on second read")
	}
	if again.PopularLessons[0].LessonID != "yoga-1" {
		t.Fatalf("expected cache to return independent copy, got %s", again.PopularLessons[0].LessonID)
	}
}

func TestStatsCacheExpiresEntries(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newStatsCache(time.Second, 4, func() time.Time { return current })

	cache.Store("2024-05", ReservationStats{TotalThisMonth: 1}, cache.Generation())
	if _, ok := cache.Get("2024-05"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("2024-05"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestStatsCacheEvictsWhenFull(t *testing.T) {
	cache := newStatsCache(time.Minute, 2, time.Now)
	cache.Store("a", ReservationStats{}, cache.Generation())
	cache.Store("b", ReservationStats{}, cache.Generation())
	cache.Store("c", ReservationStats{}, cache.Generation())

	if len(cache.entries) != 2 {
		t.Fatalf("expected cache to hold at most 2 entries, got %d", len(cache.entries))
	}
	if _, ok := cache.Get("c"); !ok {
		t.Fatalf("expected newest entry to be kept")
	}
}

func TestStatsCacheInvalidate(t *testing.T) {
	cache := newStatsCache(time.Minute, 4, time.Now)
	cache.Store("2024-05", ReservationStats{TotalThisMonth: 1}, cache.Generation())
	cache.Invalidate()
	if _, ok := cache.Get("2024-05"); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}

	var nilCache *statsCache
	nilCache.Invalidate()
	if _, ok := nilCache.Get("2024-05"); ok {
		t.Fatalf("expected nil cache to miss")
	}
}

func TestStatsCacheDropsValueComputedBeforeInvalidate(t *testing.T) {
	cache := newStatsCache(time.Minute, 4, time.Now)

	gen := cache.Generation()
	cache.Invalidate()
	cache.Store("2024-05", ReservationStats{TotalThisMonth: 1}, gen)
	if _, ok := cache.Get("2024-05"); ok {
		t.Fatalf("expected value from an older generation to be discarded")
	}

	cache.Store("2024-05", ReservationStats{TotalThisMonth: 2}, cache.Generation())
	got, ok := cache.Get("2024-05")
	if !ok || got.TotalThisMonth != 2 {
		t.Fatalf("expected current-generation value to be cached, got %+v ok=%v", got, ok)
	}
}
