package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestEngine_Occurrences(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)

	t.Run("weekly rule yields the selected weekday", func(t *testing.T) {
		t.Parallel()

		// 2024-06-03 is a Monday.
		dates, err := engine.Occurrences(Rule{DayOfWeek: intPtr(1)}, "2024-06-01", "2024-06-30")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-03", "2024-06-10", "2024-06-17", "2024-06-24"}, dates)
	})

	t.Run("sunday is day seven", func(t *testing.T) {
		t.Parallel()

		dates, err := engine.Occurrences(Rule{DayOfWeek: intPtr(7)}, "2024-06-01", "2024-06-10")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-02", "2024-06-09"}, dates)
	})

	t.Run("specific date inside and outside the window", func(t *testing.T) {
		t.Parallel()

		dates, err := engine.Occurrences(Rule{SpecificDate: strPtr("2024-06-15")}, "2024-06-01", "2024-06-30")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-15"}, dates)

		dates, err = engine.Occurrences(Rule{SpecificDate: strPtr("2024-07-15")}, "2024-06-01", "2024-06-30")
		require.NoError(t, err)
		assert.Empty(t, dates)
	})

	t.Run("specific date wins over weekday", func(t *testing.T) {
		t.Parallel()

		dates, err := engine.Occurrences(Rule{DayOfWeek: intPtr(1), SpecificDate: strPtr("2024-06-15")}, "2024-06-01", "2024-06-30")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-15"}, dates)
	})

	t.Run("unconstrained rule occurs daily", func(t *testing.T) {
		t.Parallel()

		dates, err := engine.Occurrences(Rule{}, "2024-02-28", "2024-03-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, dates)
	})

	t.Run("single day window", func(t *testing.T) {
		t.Parallel()

		dates, err := engine.Occurrences(Rule{}, "2024-06-01", "2024-06-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-01"}, dates)
	})

	t.Run("rejects invalid windows", func(t *testing.T) {
		t.Parallel()

		_, err := engine.Occurrences(Rule{}, "2024-06-10", "2024-06-01")
		assert.ErrorIs(t, err, ErrInvalidWindow)

		_, err = engine.Occurrences(Rule{}, "2024-01-01", "2024-04-02")
		assert.ErrorIs(t, err, ErrInvalidWindow)

		dates, err := engine.Occurrences(Rule{}, "2024-01-01", "2024-03-31")
		require.NoError(t, err)
		assert.Len(t, dates, 91)

		_, err = engine.Occurrences(Rule{}, "2024/06/01", "2024-06-02")
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("rejects invalid rules", func(t *testing.T) {
		t.Parallel()

		_, err := engine.Occurrences(Rule{DayOfWeek: intPtr(0)}, "2024-06-01", "2024-06-02")
		assert.ErrorIs(t, err, ErrInvalidRule)

		_, err = engine.Occurrences(Rule{SpecificDate: strPtr("June 1")}, "2024-06-01", "2024-06-02")
		assert.ErrorIs(t, err, ErrInvalidRule)
	})
}

func TestEngine_Matches(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)

	tests := []struct {
		name string
		rule Rule
		date string
		want bool
	}{
		{name: "matching weekday", rule: Rule{DayOfWeek: intPtr(1)}, date: "2024-06-10", want: true},
		{name: "other weekday", rule: Rule{DayOfWeek: intPtr(1)}, date: "2024-06-11", want: false},
		{name: "matching specific date", rule: Rule{SpecificDate: strPtr("2024-06-10")}, date: "2024-06-10", want: true},
		{name: "other date", rule: Rule{SpecificDate: strPtr("2024-06-10")}, date: "2024-06-17", want: false},
		{name: "any date", rule: Rule{}, date: "2031-12-31", want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := engine.Matches(tt.rule, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := engine.Matches(Rule{}, "not-a-date")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestEngine_Location(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	engine := NewEngine(tokyo)

	// 2024-06-09 20:00 UTC is already Monday 2024-06-10 in Tokyo.
	now := time.Date(2024, time.June, 9, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-10", engine.Today(now))
	assert.Equal(t, "2024-06-09", NewEngine(nil).Today(now))

	day, err := engine.ParseDate("2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, tokyo, day.Location())
}

func TestWeekday(t *testing.T) {
	t.Parallel()

	for iso, want := range map[int]time.Weekday{1: time.Monday, 6: time.Saturday, 7: time.Sunday} {
		got, err := Weekday(iso)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := Weekday(8)
	assert.ErrorIs(t, err, ErrInvalidRule)
}
