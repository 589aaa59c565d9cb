package preferences_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/preferences"
)

func at(hh, mm int) time.Time {
	return time.Date(2026, 3, 10, hh, mm, 0, 0, time.UTC)
}

func TestQuietHoursActive(t *testing.T) {
	t.Parallel()

	overnight := preferences.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}
	daytime := preferences.QuietHours{Enabled: true, Start: "09:00", End: "17:30"}

	tests := []struct {
		name string
		q    preferences.QuietHours
		now  time.Time
		want bool
	}{
		{"overnight late evening", overnight, at(23, 30), true},
		{"overnight early morning", overnight, at(7, 30), true},
		{"overnight midday", overnight, at(12, 0), false},
		{"overnight end is exclusive", overnight, at(8, 0), false},
		{"overnight start is inclusive", overnight, at(22, 0), true},
		{"overnight midnight", overnight, at(0, 0), true},
		{"daytime inside", daytime, at(12, 0), true},
		{"daytime before", daytime, at(8, 59), false},
		{"daytime end", daytime, at(17, 30), false},
		{"disabled window", preferences.QuietHours{Start: "00:00", End: "23:59"}, at(12, 0), false},
		{"empty window", preferences.QuietHours{Enabled: true, Start: "10:00", End: "10:00"}, at(10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.q.Active(tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuietHoursTimezone(t *testing.T) {
	t.Parallel()

	t.Run("evaluated in user timezone", func(t *testing.T) {
		t.Parallel()
		q := preferences.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "Asia/Tokyo"}
		// 14:00 UTC is 23:00 in Tokyo.
		active, err := q.Active(at(14, 0))
		require.NoError(t, err)
		assert.True(t, active)

		// 03:00 UTC is 12:00 in Tokyo.
		active, err = q.Active(at(3, 0))
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("unknown timezone falls back to utc", func(t *testing.T) {
		t.Parallel()
		q := preferences.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "Mars/Olympus"}
		active, err := q.Active(at(23, 0))
		assert.ErrorIs(t, err, preferences.ErrInvalidTimezone)
		assert.True(t, active)
	})
}

func TestQuietHoursMalformed(t *testing.T) {
	t.Parallel()

	q := preferences.QuietHours{Enabled: true, Start: "25:00", End: "08:00"}
	active, err := q.Active(at(23, 0))
	assert.ErrorIs(t, err, preferences.ErrInvalidClock)
	assert.False(t, active)
}

func TestInWindow(t *testing.T) {
	t.Parallel()

	assert.True(t, preferences.InWindow(0, 1380, 60))
	assert.False(t, preferences.InWindow(60, 1380, 60))
	assert.True(t, preferences.InWindow(1380, 1380, 60))
	assert.False(t, preferences.InWindow(600, 600, 600))
	assert.True(t, preferences.InWindow(600, 540, 660))
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	m, err := preferences.ParseClock("07:45")
	require.NoError(t, err)
	assert.Equal(t, 7*60+45, m)

	_, err = preferences.ParseClock("7pm")
	assert.ErrorIs(t, err, preferences.ErrInvalidClock)
}
