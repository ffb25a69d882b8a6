package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	base := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"same day later", base.Add(20 * time.Minute), 0},
		{"next day after midnight", base.Add(45 * time.Minute), 1},
		{"three days", base.AddDate(0, 0, 3), 3},
		{"past", base.AddDate(0, 0, -2), -2},
		{"non-utc input", time.Date(2024, 3, 6, 4, 0, 0, 0, time.FixedZone("X", 5*3600)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(base, tt.to))
		})
	}
}

func TestDateSeed(t *testing.T) {
	seed, err := DateSeed("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, 20240305, seed)

	_, err = DateSeed("05/03/2024")
	assert.Error(t, err)
}

func TestUntilMidnight(t *testing.T) {
	now := time.Date(2024, 3, 5, 21, 15, 30, 0, time.UTC)
	assert.Equal(t, "2h 44m", UntilMidnight(now))
	assert.Equal(t, "24h 0m", UntilMidnight(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
}

func TestMonthHelpers(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 31, DaysInMonth(2024, time.December))

	start, end := MonthBounds(2024, time.December)
	assert.Equal(t, "2024-12-01", FormatDate(start))
	assert.Equal(t, "2025-01-01", FormatDate(end))
}

func TestStartOfWeek(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-04", FormatDate(StartOfWeek(sunday)))
	monday := time.Date(2024, 3, 4, 0, 0, 1, 0, time.UTC)
	assert.Equal(t, "2024-03-04", FormatDate(StartOfWeek(monday)))
}
