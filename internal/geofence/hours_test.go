// ABOUTME: Tests for opening-hours evaluation
// ABOUTME: Verifies boundaries, midnight wraparound, and venue-timezone conversion

package geofence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hh, mm int) time.Time {
	return time.Date(2026, 3, 10, hh, mm, 0, 0, time.UTC)
}

func TestIsOpen_DayWindow(t *testing.T) {
	tests := []struct {
		now  time.Time
		want bool
	}{
		{at(8, 59), false},
		{at(9, 0), true},
		{at(21, 59), true},
		{at(22, 0), false},
	}
	for _, tt := range tests {
		got, err := IsOpen("09:00", "22:00", tt.now)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "at %s", tt.now.Format("15:04"))
	}
}

func TestIsOpen_Wraparound(t *testing.T) {
	tests := []struct {
		now  time.Time
		want bool
	}{
		{at(23, 0), true},
		{at(5, 0), true},
		{at(6, 0), false},
		{at(12, 0), false},
		{at(22, 0), true},
	}
	for _, tt := range tests {
		got, err := IsOpen("22:00", "06:00", tt.now)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "at %s", tt.now.Format("15:04"))
	}
}

func TestIsOpen_AlwaysOpen(t *testing.T) {
	for _, now := range []time.Time{at(0, 0), at(12, 30), at(23, 59)} {
		got, err := IsOpen("10:00", "10:00", now)
		require.NoError(t, err)
		assert.True(t, got)

		got, err = IsOpen("", "", now)
		require.NoError(t, err)
		assert.True(t, got)
	}
}

func TestIsOpen_InvalidClock(t *testing.T) {
	_, err := IsOpen("9am", "22:00", at(10, 0))
	assert.Error(t, err)

	_, err = IsOpen("09:00", "24:00", at(10, 0))
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	m, err = ParseClock("22:00:00")
	require.NoError(t, err)
	assert.Equal(t, 1320, m)
}

func TestHours_OpenAtUsesVenueTimezone(t *testing.T) {
	h, err := NewHours("09:00", "22:00", "Asia/Tashkent") // UTC+5, no DST
	require.NoError(t, err)

	// 03:30 UTC is 08:30 in Tashkent.
	open, err := h.OpenAt(time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, open)

	// 04:00 UTC is 09:00 in Tashkent.
	open, err = h.OpenAt(time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, open)

	// The same instant expressed in another zone gives the same answer.
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	open, err = h.OpenAt(time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC).In(ny))
	require.NoError(t, err)
	assert.True(t, open)
}

func TestNewHours_BadTimezone(t *testing.T) {
	_, err := NewHours("09:00", "22:00", "Mars/Olympus")
	assert.Error(t, err)
}

func TestHours_Describe(t *testing.T) {
	assert.Equal(t, "09:00–22:00", Hours{Open: "09:00", Close: "22:00"}.Describe())
	assert.Equal(t, "??:??–??:??", Hours{}.Describe())
}
