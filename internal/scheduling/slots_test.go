package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func weekdays(open, close time.Duration) map[time.Weekday]Hours {
	w := make(map[time.Weekday]Hours)
	for d := time.Monday; d <= time.Friday; d++ {
		w[d] = Hours{Open: open, Close: close}
	}
	return w
}

func newTestCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := NewCalendar(Config{
		SlotDuration: time.Hour,
		Weekly:       weekdays(8*time.Hour, 16*time.Hour),
		Holidays:     []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return cal
}

func TestSlotsForDate(t *testing.T) {
	cal := newTestCalendar(t)

	// Wednesday
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, cal.SlotsForDate(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
	// Saturday has no configured hours
	assert.Empty(t, cal.SlotsForDate(time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)))
	// Holiday
	assert.Empty(t, cal.SlotsForDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPartialTrailingSlotIsDropped(t *testing.T) {
	cal, err := NewCalendar(Config{
		SlotDuration: 45 * time.Minute,
		Weekly:       weekdays(9*time.Hour, 11*time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, cal.SlotsForDate(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
}

func TestContains(t *testing.T) {
	cal := newTestCalendar(t)
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, cal.Contains(date, 0))
	assert.True(t, cal.Contains(date, 7))
	assert.False(t, cal.Contains(date, 8))
	assert.False(t, cal.Contains(date, 99))
	assert.False(t, cal.Contains(date, -1))
}

func TestSlotRange(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	cal, err := NewCalendar(Config{
		Location:     loc,
		SlotDuration: 30 * time.Minute,
		Weekly:       weekdays(8*time.Hour, 12*time.Hour),
	})
	require.NoError(t, err)

	start, end, err := cal.SlotRange(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 3)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 9, 30, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 1, 10, 10, 0, 0, 0, loc), end)

	_, _, err = cal.SlotRange(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 99)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidSlot))
}

func TestNewCalendarRejectsBadConfig(t *testing.T) {
	_, err := NewCalendar(Config{SlotDuration: 0})
	assert.Error(t, err)

	_, err = NewCalendar(Config{
		SlotDuration: time.Hour,
		Weekly:       map[time.Weekday]Hours{time.Monday: {Open: 10 * time.Hour, Close: 9 * time.Hour}},
	})
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+30*time.Minute, d)

	d, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	for _, bad := range []string{"", "8", "25:00", "12:60", "24:30"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}
