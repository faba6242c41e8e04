// Package scheduling divides clinic days into bookable slots.
//
// A slot is identified by its index within the day. Slot i of a date
// starts at open + i*duration, and only slots that end by closing time
// exist. Everything here is a pure function of the configuration.
package scheduling

import (
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Hours are the operating hours of one weekday as offsets from midnight.
// A zero value means the clinic is closed that day.
type Hours struct {
	Open  time.Duration
	Close time.Duration
}

type Config struct {
	// Location is the clinic's time zone. Defaults to UTC.
	Location     *time.Location
	SlotDuration time.Duration
	Weekly       map[time.Weekday]Hours
	// Holidays are closed calendar dates.
	Holidays []time.Time
}

type Calendar struct {
	loc      *time.Location
	duration time.Duration
	weekly   map[time.Weekday]Hours
	holidays map[string]struct{}
}

func NewCalendar(cfg Config) (*Calendar, error) {
	if cfg.SlotDuration < time.Minute {
		return nil, fmt.Errorf("slot duration must be at least one minute, got %s", cfg.SlotDuration)
	}
	if cfg.SlotDuration%time.Minute != 0 {
		return nil, fmt.Errorf("slot duration must be a whole number of minutes, got %s", cfg.SlotDuration)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	weekly := make(map[time.Weekday]Hours, len(cfg.Weekly))
	for day, h := range cfg.Weekly {
		if h.Open < 0 || h.Close > 24*time.Hour || h.Close < h.Open {
			return nil, fmt.Errorf("invalid operating hours for %s: %s-%s", day, h.Open, h.Close)
		}
		weekly[day] = h
	}

	holidays := make(map[string]struct{}, len(cfg.Holidays))
	for _, d := range cfg.Holidays {
		holidays[model.DateOf(d).Format(model.DateLayout)] = struct{}{}
	}

	return &Calendar{
		loc:      loc,
		duration: cfg.SlotDuration,
		weekly:   weekly,
		holidays: holidays,
	}, nil
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

func (c *Calendar) SlotDuration() time.Duration {
	return c.duration
}

// SlotCount returns how many slots date has. Closed days have none.
func (c *Calendar) SlotCount(date time.Time) int {
	day := model.DateOf(date)
	if _, closed := c.holidays[day.Format(model.DateLayout)]; closed {
		return 0
	}
	h, ok := c.weekly[day.Weekday()]
	if !ok {
		return 0
	}
	return int((h.Close - h.Open) / c.duration)
}

// SlotsForDate returns the ordered slot indices of date.
func (c *Calendar) SlotsForDate(date time.Time) []int {
	n := c.SlotCount(date)
	slots := make([]int, n)
	for i := range slots {
		slots[i] = i
	}
	return slots
}

func (c *Calendar) Contains(date time.Time, slot int) bool {
	return slot >= 0 && slot < c.SlotCount(date)
}

// SlotRange returns the wall-clock start and end of slot on date, in the
// clinic's location.
func (c *Calendar) SlotRange(date time.Time, slot int) (time.Time, time.Time, error) {
	if !c.Contains(date, slot) {
		return time.Time{}, time.Time{}, apperrors.InvalidSlot(
			fmt.Sprintf("slot %d is not available on %s", slot, model.DateOf(date).Format(model.DateLayout)))
	}

	day := model.DateOf(date)
	h := c.weekly[day.Weekday()]
	startMin := int((h.Open + time.Duration(slot)*c.duration) / time.Minute)
	endMin := startMin + int(c.duration/time.Minute)

	// time.Date normalizes minute overflow using wall-clock arithmetic,
	// which keeps slots aligned to opening hours across DST changes.
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, startMin, 0, 0, c.loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), 0, endMin, 0, 0, c.loc)
	return start, end, nil
}

// Today returns the current calendar date in the clinic's location.
func (c *Calendar) Today(now time.Time) time.Time {
	return model.DateOf(now.In(c.loc))
}

// ParseClock parses an "HH:MM" time of day into an offset from midnight.
// "24:00" is accepted as end of day.
func ParseClock(s string) (time.Duration, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if hh < 0 || mm < 0 || mm > 59 || hh > 24 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}
